package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type fakeAccountRepo struct {
	byEmail map[string]*Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byEmail: make(map[string]*Account)}
}

func (f *fakeAccountRepo) CreateAccount(_ context.Context, a *Account) error {
	if _, taken := f.byEmail[a.Email]; taken {
		return ErrEmailTaken
	}
	cp := *a
	f.byEmail[a.Email] = &cp
	return nil
}

func (f *fakeAccountRepo) GetAccountByEmail(_ context.Context, email string) (*Account, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountRepo) GetAccountByID(_ context.Context, id uuid.UUID) (*Account, error) {
	for _, a := range f.byEmail {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func newTestService() (*Service, *fakeAccountRepo) {
	repo := newFakeAccountRepo()
	return NewService(repo, "test-secret", time.Hour), repo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newTestService()

	account, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.Kind != KindAdult {
		t.Errorf("kind %s, want adult default", account.Kind)
	}
	if !account.Active {
		t.Error("new account not active")
	}
	if account.PasswordHash == "correct horse" {
		t.Fatal("password stored in plain text")
	}

	stored := repo.byEmail["ada@example.com"]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "short",
	})
	if err == nil {
		t.Fatal("short password accepted")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	in := RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct horse"}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("second register: got %v, want ErrEmailTaken", err)
	}
}

func TestRegisterMinorNeedsGuardian(t *testing.T) {
	svc, _ := newTestService()
	dob := time.Date(2018, 4, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.Register(context.Background(), RegisterInput{
		Kind:        KindMinor,
		Name:        "Kid",
		Email:       "kid@example.com",
		Password:    "longenough",
		DateOfBirth: &dob,
	})
	if err == nil {
		t.Fatal("minor without guardian accepted")
	}

	guardian := uuid.New()
	_, err = svc.Register(context.Background(), RegisterInput{
		Kind:        KindMinor,
		Name:        "Kid",
		Email:       "kid@example.com",
		Password:    "longenough",
		DateOfBirth: &dob,
		GuardianID:  &guardian,
	})
	if err != nil {
		t.Fatalf("minor with guardian rejected: %v", err)
	}

	// An adult cannot carry a guardian.
	_, err = svc.Register(context.Background(), RegisterInput{
		Kind:       KindAdult,
		Name:       "Grown",
		Email:      "grown@example.com",
		Password:   "longenough",
		GuardianID: &guardian,
	})
	if err == nil {
		t.Fatal("adult with guardian accepted")
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newTestService()
	account, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, logged, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != account.ID {
		t.Error("login returned a different account")
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.SubjectID != account.ID {
		t.Errorf("subject %s, want %s", claims.SubjectID, account.ID)
	}
	if claims.Role != RolePatient {
		t.Errorf("role %s, want patient", claims.Role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := newTestService()
	if _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	repo.byEmail["ada@example.com"].Active = false

	if _, _, err := svc.Login(context.Background(), "ada@example.com", "correct horse"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("got %v, want ErrAccountInactive", err)
	}
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.VerifyToken(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: got %v, want ErrInvalidToken", err)
	}
	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: got %v, want ErrInvalidToken", err)
	}

	other := NewService(newFakeAccountRepo(), "other-secret", time.Hour)
	if _, err := other.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: got %v, want ErrInvalidToken", err)
	}
}
