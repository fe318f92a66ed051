package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service implements the identity collaborator: explicit register and
// login commands. Hashing is a visible step here, not a persistence
// side effect.
type Service struct {
	repo   Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(repo Repository, secret string, ttl time.Duration) *Service {
	return &Service{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

type RegisterInput struct {
	Kind        Kind
	Name        string
	Email       string
	Password    string
	DateOfBirth *time.Time
	GuardianID  *uuid.UUID
}

// Register hashes the plain password and persists a new account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if in.Name == "" || in.Email == "" {
		return nil, errors.New("name and email are required")
	}
	if len(in.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	if in.Kind == "" {
		in.Kind = KindAdult
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &Account{
		ID:           uuid.New(),
		Kind:         in.Kind,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		DateOfBirth:  in.DateOfBirth,
		GuardianID:   in.GuardianID,
		Active:       true,
	}
	if err := account.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login verifies credentials and issues a signed token carrying the
// subject id and role.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !account.Active {
		return "", nil, ErrAccountInactive
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  account.ID.String(),
		"role": RolePatient,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, account, nil
}

// VerifyToken parses and validates a bearer token and returns the
// caller identity the scheduling core trusts.
func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	subjectID, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	role, _ := mapClaims["role"].(string)
	if role == "" {
		role = RolePatient
	}

	return Claims{SubjectID: subjectID, Role: role}, nil
}
