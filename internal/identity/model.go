package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the account union. A minor is booked for by a
// guardian account; adults and guardians authenticate themselves.
type Kind string

const (
	KindAdult    Kind = "adult"
	KindMinor    Kind = "minor"
	KindGuardian Kind = "guardian"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAdult, KindMinor, KindGuardian:
		return true
	}
	return false
}

const (
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Account carries only the attributes relevant to its kind: a minor has
// a guardian and a date of birth, a guardian or adult has neither
// requirement.
type Account struct {
	ID           uuid.UUID
	Kind         Kind
	Name         string
	Email        string
	PasswordHash string
	DateOfBirth  *time.Time
	GuardianID   *uuid.UUID
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Account) validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown account kind %q", a.Kind)
	}
	switch a.Kind {
	case KindMinor:
		if a.GuardianID == nil {
			return errors.New("a minor account requires a guardian")
		}
		if a.DateOfBirth == nil {
			return errors.New("a minor account requires a date of birth")
		}
	default:
		if a.GuardianID != nil {
			return fmt.Errorf("a %s account cannot have a guardian", a.Kind)
		}
	}
	return nil
}

// Claims is what the transport layer gets back from a verified token.
type Claims struct {
	SubjectID uuid.UUID
	Role      string
}
