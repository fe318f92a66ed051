package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const accountColumns = `
	id, kind, name, email, password_hash, date_of_birth, guardian_id,
	active, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Kind,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.DateOfBirth,
		&a.GuardianID,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) CreateAccount(ctx context.Context, a *Account) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, kind, name, email, password_hash, date_of_birth, guardian_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+accountColumns+`
	`, a.ID, a.Kind, a.Name, a.Email, a.PasswordHash, a.DateOfBirth, a.GuardianID, a.Active)

	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("create account: %w", err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM patients
		WHERE email = $1
	`, email)
	return scanAccount(row)
}

func (r *PgRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanAccount(row)
}
