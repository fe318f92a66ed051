package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	// Im trying connectivity on startup
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// Migrate applies the schema. Statements are idempotent so running it
// on every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id            UUID PRIMARY KEY,
		kind          TEXT NOT NULL CHECK (kind IN ('adult', 'minor', 'guardian')),
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		date_of_birth DATE,
		guardian_id   UUID REFERENCES patients(id),
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS doctors (
		id             UUID PRIMARY KEY,
		name           TEXT NOT NULL,
		specialization TEXT NOT NULL,
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS working_hours (
		doctor_id   UUID NOT NULL REFERENCES doctors(id),
		day_of_week INT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_time  TEXT NOT NULL,
		end_time    TEXT NOT NULL,
		is_working  BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (doctor_id, day_of_week)
	)`,

	`CREATE TABLE IF NOT EXISTS slots (
		id             UUID PRIMARY KEY,
		doctor_id      UUID NOT NULL REFERENCES doctors(id),
		date           DATE NOT NULL,
		time_slot      TEXT NOT NULL,
		is_booked      BOOLEAN NOT NULL DEFAULT FALSE,
		appointment_id UUID,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (doctor_id, date, time_slot)
	)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id                  UUID PRIMARY KEY,
		patient_id          UUID NOT NULL REFERENCES patients(id),
		doctor_id           UUID NOT NULL REFERENCES doctors(id),
		date                DATE NOT NULL,
		time_slot           TEXT NOT NULL,
		status              TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'confirmed', 'rescheduled', 'cancelled', 'completed')),
		priority            TEXT NOT NULL DEFAULT 'normal'
			CHECK (priority IN ('normal', 'urgent', 'emergency')),
		payment_status      TEXT NOT NULL DEFAULT 'pending'
			CHECK (payment_status IN ('pending', 'paid', 'refunded')),
		source              TEXT NOT NULL DEFAULT '',
		notes               TEXT,
		symptoms            TEXT,
		cancelled_by        UUID,
		cancellation_reason TEXT,
		rescheduled_from    UUID,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// Backstop invariants: at most one live appointment per slot, and at
	// most one live appointment per patient/doctor/day. The claim CAS is
	// the fast path; these indexes are the final race arbiter.
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_doctor_date_slot_live
		ON appointments (doctor_id, date, time_slot)
		WHERE status IN ('pending', 'confirmed', 'rescheduled')`,

	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_patient_doctor_date_live
		ON appointments (patient_id, doctor_id, date)
		WHERE status IN ('pending', 'confirmed', 'rescheduled')`,

	`CREATE TABLE IF NOT EXISTS booking_events (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		appointment_id UUID,
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
