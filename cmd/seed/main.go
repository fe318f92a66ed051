package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/caremesh/clinic-scheduling/internal/config"
	"github.com/caremesh/clinic-scheduling/internal/db"
	"github.com/caremesh/clinic-scheduling/internal/logging"
	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

const (
	doctorCount   = 25
	patientCount  = 500
	seedPassword  = "changeme-dev-only"
	seedAheadDays = 14
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "seed")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "seed")
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, doctorCount)
	if err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, patientCount, log); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedSlots(context.Background(), pool, doctorIDs, cfg.SlotDuration, log); err != nil {
		log.Fatal().Err(err).Msg("seed slots")
	}

	log.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	specializations := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, active, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}

		// Weekday clinic hours, with a shorter Saturday for some.
		for day := 1; day <= 5; day++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO working_hours (doctor_id, day_of_week, start_time, end_time, is_working)
				VALUES ($1, $2, '09:00', '17:00', TRUE)
			`, id, day)
			if err != nil {
				return nil, err
			}
		}
		if gofakeit.Bool() {
			_, err := tx.Exec(ctx, `
				INSERT INTO working_hours (doctor_id, day_of_week, start_time, end_time, is_working)
				VALUES ($1, 6, '09:00', '13:00', TRUE)
			`, id)
			if err != nil {
				return nil, err
			}
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, log zerolog.Logger) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := fmt.Sprintf("%d-%s", i, gofakeit.Email())

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, kind, name, email, password_hash, active, created_at, updated_at)
				VALUES ($1, 'adult', $2, $3, $4, TRUE, now(), now())
			`, id, name, email, string(hash))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, slotDuration time.Duration, log zerolog.Logger) error {
	repo := scheduling.NewPgRepository(pool)
	svc := scheduling.NewService(repo, nil, scheduling.NewLogNotifier(log), log, scheduling.Policy{
		SlotDuration:     slotDuration,
		CancelWindow:     24 * time.Hour,
		RescheduleWindow: 12 * time.Hour,
	})

	from := time.Now()
	to := from.AddDate(0, 0, seedAheadDays)

	total := 0
	for _, id := range doctorIDs {
		created, err := svc.GenerateSlots(ctx, id, from, to)
		if err != nil {
			return err
		}
		total += created
	}

	log.Info().Int("created", total).Msg("slots seeded")
	return nil
}
