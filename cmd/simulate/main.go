package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/caremesh/clinic-scheduling/internal/config"
	"github.com/caremesh/clinic-scheduling/internal/db"
	"github.com/caremesh/clinic-scheduling/internal/logging"
)

// Load generator: hammers the booking endpoint with concurrent
// requests so the claim race and its compensation can be observed
// under pressure. Exactly one request per slot should succeed; the
// rest must come back as conflicts, never as double bookings.

type simConfig struct {
	APIBaseURL string
	Workers    int
	Requests   int
	SlotLimit  int
}

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	rejected  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&m.rejected, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "simulate")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "simulate")

	sim := simConfig{
		APIBaseURL: getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Workers:    getEnvInt("SIM_WORKERS", 20),
		Requests:   getEnvInt("SIM_REQUESTS", 500),
		SlotLimit:  getEnvInt("SIM_SLOT_LIMIT", 10),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	patients, err := loadIDs(ctx, pool, `SELECT id FROM patients WHERE active LIMIT 200`)
	if err != nil || len(patients) == 0 {
		log.Fatal().Err(err).Msg("no patients to simulate with, run cmd/seed first")
	}
	doctors, err := loadIDs(ctx, pool, `SELECT id FROM doctors WHERE active LIMIT 5`)
	if err != nil || len(doctors) == 0 {
		log.Fatal().Err(err).Msg("no doctors to simulate with, run cmd/seed first")
	}

	// Tokens are minted directly so the run does not depend on seeded
	// passwords.
	tokens := make(map[uuid.UUID]string, len(patients))
	for _, p := range patients {
		tok, err := mintToken(cfg.JWTSecret, p)
		if err != nil {
			log.Fatal().Err(err).Msg("mint token")
		}
		tokens[p] = tok
	}

	date := time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	timeSlots := candidateSlots(sim.SlotLimit)

	log.Info().
		Int("workers", sim.Workers).
		Int("requests", sim.Requests).
		Int("slots", len(timeSlots)).
		Str("date", date).
		Msg("simulation starting")

	var m metrics
	var wg sync.WaitGroup
	jobs := make(chan int)

	client := &http.Client{Timeout: 10 * time.Second}

	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				patient := patients[rand.Intn(len(patients))]
				doctor := doctors[rand.Intn(len(doctors))]
				slot := timeSlots[rand.Intn(len(timeSlots))]

				status, latency := book(client, sim.APIBaseURL, tokens[patient], doctor, date, slot)
				m.record(latency, status)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < sim.Requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report(log, &m, time.Since(start))
}

func book(client *http.Client, baseURL, token string, doctorID uuid.UUID, date, slot string) (int, time.Duration) {
	body, _ := json.Marshal(map[string]string{
		"doctor_id": doctorID.String(),
		"date":      date,
		"time_slot": slot,
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, latency
}

func report(log zerolog.Logger, m *metrics, took time.Duration) {
	total := atomic.LoadInt64(&m.total)
	log.Info().
		Int64("total", total).
		Int64("booked", atomic.LoadInt64(&m.success)).
		Int64("conflicts", atomic.LoadInt64(&m.conflict)).
		Int64("rejected", atomic.LoadInt64(&m.rejected)).
		Int64("errors", atomic.LoadInt64(&m.errored)).
		Dur("took", took).
		Dur("p50", m.percentile(50)).
		Dur("p95", m.percentile(95)).
		Float64("rps", float64(total)/took.Seconds()).
		Msg("simulation complete")
}

func candidateSlots(limit int) []string {
	var slots []string
	for at := 9 * 60; at < 17*60 && len(slots) < limit; at += 30 {
		slots = append(slots, fmt.Sprintf("%02d:%02d", at/60, at%60))
	}
	return slots
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func mintToken(secret string, subject uuid.UUID) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject.String(),
		"role": "patient",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
