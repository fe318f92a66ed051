package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

// AvailabilityCache caches per-doctor, per-day free-slot listings under
// a short TTL. The repository stays authoritative: every claim, release
// and generation invalidates the day it touched, and any cache error
// degrades to a miss.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *AvailabilityCache {
	return &AvailabilityCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func availabilityKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("avail:%s:%s", doctorID.String(), date.Format("2006-01-02"))
}

func (c *AvailabilityCache) GetFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, bool) {
	raw, err := c.client.Get(ctx, availabilityKey(doctorID, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Msg("availability cache read failed")
		}
		return nil, false
	}

	var slots []scheduling.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Warn().Err(err).Msg("availability cache entry corrupt, dropping")
		_ = c.client.Del(ctx, availabilityKey(doctorID, date)).Err()
		return nil, false
	}
	return slots, true
}

func (c *AvailabilityCache) SetFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, slots []scheduling.Slot) {
	data, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn().Err(err).Msg("availability cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, availabilityKey(doctorID, date), data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("availability cache write failed")
	}
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	if err := c.client.Del(ctx, availabilityKey(doctorID, date)).Err(); err != nil {
		c.log.Warn().Err(err).Msg("availability cache invalidate failed")
	}
}
