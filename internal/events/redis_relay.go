package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultRecentLimit  = 100
	defaultRelayTimeout = 2 * time.Second
)

// RedisRelay forwards job events to a Redis channel and keeps a capped list of
// recent events per tenant for operator dashboards.
type RedisRelay struct {
	client      redis.UniversalClient
	channel     string
	recentLimit int64
	timeout     time.Duration
	logger      *zerolog.Logger
}

func NewRedisRelay(client redis.UniversalClient, channel string, logger *zerolog.Logger) *RedisRelay {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &RedisRelay{
		client:      client,
		channel:     channel,
		recentLimit: defaultRecentLimit,
		timeout:     defaultRelayTimeout,
		logger:      logger,
	}
}

// Attach subscribes the relay to every job event on the bus.
func (r *RedisRelay) Attach(bus *EventBus) {
	bus.SubscribeJobs(r.Handle)
}

// Handle publishes a single event. Failures are logged and returned; they never block dispatch.
func (r *RedisRelay) Handle(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}
	msg := fmt.Sprintf(`{"type":%q,"at":%q,"job":%s}`, event.Type, event.CreatedAt.UTC().Format(time.RFC3339Nano), payload)

	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		r.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to relay job event")
		return err
	}

	tenantID, ok := tenantOf(event.Payload)
	if !ok {
		return nil
	}

	key := RecentKey(r.channel, tenantID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, msg)
	pipe.LTrim(ctx, key, 0, r.recentLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Failed to store recent job event")
		return err
	}
	return nil
}

// Recent returns up to limit most recent events for the tenant, newest first.
func (r *RedisRelay) Recent(ctx context.Context, tenantID int64, limit int64) ([]string, error) {
	if limit <= 0 || limit > r.recentLimit {
		limit = r.recentLimit
	}
	return r.client.LRange(ctx, RecentKey(r.channel, tenantID), 0, limit-1).Result()
}

// RecentKey is the Redis list holding a tenant's recent events.
func RecentKey(channel string, tenantID int64) string {
	return fmt.Sprintf("%s:tenant:%d:recent", channel, tenantID)
}

func tenantOf(payload []byte) (int64, bool) {
	var p struct {
		TenantID int64 `json:"tenant_id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.TenantID == 0 {
		return 0, false
	}
	return p.TenantID, true
}
