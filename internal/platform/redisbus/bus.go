package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/casevault/discovery-backend/internal/platform/logger"
)

// Event types published during ingestion.
const (
	EventDocumentIngested  = "document.ingested"
	EventDocumentDuplicate = "document.duplicate"
	EventDocumentFailed    = "document.failed"
	EventBatchCompleted    = "batch.completed"
	EventIsolationFlagged  = "isolation.flagged"
)

// EventSink publishes pipeline progress events. Publishing is
// fire-and-forget: failures are logged and swallowed so a dead broker never
// stalls ingestion.
type EventSink interface {
	Publish(ctx context.Context, eventType string, payload any)
	Close() error
}

type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

type eventSink struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewEventSink(log *logger.Logger) (EventSink, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_EVENT_CHANNEL"))
	if ch == "" {
		ch = "discovery.events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &eventSink{
		log:     log.With("service", "RedisEventSink"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (s *eventSink) Publish(ctx context.Context, eventType string, payload any) {
	if s == nil || s.rdb == nil {
		return
	}
	raw, err := json.Marshal(envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		s.log.Warn("event payload not serializable", "type", eventType, "error", err)
		return
	}
	if err := s.rdb.Publish(ctx, s.channel, raw).Err(); err != nil {
		s.log.Warn("event publish failed", "type", eventType, "error", err)
	}
}

func (s *eventSink) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// NopSink drops every event. Used when REDIS_ADDR is unset.
type NopSink struct{}

func (NopSink) Publish(context.Context, string, any) {}
func (NopSink) Close() error                         { return nil }
