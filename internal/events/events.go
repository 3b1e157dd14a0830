// Package events publishes session lifecycle events.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akosicedzkii/pdforever/internal/config"
	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/observability"
)

// Event types.
const (
	TypeSessionOpened = "session.opened"
	TypeSessionClosed = "session.closed"
)

// Outcomes carried by session.closed.
const (
	OutcomeDelivered       = "delivered"
	OutcomeValidationError = "validation_error"
	OutcomeConversionError = "conversion_error"
	OutcomeError           = "error"
	OutcomeCancelled       = "cancelled"
)

// Event describes one step of a session's lifecycle.
type Event struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id"`
	Operation domain.OperationKind `json:"operation"`
	// State is the state the session left when it entered CLOSED.
	State     domain.State  `json:"state,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Publisher emits lifecycle events. Publish failures never affect a request.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger *observability.Logger
}

// NewLogPublisher creates a publisher logging at info level.
func NewLogPublisher(logger *observability.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	ev := p.logger.Info().
		Str("event", e.Type).
		Str("session_id", e.SessionID).
		Str("operation", string(e.Operation))
	if e.State != "" {
		ev = ev.Str("state", string(e.State))
	}
	if e.Outcome != "" {
		ev = ev.Str("outcome", e.Outcome).Dur("duration", e.Duration)
	}
	ev.Msg("Session event")
	return nil
}

// Close implements Publisher.
func (p *LogPublisher) Close() error { return nil }

// OutcomeFor maps a pipeline error to an outcome label.
func OutcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeDelivered
	case domain.IsValidation(err):
		return OutcomeValidationError
	case domain.IsConversion(err):
		return OutcomeConversionError
	case isCancellation(err):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// New builds the publisher selected by cfg.Driver.
func New(cfg config.EventsConfig, logger *observability.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "redis":
		p, err := NewRedisPublisher(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown events driver %q", cfg.Driver), nil)
	}
}
