package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akosicedzkii/pdforever/internal/config"
	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/observability"
)

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, OutcomeDelivered},
		{"validation", domain.ValidationError(domain.ReasonNoFiles, ""), OutcomeValidationError},
		{"conversion", domain.ConversionError(domain.ReasonEmptyOutput, "no pages", nil), OutcomeConversionError},
		{"wrapped conversion", fmt.Errorf("pipeline: %w", domain.ConversionError(domain.ReasonDecodeFailed, "x", nil)), OutcomeConversionError},
		{"cancelled", context.Canceled, OutcomeCancelled},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), OutcomeCancelled},
		{"storage", domain.StorageError(domain.ReasonWorkspaceCreate, "x", nil), OutcomeError},
		{"other", errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeFor(tt.err))
		})
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})
	p := NewLogPublisher(logger)

	err := p.Publish(context.Background(), Event{
		Type:      TypeSessionClosed,
		SessionID: "abc",
		Operation: domain.OpPDFToImages,
		State:     domain.StateDelivering,
		Outcome:   OutcomeDelivered,
		Duration:  time.Second,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "session.closed", line["event"])
	assert.Equal(t, "abc", line["session_id"])
	assert.Equal(t, "pdf_to_images", line["operation"])
	assert.Equal(t, "delivering", line["state"])
	assert.Equal(t, "delivered", line["outcome"])
}

func TestNewSelectsDriver(t *testing.T) {
	p, err := New(config.EventsConfig{Driver: "log"}, observability.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, p)

	_, err = New(config.EventsConfig{Driver: "kafka"}, observability.Nop())
	assert.Error(t, err)
}

func TestNewRedisPublisherUnreachable(t *testing.T) {
	_, err := NewRedisPublisher(RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(Event{Type: TypeSessionOpened, SessionID: "s1", Operation: domain.OpImagesToPDF})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "outcome")
	assert.Contains(t, string(data), `"operation":"images_to_pdf"`)
}
