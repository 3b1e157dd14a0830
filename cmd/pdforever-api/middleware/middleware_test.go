package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akosicedzkii/pdforever/internal/observability"
)

type headerCounter struct {
	*httptest.ResponseRecorder
	writes []int
}

func (h *headerCounter) WriteHeader(code int) {
	h.writes = append(h.writes, code)
	h.ResponseRecorder.WriteHeader(code)
}

func TestDeadlineLeavesResponseToHandler(t *testing.T) {
	var seen error
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		seen = r.Context().Err()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"timeout"}`))
	})
	rec := &headerCounter{ResponseRecorder: httptest.NewRecorder()}

	Deadline(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/convert", nil))

	assert.True(t, errors.Is(seen, context.DeadlineExceeded))
	assert.Equal(t, []int{http.StatusServiceUnavailable}, rec.writes)
	assert.JSONEq(t, `{"error":"timeout"}`, rec.Body.String())
}

func TestDeadlineReleasesContextAfterHandler(t *testing.T) {
	var ctx context.Context
	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		assert.NoError(t, ctx.Err())
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()

	Deadline(time.Minute)(fast).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ctx)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://pdforever.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/convert", nil)
	req.Header.Set("Origin", "https://evil.example")
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	req.Header.Set("Origin", "https://pdforever.example")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://pdforever.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Disposition", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestRequestLoggerDefaultsStatus(t *testing.T) {
	h := RequestLogger(observability.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
