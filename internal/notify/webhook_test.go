package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

func samplePosition() domain.Position {
	return domain.Position{
		ID:             "p1",
		MarketRef:      "election-2026",
		MarketQuestion: "Will the incumbent win?",
		Side:           domain.SideYes,
		Invested:       100,
		PnL:            33.33,
		PnLPercent:     33.33,
	}
}

func sampleRecord() domain.AlertRecord {
	return domain.AlertRecord{
		ID:         "a1",
		PositionID: "p1",
		Type:       domain.AlertTakeProfit,
		Severity:   domain.SeverityHigh,
		MarketKey:  "m1",
		Message:    "position up 33.3%",
		CreatedAt:  time.Unix(1_700_000_000, 0),
	}
}

func TestWebhookSendPostsPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), samplePosition(), sampleRecord()))

	assert.Equal(t, "a1", got.Alert.ID)
	assert.Equal(t, domain.AlertTakeProfit, got.Alert.Type)
	assert.Equal(t, "p1", got.Position.ID)
}

func TestWebhookSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	err := s.Send(context.Background(), samplePosition(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

// countingSender tracks deliveries and optionally fails.
type countingSender struct {
	calls atomic.Int32
	err   error
}

func (c *countingSender) Send(ctx context.Context, pos domain.Position, record domain.AlertRecord) error {
	c.calls.Add(1)
	return c.err
}

func (c *countingSender) Name() string { return "counting" }

func TestDispatchFansOutToAllSenders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, b := &countingSender{}, &countingSender{err: assert.AnError}
	d := NewDispatcher([]Sender{a, b}, time.Second, logger)

	// A failing sender must not affect the others or the caller.
	d.Dispatch(samplePosition(), sampleRecord())

	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestDiscordSendRendersHeadline(t *testing.T) {
	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		content = payload["content"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), samplePosition(), sampleRecord()))

	assert.Contains(t, content, "**[HIGH] TAKE PROFIT**")
	assert.Contains(t, content, "Will the incumbent win?")
	assert.Contains(t, content, "position up 33.3%")
}
