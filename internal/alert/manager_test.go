package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

func newTestManager(cfg ManagerConfig, at *time.Time) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(cfg, nil, nil, nil, logger)
	m.now = func() time.Time { return *at }
	return m
}

func testEvent(market string, at time.Time) domain.AlertEvent {
	return domain.AlertEvent{
		Type:      domain.AlertPriceMove,
		Severity:  domain.SeverityMedium,
		MarketKey: market,
		Message:   "price moved",
		Timestamp: at,
	}
}

func TestRaiseDedupesWithinWindow(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Hour, HistoryCap: 100}, &at)
	ctx := context.Background()
	pos := domain.Position{ID: "p1"}

	m.Raise(ctx, pos, testEvent("m1", at))
	at = at.Add(10 * time.Minute)
	m.Raise(ctx, pos, testEvent("m1", at))

	assert.Len(t, m.History(domain.AlertFilter{}), 1)
}

func TestRaiseAdmitsAfterWindow(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Hour, HistoryCap: 100}, &at)
	ctx := context.Background()
	pos := domain.Position{ID: "p1"}

	m.Raise(ctx, pos, testEvent("m1", at))
	at = at.Add(61 * time.Minute)
	m.Raise(ctx, pos, testEvent("m1", at))

	assert.Len(t, m.History(domain.AlertFilter{}), 2)
}

func TestRaiseSeverityChangesFingerprint(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Hour, HistoryCap: 100}, &at)
	ctx := context.Background()
	pos := domain.Position{ID: "p1"}

	ev := testEvent("m1", at)
	m.Raise(ctx, pos, ev)

	// The same rule escalating to HIGH is a distinct alert.
	ev.Severity = domain.SeverityHigh
	m.Raise(ctx, pos, ev)

	assert.Len(t, m.History(domain.AlertFilter{}), 2)
}

func TestRaiseDistinctMarketsDoNotCollide(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Hour, HistoryCap: 100}, &at)
	ctx := context.Background()

	m.Raise(ctx, domain.Position{ID: "p1"}, testEvent("m1", at))
	m.Raise(ctx, domain.Position{ID: "p2"}, testEvent("m2", at))

	assert.Len(t, m.History(domain.AlertFilter{}), 2)
}

func TestHistoryOverflowDropsOldestHalf(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Minute, HistoryCap: 10}, &at)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		at = at.Add(2 * time.Minute)
		ev := testEvent(fmt.Sprintf("m%d", i), at)
		m.Raise(ctx, domain.Position{ID: "p"}, ev)
	}

	records := m.History(domain.AlertFilter{})
	require.Len(t, records, 5, "overflow keeps the newest half")
	// Newest first: the last raise survives at the front.
	assert.Equal(t, "m10", records[0].MarketKey)
	assert.Equal(t, "m6", records[4].MarketKey)
}

func TestHistoryFilters(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Minute, HistoryCap: 100}, &at)
	ctx := context.Background()

	m.Raise(ctx, domain.Position{ID: "p1"}, domain.AlertEvent{
		Type: domain.AlertTakeProfit, Severity: domain.SeverityHigh, MarketKey: "m1", Timestamp: at,
	})
	at = at.Add(2 * time.Minute)
	m.Raise(ctx, domain.Position{ID: "p2"}, domain.AlertEvent{
		Type: domain.AlertStopLoss, Severity: domain.SeverityHigh, MarketKey: "m2", Timestamp: at,
	})
	at = at.Add(2 * time.Minute)
	m.Raise(ctx, domain.Position{ID: "p1"}, domain.AlertEvent{
		Type: domain.AlertLowLiquidity, Severity: domain.SeverityLow, MarketKey: "m1", Timestamp: at,
	})

	byPos := m.History(domain.AlertFilter{PositionID: "p1"})
	require.Len(t, byPos, 2)
	assert.Equal(t, domain.AlertLowLiquidity, byPos[0].Type, "newest first")

	byType := m.History(domain.AlertFilter{Type: domain.AlertStopLoss})
	require.Len(t, byType, 1)
	assert.Equal(t, "p2", byType[0].PositionID)

	limited := m.History(domain.AlertFilter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, domain.AlertLowLiquidity, limited[0].Type)

	since := m.History(domain.AlertFilter{Since: at.Add(-time.Minute)})
	assert.Len(t, since, 1)
}

func TestPurgeDropsStaleDedupEntries(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Hour, HistoryCap: 100}, &at)
	ctx := context.Background()

	m.Raise(ctx, domain.Position{ID: "p1"}, testEvent("m1", at))
	at = at.Add(30 * time.Minute)
	m.Raise(ctx, domain.Position{ID: "p2"}, testEvent("m2", at))

	// Only the first entry is older than twice the window.
	at = at.Add(95 * time.Minute)
	assert.Equal(t, 1, m.Purge())
}

func TestRecordCarriesEventFields(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	m := newTestManager(ManagerConfig{DedupWindow: time.Hour, HistoryCap: 100}, &at)

	m.Raise(context.Background(), domain.Position{ID: "p1"}, domain.AlertEvent{
		Type:      domain.AlertTakeProfit,
		Severity:  domain.SeverityHigh,
		MarketKey: "m1",
		Message:   "position up 75.0%",
		Timestamp: at,
	})

	records := m.History(domain.AlertFilter{})
	require.Len(t, records, 1)
	r := records[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "p1", r.PositionID)
	assert.Equal(t, domain.AlertTakeProfit, r.Type)
	assert.Equal(t, domain.SeverityHigh, r.Severity)
	assert.Equal(t, "m1", r.MarketKey)
	assert.Equal(t, "position up 75.0%", r.Message)
	assert.Equal(t, at, r.CreatedAt)
}
