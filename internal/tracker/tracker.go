// Package tracker is the position update engine: it owns the position set,
// refreshes active positions against upstream in bounded concurrency waves,
// maintains per-market price history, and feeds alert evaluation.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytrack/internal/alert"
	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/store"
)

// Config tunes the update engine.
type Config struct {
	BatchConcurrency int
	MoveLookback     time.Duration // baseline age for PRICE_MOVE, normally the history window
}

// NewPosition is the caller-supplied input for AddPosition. EntryPrice is
// quoted for the YES outcome regardless of side.
type NewPosition struct {
	MarketRef  string
	Side       domain.Side
	Invested   float64
	EntryPrice float64
}

// Tracker owns the position set. All shared state lives on the struct and is
// injected at construction, so isolated instances can be built in tests.
type Tracker struct {
	resolver domain.MarketResolver
	books    domain.BookSource
	history  *History
	alerts   domain.AlertSink
	rules    alert.RuleConfig
	store    *store.PositionStore
	locks    *KeyLock
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	positions map[string]*domain.Position
	order     []string // insertion order, for stable listings and summaries
}

// New creates a Tracker seeded with previously persisted positions.
func New(
	resolver domain.MarketResolver,
	books domain.BookSource,
	history *History,
	alerts domain.AlertSink,
	rules alert.RuleConfig,
	st *store.PositionStore,
	cfg Config,
	initial []domain.Position,
	logger *slog.Logger,
) *Tracker {
	t := &Tracker{
		resolver:  resolver,
		books:     books,
		history:   history,
		alerts:    alerts,
		rules:     rules,
		store:     st,
		locks:     NewKeyLock(),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "tracker")),
		now:       time.Now,
		positions: make(map[string]*domain.Position, len(initial)),
	}
	for i := range initial {
		pos := initial[i]
		t.positions[pos.ID] = &pos
		t.order = append(t.order, pos.ID)
	}
	return t
}

// AddPosition validates and registers a new active position, persisting the
// updated set.
func (t *Tracker) AddPosition(ctx context.Context, np NewPosition) (domain.Position, error) {
	if np.MarketRef == "" {
		return domain.Position{}, fmt.Errorf("tracker: add position: market reference is required")
	}
	if np.Side != domain.SideYes && np.Side != domain.SideNo {
		return domain.Position{}, fmt.Errorf("tracker: add position: side must be YES or NO, got %q", np.Side)
	}
	if np.Invested <= 0 {
		return domain.Position{}, fmt.Errorf("tracker: add position: invested amount must be > 0")
	}
	if np.EntryPrice <= 0 || np.EntryPrice >= 1 {
		return domain.Position{}, fmt.Errorf("tracker: add position: entry price must be between 0 and 1 exclusive")
	}

	now := t.now().UTC()
	pos := domain.Position{
		ID:           uuid.New().String(),
		MarketRef:    np.MarketRef,
		Side:         np.Side,
		Invested:     np.Invested,
		EntryPrice:   np.EntryPrice,
		CurrentPrice: np.EntryPrice,
		CurrentValue: np.Invested,
		Status:       domain.PositionStatusActive,
		OpenedAt:     now,
		UpdatedAt:    now,
	}

	t.mu.Lock()
	t.positions[pos.ID] = &pos
	t.order = append(t.order, pos.ID)
	t.mu.Unlock()

	if err := t.persist(ctx); err != nil {
		t.logger.WarnContext(ctx, "persist after add failed", slog.String("error", err.Error()))
	}

	t.logger.InfoContext(ctx, "position added",
		slog.String("position_id", pos.ID),
		slog.String("market_ref", pos.MarketRef),
		slog.String("side", string(pos.Side)),
		slog.Float64("invested", pos.Invested),
		slog.Float64("entry_price", pos.EntryPrice),
	)

	return pos, nil
}

// ClosePosition closes the active position identified by ref (position ID,
// resolved market ID, market reference, or slug) at exitPrice, recording
// realized PnL. The status transition is monotonic: closing an already
// closed position returns domain.ErrAlreadyClosed.
func (t *Tracker) ClosePosition(ctx context.Context, ref string, exitPrice float64) (domain.Position, error) {
	t.mu.Lock()
	pos, err := t.findLocked(ref)
	if err != nil {
		t.mu.Unlock()
		return domain.Position{}, fmt.Errorf("tracker: close position %q: %w", ref, err)
	}
	if pos.Status == domain.PositionStatusClosed {
		t.mu.Unlock()
		return domain.Position{}, fmt.Errorf("tracker: close position %q: %w", ref, domain.ErrAlreadyClosed)
	}

	now := t.now().UTC()
	pnl := ComputePnL(pos.Side, pos.Invested, pos.EntryPrice, exitPrice)

	pos.Status = domain.PositionStatusClosed
	pos.ClosedAt = &now
	pos.ExitPrice = &exitPrice
	pos.RealizedPnL = &pnl.Profit
	pos.CurrentPrice = exitPrice
	pos.CurrentValue = pnl.Value
	pos.PnL = pnl.Profit
	pos.PnLPercent = pnl.PctProfit
	pos.UpdatedAt = now
	closed := *pos
	t.mu.Unlock()

	if err := t.persist(ctx); err != nil {
		t.logger.WarnContext(ctx, "persist after close failed", slog.String("error", err.Error()))
	}

	t.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", closed.ID),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("realized_pnl", pnl.Profit),
	)

	return closed, nil
}

// UpdateAll refreshes every active position in waves of at most
// BatchConcurrency, so no more than that many upstream refreshes are in
// flight at once. Closed positions pass through unchanged. A failing
// position is annotated and never aborts the batch. The full set is
// persisted after the pass and the summary recomputed from it.
func (t *Tracker) UpdateAll(ctx context.Context) (domain.PortfolioSummary, error) {
	t.mu.RLock()
	active := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if t.positions[id].Status == domain.PositionStatusActive {
			active = append(active, id)
		}
	}
	t.mu.RUnlock()

	n := t.cfg.BatchConcurrency
	if n < 1 {
		n = 1
	}
	for start := 0; start < len(active); start += n {
		end := start + n
		if end > len(active) {
			end = len(active)
		}

		var wg sync.WaitGroup
		for _, id := range active[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				t.refreshOne(ctx, id)
			}(id)
		}
		wg.Wait()
	}

	if err := t.persist(ctx); err != nil {
		t.logger.WarnContext(ctx, "persist after update failed", slog.String("error", err.Error()))
	}

	summary := t.Summary()
	t.logger.InfoContext(ctx, "update cycle complete",
		slog.Int("active", summary.ActivePositions),
		slog.Int("failed", summary.FailedUpdates),
		slog.Float64("total_value", summary.TotalValue),
		slog.Float64("total_pnl", summary.TotalPnL),
	)
	return summary, nil
}

// refreshOne runs the per-position refresh pipeline under the market key
// lock: resolve, read the held-side price, recompute PnL, append history,
// and evaluate alert rules. Failures are annotated onto the position.
func (t *Tracker) refreshOne(ctx context.Context, id string) {
	t.mu.RLock()
	p, ok := t.positions[id]
	if !ok {
		t.mu.RUnlock()
		return
	}
	snapshot := *p
	t.mu.RUnlock()

	unlock := t.locks.Lock(snapshot.MarketKey())
	defer unlock()

	now := t.now().UTC()

	market, method, err := t.resolver.Resolve(ctx, snapshot.MarketKey())
	if err != nil {
		t.annotate(id, err, now)
		return
	}

	yesPrice := t.currentYesPrice(ctx, &market, snapshot.Side)
	pnl := ComputePnL(snapshot.Side, snapshot.Invested, snapshot.EntryPrice, yesPrice)

	t.history.Append(market.ID, yesPrice, now)
	baseline, hasBaseline := t.history.PriceAgo(market.ID, t.cfg.MoveLookback)

	t.mu.Lock()
	pos := t.positions[id]
	pos.MarketID = market.ID
	pos.MarketQuestion = market.Question
	pos.TokenID = sideToken(&market, snapshot.Side)
	pos.ResolvedBy = method
	pos.CurrentPrice = yesPrice
	pos.CurrentValue = pnl.Value
	pos.PnL = pnl.Profit
	pos.PnLPercent = pnl.PctProfit
	pos.DaysToResolution = market.DaysToResolution(now)
	pos.UpdateError = ""
	pos.UpdateErrorAt = nil
	pos.UpdatedAt = now
	updated := *pos
	t.mu.Unlock()

	events := alert.Evaluate(alert.Input{
		Position:     updated,
		Liquidity:    market.Liquidity,
		CurrentPrice: yesPrice,
		Baseline:     baseline,
		HasBaseline:  hasBaseline,
	}, t.rules, now)

	for _, ev := range events {
		t.alerts.Raise(ctx, updated, ev)
	}
}

// sideToken returns the CLOB token ID for the held side: TokenIDs[0] quotes
// the YES outcome, TokenIDs[1] the NO outcome.
func sideToken(market *domain.MarketSnapshot, side domain.Side) string {
	if side == domain.SideNo {
		return market.TokenIDs[1]
	}
	return market.TokenIDs[0]
}

// currentYesPrice returns the market price normalised to the YES outcome,
// preferring the live order book mid for the held side and falling back to
// the market snapshot price.
func (t *Tracker) currentYesPrice(ctx context.Context, market *domain.MarketSnapshot, side domain.Side) float64 {
	tokenID := sideToken(market, side)

	if t.books != nil && tokenID != "" {
		bid, ask, err := t.books.GetBestPrices(ctx, tokenID)
		if err == nil && bid > 0 && ask > 0 {
			mid := (bid + ask) / 2
			if side == domain.SideNo {
				return 1 - mid
			}
			return mid
		}
	}
	return market.YesPrice
}

// annotate records a per-position refresh failure without touching the rest
// of the record.
func (t *Tracker) annotate(id string, err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[id]
	if !ok {
		return
	}
	pos.UpdateError = err.Error()
	pos.UpdateErrorAt = &now

	t.logger.Warn("position refresh failed",
		slog.String("position_id", id),
		slog.String("market", pos.MarketKey()),
		slog.String("error", err.Error()),
	)
}

// RecordLivePrice feeds a price observed outside the poll cycle (e.g. from
// the WebSocket feed) into the history ring and the matching positions. The
// price is quoted for the token's own side.
func (t *Tracker) RecordLivePrice(tokenID string, price float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.order {
		pos := t.positions[id]
		if pos.Status != domain.PositionStatusActive || pos.TokenID != tokenID {
			continue
		}

		yesPrice := price
		if pos.Side == domain.SideNo {
			yesPrice = 1 - price
		}

		pnl := ComputePnL(pos.Side, pos.Invested, pos.EntryPrice, yesPrice)
		pos.CurrentPrice = yesPrice
		pos.CurrentValue = pnl.Value
		pos.PnL = pnl.Profit
		pos.PnLPercent = pnl.PctProfit
		pos.UpdatedAt = at

		t.history.Append(pos.MarketKey(), yesPrice, at)
	}
}

// Summary recomputes the portfolio summary from the current position set.
// Totals cover active positions; closed positions only contribute counts.
func (t *Tracker) Summary() domain.PortfolioSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := domain.PortfolioSummary{UpdatedAt: t.now().UTC()}
	for _, id := range t.order {
		pos := t.positions[id]
		if pos.Status == domain.PositionStatusClosed {
			s.ClosedPositions++
			continue
		}
		s.ActivePositions++
		if pos.UpdateError != "" {
			s.FailedUpdates++
		}
		s.TotalInvested += pos.Invested
		s.TotalValue += pos.CurrentValue
		s.TotalPnL += pos.PnL
	}
	if s.TotalInvested > 0 {
		s.PnLPercent = s.TotalPnL / s.TotalInvested * 100
	}
	return s
}

// Positions returns a copy of every tracked position in insertion order.
func (t *Tracker) Positions() []domain.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Position, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.positions[id])
	}
	return out
}

// Flush persists the current position set.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.persist(ctx)
}

// persist snapshots the position set and saves it atomically.
func (t *Tracker) persist(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	return t.store.Save(ctx, t.Positions())
}

// findLocked locates a position by ID, resolved market ID, raw market
// reference, or slug. Caller holds t.mu. Active positions win over closed
// ones so ClosePosition targets the live record.
func (t *Tracker) findLocked(ref string) (*domain.Position, error) {
	if pos, ok := t.positions[ref]; ok {
		return pos, nil
	}
	var closedMatch *domain.Position
	for _, id := range t.order {
		pos := t.positions[id]
		if pos.MarketID == ref || pos.MarketRef == ref {
			if pos.Status == domain.PositionStatusActive {
				return pos, nil
			}
			if closedMatch == nil {
				closedMatch = pos
			}
		}
	}
	if closedMatch != nil {
		return closedMatch, nil
	}
	return nil, domain.ErrNotFound
}
