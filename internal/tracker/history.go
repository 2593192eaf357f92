package tracker

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// History keeps a bounded, time-windowed price ring per market. Both bounds
// are enforced on every append: at most maxEntries samples, and at most one
// sample older than maxAge, retained as the anchor for full-window baseline
// reads. The oldest samples are evicted first on either bound.
type History struct {
	mu         sync.RWMutex
	rings      map[string][]domain.PricePoint
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// NewHistory creates an empty History with the given bounds.
func NewHistory(maxEntries int, maxAge time.Duration) *History {
	return &History{
		rings:      make(map[string][]domain.PricePoint),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Append adds a sample for the market. Samples must arrive in timestamp
// order per market (refreshes for one market are serialized by the key
// lock); an out-of-order sample is dropped to keep the ring strictly
// ordered.
func (h *History) Append(marketKey string, price float64, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring := h.rings[marketKey]
	if n := len(ring); n > 0 && !at.After(ring[n-1].Timestamp) {
		return
	}

	ring = append(ring, domain.PricePoint{MarketKey: marketKey, Price: price, Timestamp: at})

	cutoff := h.now().Add(-h.maxAge)
	start := 0
	for start < len(ring) && !ring[start].Timestamp.After(cutoff) {
		start++
	}
	// Keep the newest out-of-window sample so a lookback spanning the whole
	// window still has a sample to land on.
	if start > 0 {
		start--
	}
	if over := len(ring) - start - h.maxEntries; over > 0 {
		start += over
	}
	if start > 0 {
		ring = append(ring[:0:0], ring[start:]...)
	}

	h.rings[marketKey] = ring
}

// PriceAgo returns the newest sample at least lookback old. When no sample
// is that old but the ring is at capacity, the count bound is what limits
// the span, so the oldest retained sample stands in as the baseline. With
// the window still unfilled it reports false.
func (h *History) PriceAgo(marketKey string, lookback time.Duration) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := h.now().Add(-lookback)
	ring := h.rings[marketKey]
	for i := len(ring) - 1; i >= 0; i-- {
		if !ring[i].Timestamp.After(cutoff) {
			return ring[i].Price, true
		}
	}
	if len(ring) >= h.maxEntries && len(ring) > 1 {
		return ring[0].Price, true
	}
	return 0, false
}

// Oldest returns the oldest retained sample for the market.
func (h *History) Oldest(marketKey string) (domain.PricePoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ring := h.rings[marketKey]
	if len(ring) == 0 {
		return domain.PricePoint{}, false
	}
	return ring[0], true
}

// Len returns how many samples the market's ring currently holds.
func (h *History) Len(marketKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rings[marketKey])
}
