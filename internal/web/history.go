package web

import (
	"context"
	"sync"
	"time"

	"github.com/camuig/pie-watch/internal/metrics"
	"github.com/camuig/pie-watch/internal/portfolio"
)

// RollingPoint is the aggregate portfolio value at one instant.
type RollingPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// History keeps points no older than window relative to the newest one.
// It lives in memory only.
type History struct {
	mu     sync.Mutex
	window time.Duration
	points []RollingPoint
}

func NewHistory(window time.Duration) *History {
	return &History{window: window}
}

func (h *History) Add(p RollingPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, p)
	cutoff := p.Timestamp.Add(-h.window)
	drop := 0
	for drop < len(h.points) && h.points[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.points = append(h.points[:0], h.points[drop:]...)
	}
}

func (h *History) Points() []RollingPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]RollingPoint(nil), h.points...)
}

func (h *History) Window() time.Duration { return h.window }

// Sample records the current aggregate value of the store every interval
// until ctx is cancelled. An empty store adds nothing.
func (h *History) Sample(ctx context.Context, store *portfolio.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.sampleOnce(store, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *History) sampleOnce(store *portfolio.Store, now time.Time) {
	snap := store.Snapshot()
	if len(snap) == 0 {
		return
	}
	h.Add(RollingPoint{Timestamp: now, Value: metrics.AggregateTotals(snap).Current})
}
