package web

import (
	"testing"
	"time"

	"github.com/camuig/pie-watch/internal/portfolio"
)

func TestHistory_DropsPointsOutsideWindow(t *testing.T) {
	h := NewHistory(10 * time.Second)
	base := time.Unix(1000, 0)
	for i := 0; i < 30; i++ {
		h.Add(RollingPoint{Timestamp: base.Add(time.Duration(i) * time.Second), Value: float64(i)})
	}

	points := h.Points()
	if len(points) != 11 {
		t.Fatalf("expected 11 points in a 10s window, got %d", len(points))
	}
	if points[0].Value != 19 || points[len(points)-1].Value != 29 {
		t.Errorf("unexpected window bounds: first=%v last=%v", points[0].Value, points[len(points)-1].Value)
	}
}

func TestHistory_PointsIsCopy(t *testing.T) {
	h := NewHistory(time.Minute)
	h.Add(RollingPoint{Timestamp: time.Unix(1, 0), Value: 1})
	p := h.Points()
	p[0].Value = 99
	if h.Points()[0].Value != 1 {
		t.Error("Points() exposed internal storage")
	}
}

func TestHistory_SampleSkipsEmptyStore(t *testing.T) {
	h := NewHistory(time.Minute)
	store := portfolio.NewStore()
	h.sampleOnce(store, time.Unix(10, 0))
	if len(h.Points()) != 0 {
		t.Fatal("empty store should not add a point")
	}

	store.Upsert(portfolio.Pie{ID: 1, Result: portfolio.Result{CurrentValue: 42}})
	h.sampleOnce(store, time.Unix(11, 0))
	if pts := h.Points(); len(pts) != 1 || pts[0].Value != 42 {
		t.Errorf("unexpected points: %+v", pts)
	}
}
