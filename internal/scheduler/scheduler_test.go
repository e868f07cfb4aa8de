package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/camuig/pie-watch/internal/broker"
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/portfolio"
	"github.com/camuig/pie-watch/internal/storage"
)

type fakeSource struct {
	mu        sync.Mutex
	pies      []portfolio.Pie
	listErr   error
	metaErr   map[int64]error
	names     map[int64]string
	metaCalls map[int64]int
	panicking bool
}

func newFakeSource(pies ...portfolio.Pie) *fakeSource {
	return &fakeSource{
		pies:      pies,
		metaErr:   make(map[int64]error),
		names:     make(map[int64]string),
		metaCalls: make(map[int64]int),
	}
}

func (f *fakeSource) ListPies(ctx context.Context) ([]portfolio.Pie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicking {
		panic("decoder exploded")
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]portfolio.Pie(nil), f.pies...), nil
}

func (f *fakeSource) FetchPieMeta(ctx context.Context, id int64) (portfolio.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls[id]++
	if err := f.metaErr[id]; err != nil {
		return portfolio.Meta{}, err
	}
	name, ok := f.names[id]
	if !ok {
		name = fmt.Sprintf("Pie %d", id)
	}
	return portfolio.Meta{CreatedAt: 1_700_000_000 + float64(id), Name: name}, nil
}

func (f *fakeSource) calls(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls[id]
}

type fakeRecorder struct {
	logs []storage.RefreshLog
}

func (f *fakeRecorder) SaveRefreshLog(log *storage.RefreshLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

type fakeNotifier struct {
	newPies []portfolio.Record
	errors  []string
}

func (f *fakeNotifier) NotifyNewPie(r portfolio.Record) { f.newPies = append(f.newPies, r) }

func (f *fakeNotifier) NotifyError(context string, err error) {
	f.errors = append(f.errors, context)
}

func pie(id int64, invested, current float64) portfolio.Pie {
	return portfolio.Pie{
		ID:     id,
		Result: portfolio.Result{InvestedValue: invested, CurrentValue: current},
	}
}

func newTestScheduler(src *fakeSource, store *portfolio.Store) (*Scheduler, *fakeRecorder, *fakeNotifier) {
	rec := &fakeRecorder{}
	n := &fakeNotifier{}
	return NewScheduler(src, store, rec, n, time.Second, logger.Discard()), rec, n
}

func TestRunCycle_ReconcilesAndEnriches(t *testing.T) {
	src := newFakeSource(pie(1, 100, 110), pie(2, 50, 45))
	store := portfolio.NewStore()
	s, rec, _ := newTestScheduler(src, store)

	res := s.RunCycle(context.Background())
	if res.Outcome != storage.OutcomeOK || res.Pies != 2 || res.NewPies != 2 || res.Enriched != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	r, ok := store.Get(1)
	if !ok || r.NeedsEnrichment() || *r.Name != "Pie 1" || r.Result.CurrentValue != 110 {
		t.Errorf("record not merged: %+v", r)
	}
	if len(rec.logs) != 1 || rec.logs[0].CycleID != res.CycleID || rec.logs[0].NewPies != 2 {
		t.Errorf("unexpected refresh logs: %+v", rec.logs)
	}
	if s.LastCycle().CycleID != res.CycleID {
		t.Error("LastCycle not updated")
	}
}

func TestRunCycle_RateLimitLeavesStoreUntouched(t *testing.T) {
	src := newFakeSource(pie(1, 100, 110))
	store := portfolio.NewStore()
	s, rec, _ := newTestScheduler(src, store)
	s.RunCycle(context.Background())

	before, err := portfolio.EncodeState(store.Snapshot())
	if err != nil {
		t.Fatal(err)
	}

	src.mu.Lock()
	src.pies = []portfolio.Pie{pie(1, 999, 999), pie(7, 1, 1)}
	src.listErr = fmt.Errorf("list pies: %w", broker.ErrRateLimited)
	src.mu.Unlock()

	res := s.RunCycle(context.Background())
	if res.Outcome != storage.OutcomeRateLimited || res.Err != nil {
		t.Errorf("unexpected result: %+v", res)
	}

	after, _ := portfolio.EncodeState(store.Snapshot())
	if !bytes.Equal(before, after) {
		t.Errorf("store changed on 429:\nbefore %s\nafter  %s", before, after)
	}
	if last := rec.logs[len(rec.logs)-1]; last.Outcome != storage.OutcomeRateLimited {
		t.Errorf("expected rate_limited log, got %+v", last)
	}
}

func TestRunCycle_ErrorSkipsMutation(t *testing.T) {
	src := newFakeSource(pie(1, 100, 110))
	src.listErr = &broker.SchemaError{Body: "<html>", Err: errors.New("envelope: no array field")}
	store := portfolio.NewStore()
	s, rec, _ := newTestScheduler(src, store)

	res := s.RunCycle(context.Background())
	if res.Outcome != storage.OutcomeError || res.Err == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.Len() != 0 {
		t.Errorf("store should be empty, has %d", store.Len())
	}
	if rec.logs[0].Error == "" {
		t.Error("error text not recorded")
	}
}

func TestRunCycle_EnrichmentRetriedNextCycle(t *testing.T) {
	src := newFakeSource(pie(1, 100, 110))
	src.metaErr[1] = errors.New("timeout")
	store := portfolio.NewStore()
	s, _, _ := newTestScheduler(src, store)

	res := s.RunCycle(context.Background())
	if res.Outcome != storage.OutcomeOK || res.Enriched != 0 {
		t.Fatalf("unexpected first result: %+v", res)
	}
	if !store.NeedsEnrichment(1) {
		t.Fatal("record should still need enrichment")
	}

	src.mu.Lock()
	delete(src.metaErr, 1)
	src.mu.Unlock()

	res = s.RunCycle(context.Background())
	if res.Enriched != 1 || store.NeedsEnrichment(1) {
		t.Errorf("enrichment not retried: %+v", res)
	}
	if src.calls(1) != 2 {
		t.Errorf("meta calls = %d, want 2", src.calls(1))
	}
}

func TestRunCycle_EnrichmentFetchedOnce(t *testing.T) {
	src := newFakeSource(pie(1, 100, 110))
	store := portfolio.NewStore()
	s, _, _ := newTestScheduler(src, store)
	s.RunCycle(context.Background())

	src.mu.Lock()
	src.names[1] = "Renamed"
	src.pies = []portfolio.Pie{pie(1, 100, 150)}
	src.mu.Unlock()

	for i := 0; i < 3; i++ {
		s.RunCycle(context.Background())
	}
	if src.calls(1) != 1 {
		t.Errorf("meta calls = %d, want 1", src.calls(1))
	}
	r, _ := store.Get(1)
	if *r.Name != "Pie 1" || r.Result.CurrentValue != 150 {
		t.Errorf("enrichment must stay, live fields must update: %+v", r)
	}
}

func TestRunCycle_VanishedPiesKept(t *testing.T) {
	src := newFakeSource(pie(1, 1, 1), pie(2, 2, 2))
	store := portfolio.NewStore()
	s, _, _ := newTestScheduler(src, store)
	s.RunCycle(context.Background())

	src.mu.Lock()
	src.pies = []portfolio.Pie{pie(2, 3, 3)}
	src.mu.Unlock()
	s.RunCycle(context.Background())

	if _, ok := store.Get(1); !ok {
		t.Error("pie missing from the listing should not be evicted")
	}
}

func TestRunCycle_AnnouncesNewPiesAfterFirstCycle(t *testing.T) {
	src := newFakeSource(pie(1, 100, 110))
	store := portfolio.NewStore()
	s, _, n := newTestScheduler(src, store)

	s.RunCycle(context.Background())
	if len(n.newPies) != 0 {
		t.Fatalf("initial pies should not be announced, got %d", len(n.newPies))
	}

	src.mu.Lock()
	src.pies = append(src.pies, pie(3, 20, 20))
	src.metaErr[3] = errors.New("busy")
	src.mu.Unlock()
	s.RunCycle(context.Background())
	if len(n.newPies) != 0 {
		t.Fatal("pie should be announced only once it has its name")
	}

	src.mu.Lock()
	delete(src.metaErr, 3)
	src.mu.Unlock()
	s.RunCycle(context.Background())
	s.RunCycle(context.Background())
	if len(n.newPies) != 1 || n.newPies[0].ID != 3 || *n.newPies[0].Name != "Pie 3" {
		t.Errorf("unexpected announcements: %+v", n.newPies)
	}
}

func TestRunCycle_FailureStreakNotifiesOnce(t *testing.T) {
	src := newFakeSource(pie(1, 1, 1))
	src.listErr = &broker.StatusError{StatusCode: 502, Path: "/equity/pies"}
	s, _, n := newTestScheduler(src, portfolio.NewStore())
	s.SetFailureStreak(3)

	for i := 0; i < 5; i++ {
		s.RunCycle(context.Background())
	}
	if len(n.errors) != 1 {
		t.Fatalf("expected one notice per streak, got %d", len(n.errors))
	}

	// rate limiting neither breaks nor extends a streak
	src.mu.Lock()
	src.listErr = broker.ErrRateLimited
	src.mu.Unlock()
	s.RunCycle(context.Background())

	src.mu.Lock()
	src.listErr = nil
	src.mu.Unlock()
	s.RunCycle(context.Background())

	src.mu.Lock()
	src.listErr = errors.New("dial tcp: connection refused")
	src.mu.Unlock()
	for i := 0; i < 3; i++ {
		s.RunCycle(context.Background())
	}
	if len(n.errors) != 2 {
		t.Errorf("expected a second notice after recovery, got %d", len(n.errors))
	}
}

func TestRunCycle_RecoversFromPanic(t *testing.T) {
	src := newFakeSource()
	src.panicking = true
	s, rec, _ := newTestScheduler(src, portfolio.NewStore())

	res := s.RunCycle(context.Background())
	if res.Outcome != storage.OutcomeError || res.Err == nil {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(rec.logs) != 1 {
		t.Errorf("panicking cycle should still be recorded")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := newFakeSource(pie(1, 1, 1))
	store := portfolio.NewStore()
	s := NewScheduler(src, store, nil, &fakeNotifier{}, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if store.Len() != 1 {
		t.Errorf("expected the immediate cycle to populate the store")
	}
}

func TestSaver(t *testing.T) {
	store := portfolio.NewStore()
	store.Upsert(pie(5, 10, 12))
	path := filepath.Join(t.TempDir(), "pies.json")
	saver := NewSaver(store, path, logger.Discard())

	if !saver.TrySave() {
		t.Fatal("TrySave() = false on an idle store")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file not written: %v", err)
	}

	loaded, err := portfolio.Load(path)
	if err != nil || loaded.Len() != 1 {
		t.Errorf("reload = %d records, %v", loaded.Len(), err)
	}

	bad := NewSaver(store, filepath.Join(path, "nested", "pies.json"), logger.Discard())
	if bad.Save() == nil {
		t.Error("expected an error writing below a regular file")
	}
}

type fakePruner struct {
	mu     sync.Mutex
	cutoff time.Time
}

func (f *fakePruner) PruneRefreshLogs(before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = before
	return 3, nil
}

func TestJobs(t *testing.T) {
	j := NewJobs(logger.Discard())
	if err := j.RegisterSaver("not a schedule", nil); err == nil {
		t.Error("expected invalid spec error")
	}

	store := portfolio.NewStore()
	store.Upsert(pie(1, 1, 1))
	path := filepath.Join(t.TempDir(), "pies.json")
	if err := j.RegisterSaver("@every 1s", NewSaver(store, path, logger.Discard())); err != nil {
		t.Fatal(err)
	}
	p := &fakePruner{}
	if err := j.RegisterPrune("@every 1s", p, time.Hour); err != nil {
		t.Fatal(err)
	}

	j.Start()
	time.Sleep(1500 * time.Millisecond)
	j.Stop()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("save job did not run: %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cutoff.IsZero() || time.Since(p.cutoff) < time.Hour {
		t.Errorf("prune cutoff = %v, want about an hour ago", p.cutoff)
	}
}

type panickingPruner struct{}

func (panickingPruner) PruneRefreshLogs(time.Time) (int64, error) { panic("database gone") }

func TestJobs_PanicIsLogged(t *testing.T) {
	var buf bytes.Buffer
	j := NewJobs(logger.NewWithWriter(&buf, "info", "text"))
	if err := j.RegisterPrune("@every 1s", panickingPruner{}, time.Hour); err != nil {
		t.Fatal(err)
	}

	j.Start()
	time.Sleep(1500 * time.Millisecond)
	j.Stop()

	if out := buf.String(); !strings.Contains(out, "cron: panic") || !strings.Contains(out, "database gone") {
		t.Errorf("recovered panic not logged:\n%s", out)
	}
}
