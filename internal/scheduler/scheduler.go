package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camuig/pie-watch/internal/broker"
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/portfolio"
	"github.com/camuig/pie-watch/internal/storage"
)

// Source is the remote pie listing.
type Source interface {
	ListPies(ctx context.Context) ([]portfolio.Pie, error)
	FetchPieMeta(ctx context.Context, id int64) (portfolio.Meta, error)
}

// Recorder persists one row per finished cycle.
type Recorder interface {
	SaveRefreshLog(log *storage.RefreshLog) error
}

type Notifier interface {
	NotifyNewPie(r portfolio.Record)
	NotifyError(context string, err error)
}

// NopRecorder discards refresh logs; used when the database is disabled.
type NopRecorder struct{}

func (NopRecorder) SaveRefreshLog(*storage.RefreshLog) error { return nil }

const defaultFailureStreak = 5

// CycleResult summarises one refresh cycle.
type CycleResult struct {
	CycleID  string
	Outcome  string
	Pies     int
	NewPies  int
	Enriched int
	Err      error
	Finished time.Time
}

type Scheduler struct {
	source   Source
	store    *portfolio.Store
	recorder Recorder
	notifier Notifier
	interval time.Duration
	logger   *logger.Logger

	failureStreak int
	failures      int
	primed        bool
	// created during this process and not yet announced
	unannounced map[int64]bool

	mu   sync.Mutex
	last CycleResult
}

func NewScheduler(
	source Source,
	store *portfolio.Store,
	recorder Recorder,
	notifier Notifier,
	interval time.Duration,
	log *logger.Logger,
) *Scheduler {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Scheduler{
		source:        source,
		store:         store,
		recorder:      recorder,
		notifier:      notifier,
		interval:      interval,
		logger:        log,
		failureStreak: defaultFailureStreak,
		primed:        store.Len() > 0,
		unannounced:   make(map[int64]bool),
	}
}

// SetFailureStreak sets how many consecutive failed cycles trigger an error notice.
func (s *Scheduler) SetFailureStreak(n int) {
	if n > 0 {
		s.failureStreak = n
	}
}

// LastCycle returns the result of the most recently finished cycle.
func (s *Scheduler) LastCycle() CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run refreshes the store every interval until ctx is cancelled. A cycle that
// is already running when ctx is cancelled is allowed to finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval.String())

	cycleCtx := context.WithoutCancel(ctx)

	// Run immediately on start
	s.RunCycle(cycleCtx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(cycleCtx)
		}
	}
}

// RunCycle performs one fetch, reconcile and enrich pass. It never panics.
func (s *Scheduler) RunCycle(ctx context.Context) (res CycleResult) {
	res.CycleID = uuid.NewString()
	log := s.logger.With("cycle", res.CycleID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in refresh cycle", "panic", fmt.Sprint(r))
			res.Outcome = storage.OutcomeError
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Finished = time.Now()
		s.finish(log, res)
	}()

	pies, err := s.source.ListPies(ctx)
	if err != nil {
		if broker.IsSoft(err) {
			log.Debug("rate limited, skipping cycle")
			res.Outcome = storage.OutcomeRateLimited
			return res
		}
		var schemaErr *broker.SchemaError
		if errors.As(err, &schemaErr) {
			log.Error("list pies", "error", err, "body", schemaErr.Body)
		} else {
			log.Error("list pies", "error", err)
		}
		res.Outcome = storage.OutcomeError
		res.Err = err
		return res
	}

	res.Outcome = storage.OutcomeOK
	res.Pies = len(pies)

	for _, p := range pies {
		if s.store.Upsert(p) {
			res.NewPies++
			if s.primed {
				s.unannounced[p.ID] = true
			}
			log.Info("new pie", "id", p.ID)
		}
	}
	s.primed = true

	for _, p := range pies {
		if !s.store.NeedsEnrichment(p.ID) {
			continue
		}
		meta, err := s.source.FetchPieMeta(ctx, p.ID)
		if err != nil {
			// retried on the next cycle
			log.Warn("fetch pie detail", "id", p.ID, "error", err)
			continue
		}
		if s.store.SetEnrichment(p.ID, meta) {
			res.Enriched++
		}
	}

	s.announce()

	log.Info("refresh cycle completed",
		"pies", res.Pies, "new", res.NewPies, "enriched", res.Enriched)
	return res
}

// announce notifies about new pies once they carry their enrichment.
func (s *Scheduler) announce() {
	for id := range s.unannounced {
		r, ok := s.store.Get(id)
		if !ok || r.NeedsEnrichment() {
			continue
		}
		delete(s.unannounced, id)
		s.notifier.NotifyNewPie(r)
	}
}

func (s *Scheduler) finish(log *logger.Logger, res CycleResult) {
	switch res.Outcome {
	case storage.OutcomeOK:
		s.failures = 0
	case storage.OutcomeError:
		s.failures++
		if s.failures == s.failureStreak {
			s.notifier.NotifyError(fmt.Sprintf("%d consecutive failures", s.failures), res.Err)
		}
	}

	entry := &storage.RefreshLog{
		CycleID:   res.CycleID,
		Outcome:   res.Outcome,
		PiesCount: res.Pies,
		NewPies:   res.NewPies,
		Enriched:  res.Enriched,
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	if err := s.recorder.SaveRefreshLog(entry); err != nil {
		log.Error("save refresh log", "error", err)
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
}
