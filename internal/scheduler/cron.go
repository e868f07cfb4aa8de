package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/camuig/pie-watch/internal/logger"
)

// Pruner removes refresh logs older than a cutoff.
type Pruner interface {
	PruneRefreshLogs(before time.Time) (int64, error)
}

// Jobs runs the periodic housekeeping next to the refresh loop: best-effort
// state saves and daily refresh-log pruning.
type Jobs struct {
	cron   *cron.Cron
	logger *logger.Logger
}

func NewJobs(log *logger.Logger) *Jobs {
	return &Jobs{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		logger: log,
	}
}

// cronLogger routes cron's own messages, including recovered job panics, to the slog logger.
type cronLogger struct {
	logger *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

func (j *Jobs) RegisterSaver(spec string, saver *Saver) error {
	if _, err := j.cron.AddFunc(spec, func() { saver.TrySave() }); err != nil {
		return fmt.Errorf("register save job %q: %w", spec, err)
	}
	return nil
}

func (j *Jobs) RegisterPrune(spec string, pruner Pruner, retention time.Duration) error {
	_, err := j.cron.AddFunc(spec, func() {
		removed, err := pruner.PruneRefreshLogs(time.Now().Add(-retention))
		if err != nil {
			j.logger.Error("prune refresh logs", "error", err)
			return
		}
		j.logger.Info("refresh logs pruned", "removed", removed)
	})
	if err != nil {
		return fmt.Errorf("register prune job %q: %w", spec, err)
	}
	return nil
}

func (j *Jobs) Start() {
	j.cron.Start()
	j.logger.Info("jobs started", "count", len(j.cron.Entries()))
}

// Stop waits for running jobs to finish.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("jobs stopped")
}
