package scheduler

import (
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/portfolio"
)

// Saver writes the store to its state file. Failures are logged only.
type Saver struct {
	store  *portfolio.Store
	path   string
	logger *logger.Logger
}

func NewSaver(store *portfolio.Store, path string, log *logger.Logger) *Saver {
	return &Saver{store: store, path: path, logger: log}
}

// TrySave saves unless the store is busy, in which case the tick is skipped.
func (s *Saver) TrySave() bool {
	saved, err := s.store.TrySave(s.path)
	if err != nil {
		s.logger.Error("save pies", "path", s.path, "error", err)
		return false
	}
	if !saved {
		s.logger.Debug("store busy, skipping save")
		return false
	}
	s.logger.Debug("pies saved", "path", s.path)
	return true
}

// Save blocks until the store can be written. Used at shutdown.
func (s *Saver) Save() error {
	if err := s.store.Save(s.path); err != nil {
		s.logger.Error("save pies", "path", s.path, "error", err)
		return err
	}
	s.logger.Info("pies saved", "path", s.path)
	return nil
}
