package storage

import (
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveRefreshLog(log *RefreshLog) error {
	return r.db.Create(log).Error
}

func (r *Repository) RecentRefreshLogs(limit int) ([]RefreshLog, error) {
	var logs []RefreshLog
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// CountSince returns how many cycles ended with the given outcome after t.
func (r *Repository) CountSince(outcome string, t time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&RefreshLog{}).
		Where("outcome = ? AND created_at >= ?", outcome, t).
		Count(&n).Error
	return n, err
}

// PruneRefreshLogs deletes rows created before t and returns how many were removed.
func (r *Repository) PruneRefreshLogs(before time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", before).Delete(&RefreshLog{})
	return res.RowsAffected, res.Error
}
