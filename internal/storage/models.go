package storage

import "time"

const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// RefreshLog is one refresh cycle's outcome. It carries counts only, never pie values.
type RefreshLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	CycleID   string `gorm:"uniqueIndex;not null" json:"cycle_id"`
	Outcome   string `gorm:"index;not null" json:"outcome"` // ok, rate_limited, error
	PiesCount int    `json:"pies_count"`
	NewPies   int    `json:"new_pies"`
	Enriched  int    `json:"enriched"`
	Error     string `gorm:"type:text" json:"error"`
}
