package model

import "time"

// Month lock statuses
const (
	MonthOpen   = "OPEN"
	MonthLocked = "LOCKED"
)

// MonthLock freezes a posting month. Submissions whose effective month is
// locked are refused at the workflow boundary.
type MonthLock struct {
	LockID   uint64     `gorm:"primaryKey;autoIncrement" json:"lock_id"`
	MonthKey string     `gorm:"type:varchar(6);uniqueIndex;not null" json:"month_key"` // YYYYMM
	Status   string     `gorm:"type:varchar(10);not null" json:"status"`
	LockedBy *string    `gorm:"type:varchar(50)" json:"locked_by"`
	LockedAt *time.Time `json:"locked_at"`
}

// MonthKey formats a date as the YYYYMM posting-month key.
func MonthKey(t time.Time) string {
	return t.Format("200601")
}
