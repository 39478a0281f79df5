package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions for the approval workflow
const (
	AuditActionRequest    = "REQUEST"
	AuditActionApprove    = "APPROVE"
	AuditActionReject     = "REJECT"
	AuditActionClarify    = "CLARIFY"
	AuditActionResubmit   = "RESUBMIT"
	AuditActionView       = "VIEW"
	AuditActionLockMonth  = "LOCK_MONTH"
	AuditActionUnlock     = "UNLOCK_MONTH"
	AuditActionCreateUser = "CREATE_USER"
	AuditActionUpdateUser = "UPDATE_USER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	AuditID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"audit_id"`
	EntityType string    `gorm:"type:varchar(50);not null;index" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"` // reference string (row id / "LIST")
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	OldData    string    `gorm:"type:jsonb" json:"old_data"`
	NewData    string    `gorm:"type:jsonb" json:"new_data"`
	ChangedBy  string    `gorm:"type:varchar(50);not null" json:"changed_by"`
	ChangedAt  time.Time `gorm:"autoCreateTime;index" json:"changed_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.AuditID == uuid.Nil {
		a.AuditID = uuid.New()
	}
	return nil
}
