package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Remittance entry lifecycle
const (
	RemittanceUploaded  = "UPLOADED"
	RemittanceValidated = "VALIDATED"
	RemittanceApproved  = "APPROVED"
	RemittanceRejected  = "REJECTED"
	RemittanceClosed    = "CLOSED"
)

// Reconciliation result statuses
const (
	ReconMatched        = "MATCHED"
	ReconAmountMismatch = "AMOUNT_MISMATCH"
	ReconDateMismatch   = "DATE_MISMATCH"
	ReconMissingFinacle = "MISSING_FINACLE"
	ReconMissingVendor  = "MISSING_VENDOR"
)

// Exception record statuses
const (
	ExceptionOpen      = "OPEN"
	ExceptionResolved  = "RESOLVED"
	ExceptionEscalated = "ESCALATED"
)

// Correction action kinds carried in proposed_data
const (
	CorrectionAmountEdit = "AMOUNT_EDIT"
)

// RemittanceEntry tracks the settlement state of a matched pickup transaction.
type RemittanceEntry struct {
	RemittanceID    uint64     `gorm:"primaryKey;autoIncrement" json:"remittance_id"`
	CanonicalID     uint64     `gorm:"not null;index" json:"canonical_id"`
	Source          string     `gorm:"type:varchar(10);not null" json:"source"` // FINACLE or VENDOR
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason string     `gorm:"type:varchar(255)" json:"rejection_reason"`
	CreatedBy       string     `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate     time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy      *string    `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate    *time.Time `json:"approved_date"`
	ClosedDate      *time.Time `json:"closed_date"`
}

// ReconciliationResult is one comparison of a vendor pickup record against a
// bank remittance record. The matching arithmetic that produces these rows is
// outside the workflow; corrections to them are governed by it.
type ReconciliationResult struct {
	ReconID           uint64           `gorm:"primaryKey;autoIncrement" json:"recon_id"`
	FinacleCanonicalID *uint64         `json:"finacle_canonical_id"`
	VendorCanonicalID *uint64          `json:"vendor_canonical_id"`
	BankStoreCode     string           `gorm:"type:varchar(30);not null;index" json:"bank_store_code"`
	PickupDate        *time.Time       `json:"pickup_date"`
	RemittanceDate    *time.Time       `json:"remittance_date"`
	PickupAmount      *decimal.Decimal `gorm:"type:numeric(18,2)" json:"pickup_amount"`
	RemittanceAmount  *decimal.Decimal `gorm:"type:numeric(18,2)" json:"remittance_amount"`
	Status            string           `gorm:"type:varchar(20);not null;index" json:"status"`
	Reason            string           `gorm:"type:varchar(255)" json:"reason"`
	CreatedDate       time.Time        `gorm:"autoCreateTime" json:"created_date"`
}

// ReconciliationCorrection is the governed row for a proposed edit to a
// reconciliation result. It is reached through its own endpoint family rather
// than the generic collection map.
type ReconciliationCorrection struct {
	CorrectionID uint64     `gorm:"primaryKey;autoIncrement" json:"correction_id"`
	ReconID      uint64     `gorm:"not null;index" json:"recon_id"`
	ApprovalID   uint64     `gorm:"not null;uniqueIndex" json:"approval_id"`
	ProposedData string     `gorm:"type:jsonb;not null" json:"proposed_data"`
	Status       string     `gorm:"type:varchar(20);not null" json:"status"`
	MakerID      string     `gorm:"type:varchar(50);not null" json:"maker_id"`
	CheckerID    *string    `gorm:"type:varchar(50)" json:"checker_id"`
	CreatedDate  time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ApprovedDate *time.Time `json:"approved_date"`
}

// ExceptionRecord is an unresolved reconciliation discrepancy awaiting
// investigation; resolving it is itself a governed action.
type ExceptionRecord struct {
	ExceptionID   uint64     `gorm:"primaryKey;autoIncrement" json:"exception_id"`
	ReconID       *uint64    `gorm:"index" json:"recon_id"`
	ExceptionType string     `gorm:"type:varchar(50);not null" json:"exception_type"`
	Status        string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Details       string     `gorm:"type:varchar(255)" json:"details"`
	Remarks       string     `gorm:"type:varchar(255)" json:"remarks"`
	CreatedBy     string     `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate   time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ResolvedBy    *string    `gorm:"type:varchar(50)" json:"resolved_by"`
	ResolvedDate  *time.Time `json:"resolved_date"`
}
