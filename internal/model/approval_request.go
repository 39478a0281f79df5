package model

import (
	"encoding/json"
	"time"
)

// ApprovalRequest status enum constants
const (
	ApprovalPending       = "PENDING"
	ApprovalApproved      = "APPROVED"
	ApprovalRejected      = "REJECTED"
	ApprovalClarification = "CLARIFICATION_REQUESTED"
)

// Requested action enum constants
const (
	ActionCreate     = "CREATE"
	ActionUpdate     = "UPDATE"
	ActionDeactivate = "DEACTIVATE"
)

// Entity type tags governed by the approval workflow
const (
	EntityVendorMaster        = "VENDOR_MASTER"
	EntityBankStoreMaster     = "BANK_STORE_MASTER"
	EntityChargeConfig        = "CHARGE_CONFIG"
	EntityVendorCharge        = "VENDOR_CHARGE"
	EntityChargeSlab          = "CUSTOMER_CHARGE_SLAB"
	EntityWaiver              = "WAIVER"
	EntityVendorFileFormat    = "VENDOR_FILE_FORMAT"
	EntityStoreMapping        = "STORE_MAPPING"
	EntityPickupRule          = "PICKUP_RULE"
	EntityRemittance          = "REMITTANCE"
	EntityReconCorrection     = "RECONCILIATION_CORRECTION"
	EntityExceptionResolution = "EXCEPTION_RESOLUTION"
)

// Comment roles recorded in the decision history
const (
	CommentRoleMaker   = "MAKER"
	CommentRoleChecker = "CHECKER"
)

// ApprovalRequest represents one proposed change awaiting maker-checker resolution.
// The proposed_data snapshot is captured at creation and never mutated; the
// clarification loop only appends commentary.
type ApprovalRequest struct {
	ApprovalID      uint64     `gorm:"primaryKey;autoIncrement" json:"approval_id"`
	EntityType      string     `gorm:"type:varchar(50);not null;index:idx_approval_target" json:"entity_type"`
	RequestedAction string     `gorm:"type:varchar(20);not null" json:"requested_action"`
	EntityID        *uint64    `gorm:"index:idx_approval_target" json:"entity_id"` // row id of the governed entity; nil until staged
	OriginalData    string     `gorm:"type:jsonb;not null" json:"original_data"`   // snapshot of the entity before the change
	ProposedData    string     `gorm:"type:jsonb;not null" json:"proposed_data"`   // snapshot of the proposed change, immutable
	Reason          string     `gorm:"type:varchar(255);not null" json:"reason"`
	MakerID         string     `gorm:"type:varchar(50);not null;index" json:"maker_id"`
	CheckerID       *string    `gorm:"type:varchar(50)" json:"checker_id"`
	CheckerComment  string     `gorm:"type:varchar(255)" json:"checker_comment"`
	CommentsHistory string     `gorm:"type:jsonb" json:"-"` // append-only JSON array of CommentEntry
	Status          string     `gorm:"type:varchar(30);not null;default:'PENDING';index" json:"status"`
	CreatedDate     time.Time  `gorm:"autoCreateTime" json:"created_date"`
	DecidedDate     *time.Time `json:"decided_date"`
}

// CommentEntry is one item of the append-only decision history.
type CommentEntry struct {
	Role      string    `json:"role"`
	UserID    string    `json:"user_id"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// IsTerminal reports whether no further transition may be applied.
func (a *ApprovalRequest) IsTerminal() bool {
	return a.Status == ApprovalApproved || a.Status == ApprovalRejected
}

// Comments decodes the stored history. A corrupt or empty column yields an
// empty slice rather than an error so listings never fail on legacy rows.
func (a *ApprovalRequest) Comments() []CommentEntry {
	if a.CommentsHistory == "" {
		return []CommentEntry{}
	}
	var entries []CommentEntry
	if err := json.Unmarshal([]byte(a.CommentsHistory), &entries); err != nil {
		return []CommentEntry{}
	}
	return entries
}

// AppendComment adds an entry to the history and returns the re-encoded column value.
func AppendComment(existing string, role, userID, comment string) string {
	entries := (&ApprovalRequest{CommentsHistory: existing}).Comments()
	entries = append(entries, CommentEntry{
		Role:      role,
		UserID:    userID,
		Comment:   comment,
		Timestamp: time.Now().UTC(),
	})
	encoded, _ := json.Marshal(entries)
	return string(encoded)
}
