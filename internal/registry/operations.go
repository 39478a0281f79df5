package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashops/internal/apperr"
	"cashops/internal/model"

	"gorm.io/gorm"
)

// RemittanceHandler governs settlement of validated remittance entries. The
// entries themselves are produced by the upload pipeline; only the settlement
// decision passes through the workflow.
type RemittanceHandler struct{}

func (h *RemittanceHandler) EntityType() string { return model.EntityRemittance }

func (h *RemittanceHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	if in.Action != model.ActionUpdate {
		return nil, fmt.Errorf("action %s not supported for remittances: %w", in.Action, apperr.ErrValidation)
	}
	id, err := requireTarget(in)
	if err != nil {
		return nil, err
	}
	var entry model.RemittanceEntry
	if err := db.First(&entry, "remittance_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("remittance %d: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	if entry.Status != model.RemittanceValidated {
		return nil, fmt.Errorf("remittance %d is %s, only VALIDATED entries can be settled: %w", id, entry.Status, apperr.ErrValidation)
	}
	if err := ensureMonthUnlocked(db, entry.CreatedDate); err != nil {
		return nil, err
	}
	return &StageResult{EntityID: entry.RemittanceID, OriginalData: snapshot(entry)}, nil
}

func (h *RemittanceHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	entry, err := h.load(db, approval)
	if err != nil {
		return err
	}
	if entry.Status == model.RemittanceApproved && entry.ApprovedBy != nil {
		return ErrAlreadyApplied
	}
	now := time.Now().UTC()
	entry.Status = model.RemittanceApproved
	entry.ApprovedBy = approval.CheckerID
	entry.ApprovedDate = &now
	return db.Save(entry).Error
}

func (h *RemittanceHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	entry, err := h.load(db, approval)
	if err != nil {
		return err
	}
	entry.Status = model.RemittanceRejected
	entry.RejectionReason = approval.CheckerComment
	return db.Save(entry).Error
}

func (h *RemittanceHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.RemittanceEntry, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no remittance reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var entry model.RemittanceEntry
	if err := db.First(&entry, "remittance_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("remittance %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &entry, nil
}

// ExceptionResolutionPayload carries the maker's proposed resolution note.
type ExceptionResolutionPayload struct {
	Remarks string `json:"remarks"`
}

// ExceptionHandler governs resolution of open reconciliation exceptions.
type ExceptionHandler struct{}

func (h *ExceptionHandler) EntityType() string { return model.EntityExceptionResolution }

func (h *ExceptionHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	if in.Action != model.ActionUpdate {
		return nil, fmt.Errorf("action %s not supported for exceptions: %w", in.Action, apperr.ErrValidation)
	}
	id, err := requireTarget(in)
	if err != nil {
		return nil, err
	}
	var p ExceptionResolutionPayload
	if err := decodePayload(in.Proposed, &p); err != nil {
		return nil, err
	}
	if p.Remarks == "" {
		return nil, fmt.Errorf("remarks are required to resolve an exception: %w", apperr.ErrValidation)
	}
	var rec model.ExceptionRecord
	if err := db.First(&rec, "exception_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exception %d: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	if rec.Status != model.ExceptionOpen {
		return nil, fmt.Errorf("exception %d is %s, only OPEN exceptions can be resolved: %w", id, rec.Status, apperr.ErrValidation)
	}
	return &StageResult{EntityID: rec.ExceptionID, OriginalData: snapshot(rec)}, nil
}

func (h *ExceptionHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	rec, err := h.load(db, approval)
	if err != nil {
		return err
	}
	if rec.Status == model.ExceptionResolved && rec.ResolvedBy != nil {
		return ErrAlreadyApplied
	}
	var p ExceptionResolutionPayload
	if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.Status = model.ExceptionResolved
	rec.Remarks = p.Remarks
	rec.ResolvedBy = approval.CheckerID
	rec.ResolvedDate = &now
	return db.Save(rec).Error
}

// Reject leaves the exception OPEN; the maker may file a new resolution.
func (h *ExceptionHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	return nil
}

func (h *ExceptionHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.ExceptionRecord, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no exception reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var rec model.ExceptionRecord
	if err := db.First(&rec, "exception_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exception %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}
