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

// Linker is implemented by handlers whose staged rows carry a back-reference
// to the approval that governs them. The workflow calls Link once the
// approval row exists, inside the same transaction as Stage.
type Linker interface {
	Link(ctx context.Context, db *gorm.DB, approvalID, entityID uint64) error
}

// CorrectionPayload is the proposed_data schema for RECONCILIATION_CORRECTION
// requests.
type CorrectionPayload struct {
	CorrectionType string            `json:"correction_type"`
	Details        CorrectionDetails `json:"details"`
}

// CorrectionDetails carries the replacement amounts for an AMOUNT_EDIT.
// Amounts travel as strings to keep precision across the wire.
type CorrectionDetails struct {
	VendorAmount  string `json:"vendor_amount"`
	FinacleAmount string `json:"finacle_amount"`
}

// CorrectionHandler governs edits to reconciliation results. It is routed
// ahead of the generic entity map because corrections keep their own governed
// row and their approval reshapes match statuses downstream.
type CorrectionHandler struct{}

func (h *CorrectionHandler) EntityType() string { return model.EntityReconCorrection }

func (h *CorrectionHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	if in.Action != model.ActionUpdate {
		return nil, fmt.Errorf("action %s not supported for corrections: %w", in.Action, apperr.ErrValidation)
	}
	reconID, err := requireTarget(in)
	if err != nil {
		return nil, err
	}
	var p CorrectionPayload
	if err := decodePayload(in.Proposed, &p); err != nil {
		return nil, err
	}
	if p.CorrectionType != model.CorrectionAmountEdit {
		return nil, fmt.Errorf("unknown correction_type %q: %w", p.CorrectionType, apperr.ErrValidation)
	}
	if p.Details.VendorAmount == "" && p.Details.FinacleAmount == "" {
		return nil, fmt.Errorf("an amount edit must carry at least one replacement amount: %w", apperr.ErrValidation)
	}

	var recon model.ReconciliationResult
	if err := db.First(&recon, "recon_id = ?", reconID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reconciliation result %d: %w", reconID, apperr.ErrNotFound)
		}
		return nil, err
	}
	if recon.Status == model.ReconMatched {
		return nil, fmt.Errorf("reconciliation result %d is already MATCHED: %w", reconID, apperr.ErrValidation)
	}
	base := recon.CreatedDate
	if recon.PickupDate != nil {
		base = *recon.PickupDate
	}
	if err := ensureMonthUnlocked(db, base); err != nil {
		return nil, err
	}

	// Each correction stages its own row, so the generic per-entity guard
	// cannot see a second submission against the same result.
	var open int64
	if err := db.Model(&model.ReconciliationCorrection{}).
		Where("recon_id = ? AND status = ?", recon.ReconID, model.ApprovalPending).
		Count(&open).Error; err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, fmt.Errorf("reconciliation result %d already has an open correction: %w", recon.ReconID, apperr.ErrDuplicatePending)
	}

	correction := model.ReconciliationCorrection{
		ReconID:      recon.ReconID,
		ProposedData: string(in.Proposed),
		Status:       model.ApprovalPending,
		MakerID:      in.MakerID,
	}
	if err := db.Create(&correction).Error; err != nil {
		return nil, err
	}
	return &StageResult{EntityID: correction.CorrectionID, OriginalData: snapshot(recon)}, nil
}

func (h *CorrectionHandler) Link(ctx context.Context, db *gorm.DB, approvalID, entityID uint64) error {
	return db.Model(&model.ReconciliationCorrection{}).
		Where("correction_id = ?", entityID).
		Update("approval_id", approvalID).Error
}

func (h *CorrectionHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	correction, err := h.load(db, approval)
	if err != nil {
		return err
	}
	if correction.Status == model.ApprovalApproved {
		return ErrAlreadyApplied
	}
	var p CorrectionPayload
	if err := decodePayload([]byte(correction.ProposedData), &p); err != nil {
		return err
	}

	var recon model.ReconciliationResult
	if err := db.First(&recon, "recon_id = ?", correction.ReconID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reconciliation result %d: %w", correction.ReconID, apperr.ErrNotFound)
		}
		return err
	}

	if p.Details.VendorAmount != "" {
		amt := parseAmount(p.Details.VendorAmount)
		recon.PickupAmount = &amt
	}
	if p.Details.FinacleAmount != "" {
		amt := parseAmount(p.Details.FinacleAmount)
		recon.RemittanceAmount = &amt
	}
	if recon.PickupAmount != nil && recon.RemittanceAmount != nil {
		if recon.PickupAmount.Equal(*recon.RemittanceAmount) {
			recon.Status = model.ReconMatched
			recon.Reason = ""
		} else {
			recon.Status = model.ReconAmountMismatch
			recon.Reason = fmt.Sprintf("amounts differ after correction %d", correction.CorrectionID)
		}
	}
	if err := db.Save(&recon).Error; err != nil {
		return err
	}

	// A match closes every open exception hanging off this result.
	if recon.Status == model.ReconMatched {
		now := time.Now().UTC()
		if err := db.Model(&model.ExceptionRecord{}).
			Where("recon_id = ? AND status = ?", recon.ReconID, model.ExceptionOpen).
			Updates(map[string]interface{}{
				"status":        model.ExceptionResolved,
				"remarks":       fmt.Sprintf("resolved by correction %d", correction.CorrectionID),
				"resolved_by":   approval.CheckerID,
				"resolved_date": &now,
			}).Error; err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	correction.Status = model.ApprovalApproved
	correction.CheckerID = approval.CheckerID
	correction.ApprovedDate = &now
	return db.Save(correction).Error
}

func (h *CorrectionHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	correction, err := h.load(db, approval)
	if err != nil {
		return err
	}
	correction.Status = model.ApprovalRejected
	correction.CheckerID = approval.CheckerID
	return db.Save(correction).Error
}

func (h *CorrectionHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.ReconciliationCorrection, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no correction reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var correction model.ReconciliationCorrection
	if err := db.First(&correction, "correction_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("correction %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &correction, nil
}
