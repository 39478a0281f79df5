package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashops/internal/apperr"
	"cashops/internal/model"

	"gorm.io/gorm"
)

// FileFormatPayload is the proposed_data schema for VENDOR_FILE_FORMAT requests.
type FileFormatPayload struct {
	VendorID      uint64            `json:"vendor_id"`
	FormatName    string            `json:"format_name"`
	HeaderMapping map[string]string `json:"header_mapping"`
	EffectiveFrom Date              `json:"effective_from"`
}

type FileFormatHandler struct{}

func (h *FileFormatHandler) EntityType() string { return model.EntityVendorFileFormat }

func (h *FileFormatHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p FileFormatPayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.VendorID == 0 || p.FormatName == "" || len(p.HeaderMapping) == 0 {
			return nil, fmt.Errorf("vendor_id, format_name and header_mapping are required: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		mapping, _ := json.Marshal(p.HeaderMapping)
		format := model.VendorFileFormat{
			VendorID:      p.VendorID,
			FormatName:    p.FormatName,
			HeaderMapping: string(mapping),
			Status:        model.EntityStatusInactive,
			EffectiveFrom: p.EffectiveFrom.Time,
			CreatedBy:     in.MakerID,
		}
		if err := db.Create(&format).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: format.FormatID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var format model.VendorFileFormat
		if err := db.First(&format, "format_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("file format %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: format.FormatID, OriginalData: snapshot(format)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for file formats: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *FileFormatHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	format, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if format.Status == model.EntityStatusActive && format.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		// A vendor carries at most one active format at a time.
		if err := db.Model(&model.VendorFileFormat{}).
			Where("vendor_id = ? AND format_id <> ? AND status = ?", format.VendorID, format.FormatID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(format.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		format.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p FileFormatPayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.FormatName != "" {
			format.FormatName = p.FormatName
		}
		if len(p.HeaderMapping) > 0 {
			mapping, _ := json.Marshal(p.HeaderMapping)
			format.HeaderMapping = string(mapping)
		}

	case model.ActionDeactivate:
		format.Status = model.EntityStatusInactive
		format.EffectiveTo = &now
	}

	format.ApprovedBy = approval.CheckerID
	format.ApprovedDate = &now
	return db.Save(format).Error
}

func (h *FileFormatHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	format, err := h.load(db, approval)
	if err != nil {
		return err
	}
	format.Status = model.EntityStatusRejected
	return db.Save(format).Error
}

func (h *FileFormatHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.VendorFileFormat, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no format reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var format model.VendorFileFormat
	if err := db.First(&format, "format_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file format %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &format, nil
}

// PickupRulePayload is the proposed_data schema for PICKUP_RULE requests.
type PickupRulePayload struct {
	PickupType    string `json:"pickup_type"`
	FreeLimit     int    `json:"free_limit"`
	EffectiveFrom Date   `json:"effective_from"`
}

type PickupRuleHandler struct{}

func (h *PickupRuleHandler) EntityType() string { return model.EntityPickupRule }

func (h *PickupRuleHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p PickupRulePayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.PickupType != "BEAT" && p.PickupType != "CALL" {
			return nil, fmt.Errorf("pickup_type must be BEAT or CALL: %w", apperr.ErrValidation)
		}
		if p.FreeLimit < 0 {
			return nil, fmt.Errorf("free_limit must not be negative: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		rule := model.PickupRule{
			PickupType:    p.PickupType,
			FreeLimit:     p.FreeLimit,
			Status:        model.EntityStatusInactive,
			EffectiveFrom: p.EffectiveFrom.Time,
			CreatedBy:     in.MakerID,
		}
		if err := db.Create(&rule).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: rule.RuleID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var rule model.PickupRule
		if err := db.First(&rule, "rule_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("pickup rule %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: rule.RuleID, OriginalData: snapshot(rule)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for pickup rules: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *PickupRuleHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	rule, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if rule.Status == model.EntityStatusActive && rule.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		// One active rule per pickup type.
		if err := db.Model(&model.PickupRule{}).
			Where("pickup_type = ? AND rule_id <> ? AND status = ?", rule.PickupType, rule.RuleID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(rule.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		rule.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p PickupRulePayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		rule.FreeLimit = p.FreeLimit

	case model.ActionDeactivate:
		rule.Status = model.EntityStatusInactive
		rule.EffectiveTo = &now
	}

	rule.ApprovedBy = approval.CheckerID
	rule.ApprovedDate = &now
	return db.Save(rule).Error
}

func (h *PickupRuleHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	rule, err := h.load(db, approval)
	if err != nil {
		return err
	}
	rule.Status = model.EntityStatusRejected
	return db.Save(rule).Error
}

func (h *PickupRuleHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.PickupRule, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no rule reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var rule model.PickupRule
	if err := db.First(&rule, "rule_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pickup rule %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &rule, nil
}
