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

// ChargeConfigPayload is the proposed_data schema for CHARGE_CONFIG requests.
type ChargeConfigPayload struct {
	ConfigCode    string `json:"config_code"`
	ConfigName    string `json:"config_name"`
	ValueNumber   string `json:"value_number"`
	ValueText     string `json:"value_text"`
	UnitOfMeasure string `json:"unit_of_measure"`
	EffectiveFrom Date   `json:"effective_from"`
}

type ChargeConfigHandler struct{}

func (h *ChargeConfigHandler) EntityType() string { return model.EntityChargeConfig }

func (h *ChargeConfigHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p ChargeConfigPayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.ConfigCode == "" || p.ConfigName == "" {
			return nil, fmt.Errorf("config_code and config_name are required: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		cfg := model.ChargeConfig{
			ConfigCode:    p.ConfigCode,
			ConfigName:    p.ConfigName,
			ValueText:     p.ValueText,
			UnitOfMeasure: p.UnitOfMeasure,
			Status:        model.EntityStatusInactive,
			EffectiveFrom: p.EffectiveFrom.Time,
			CreatedBy:     in.MakerID,
		}
		if p.ValueNumber != "" {
			v := parseAmount(p.ValueNumber)
			cfg.ValueNumber = &v
		}
		if err := db.Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: cfg.ConfigID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var cfg model.ChargeConfig
		if err := db.First(&cfg, "config_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("charge config %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: cfg.ConfigID, OriginalData: snapshot(cfg)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for charge configs: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *ChargeConfigHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	cfg, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if cfg.Status == model.EntityStatusActive && cfg.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		if err := db.Model(&model.ChargeConfig{}).
			Where("config_code = ? AND config_id <> ? AND status = ?", cfg.ConfigCode, cfg.ConfigID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(cfg.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		cfg.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p ChargeConfigPayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.ConfigName != "" {
			cfg.ConfigName = p.ConfigName
		}
		if p.ValueNumber != "" {
			v := parseAmount(p.ValueNumber)
			cfg.ValueNumber = &v
		}
		if p.ValueText != "" {
			cfg.ValueText = p.ValueText
		}
		if p.UnitOfMeasure != "" {
			cfg.UnitOfMeasure = p.UnitOfMeasure
		}

	case model.ActionDeactivate:
		cfg.Status = model.EntityStatusInactive
		cfg.EffectiveTo = &now
	}

	cfg.ApprovedBy = approval.CheckerID
	cfg.ApprovedDate = &now
	return db.Save(cfg).Error
}

func (h *ChargeConfigHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	cfg, err := h.load(db, approval)
	if err != nil {
		return err
	}
	cfg.Status = model.EntityStatusRejected
	return db.Save(cfg).Error
}

func (h *ChargeConfigHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.ChargeConfig, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no config reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var cfg model.ChargeConfig
	if err := db.First(&cfg, "config_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("charge config %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &cfg, nil
}

// VendorChargePayload is the proposed_data schema for VENDOR_CHARGE requests.
type VendorChargePayload struct {
	VendorID      uint64 `json:"vendor_id"`
	PickupType    string `json:"pickup_type"`
	BaseCharge    string `json:"base_charge"`
	EffectiveFrom Date   `json:"effective_from"`
}

type VendorChargeHandler struct{}

func (h *VendorChargeHandler) EntityType() string { return model.EntityVendorCharge }

func (h *VendorChargeHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p VendorChargePayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.VendorID == 0 || (p.PickupType != "BEAT" && p.PickupType != "CALL") {
			return nil, fmt.Errorf("vendor_id and pickup_type (BEAT/CALL) are required: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		charge := model.VendorCharge{
			VendorID:      p.VendorID,
			PickupType:    p.PickupType,
			BaseCharge:    parseAmount(p.BaseCharge),
			Status:        model.EntityStatusInactive,
			EffectiveFrom: p.EffectiveFrom.Time,
			CreatedBy:     in.MakerID,
		}
		if err := db.Create(&charge).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: charge.VendorChargeID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var charge model.VendorCharge
		if err := db.First(&charge, "vendor_charge_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("vendor charge %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: charge.VendorChargeID, OriginalData: snapshot(charge)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for vendor charges: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *VendorChargeHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	charge, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if charge.Status == model.EntityStatusActive && charge.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		// One active base charge per vendor and pickup type.
		if err := db.Model(&model.VendorCharge{}).
			Where("vendor_id = ? AND pickup_type = ? AND vendor_charge_id <> ? AND status = ?",
				charge.VendorID, charge.PickupType, charge.VendorChargeID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(charge.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		charge.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p VendorChargePayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.BaseCharge != "" {
			charge.BaseCharge = parseAmount(p.BaseCharge)
		}

	case model.ActionDeactivate:
		charge.Status = model.EntityStatusInactive
		charge.EffectiveTo = &now
	}

	charge.ApprovedBy = approval.CheckerID
	charge.ApprovedDate = &now
	return db.Save(charge).Error
}

func (h *VendorChargeHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	charge, err := h.load(db, approval)
	if err != nil {
		return err
	}
	charge.Status = model.EntityStatusRejected
	return db.Save(charge).Error
}

func (h *VendorChargeHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.VendorCharge, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no charge reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var charge model.VendorCharge
	if err := db.First(&charge, "vendor_charge_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("vendor charge %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &charge, nil
}

// ChargeSlabPayload is the proposed_data schema for CUSTOMER_CHARGE_SLAB requests.
type ChargeSlabPayload struct {
	VendorID      uint64 `json:"vendor_id"`
	AmountFrom    string `json:"amount_from"`
	AmountTo      string `json:"amount_to"`
	ChargeAmount  string `json:"charge_amount"`
	SlabLabel     string `json:"slab_label"`
	EffectiveFrom Date   `json:"effective_from"`
}

type ChargeSlabHandler struct{}

func (h *ChargeSlabHandler) EntityType() string { return model.EntityChargeSlab }

func (h *ChargeSlabHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p ChargeSlabPayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		from, to := parseAmount(p.AmountFrom), parseAmount(p.AmountTo)
		if p.VendorID == 0 || to.LessThanOrEqual(from) {
			return nil, fmt.Errorf("vendor_id and an ascending amount band are required: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		slab := model.ChargeSlab{
			VendorID:      p.VendorID,
			AmountFrom:    from,
			AmountTo:      to,
			ChargeAmount:  parseAmount(p.ChargeAmount),
			SlabLabel:     p.SlabLabel,
			Status:        model.EntityStatusInactive,
			EffectiveFrom: p.EffectiveFrom.Time,
			CreatedBy:     in.MakerID,
		}
		if err := db.Create(&slab).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: slab.SlabID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var slab model.ChargeSlab
		if err := db.First(&slab, "slab_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("charge slab %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: slab.SlabID, OriginalData: snapshot(slab)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for charge slabs: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *ChargeSlabHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	slab, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if slab.Status == model.EntityStatusActive && slab.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		slab.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p ChargeSlabPayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.AmountFrom != "" {
			slab.AmountFrom = parseAmount(p.AmountFrom)
		}
		if p.AmountTo != "" {
			slab.AmountTo = parseAmount(p.AmountTo)
		}
		if p.ChargeAmount != "" {
			slab.ChargeAmount = parseAmount(p.ChargeAmount)
		}
		if p.SlabLabel != "" {
			slab.SlabLabel = p.SlabLabel
		}

	case model.ActionDeactivate:
		slab.Status = model.EntityStatusInactive
		slab.EffectiveTo = &now
	}

	slab.ApprovedBy = approval.CheckerID
	slab.ApprovedDate = &now
	return db.Save(slab).Error
}

func (h *ChargeSlabHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	slab, err := h.load(db, approval)
	if err != nil {
		return err
	}
	slab.Status = model.EntityStatusRejected
	return db.Save(slab).Error
}

func (h *ChargeSlabHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.ChargeSlab, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no slab reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var slab model.ChargeSlab
	if err := db.First(&slab, "slab_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("charge slab %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &slab, nil
}

// WaiverPayload is the proposed_data schema for WAIVER requests.
type WaiverPayload struct {
	CustomerID       string `json:"customer_id"`
	WaiverType       string `json:"waiver_type"`
	WaiverPercentage string `json:"waiver_percentage"`
	WaiverCapAmount  string `json:"waiver_cap_amount"`
	WaiverFrom       Date   `json:"waiver_from"`
	WaiverTo         Date   `json:"waiver_to"`
}

type WaiverHandler struct{}

func (h *WaiverHandler) EntityType() string { return model.EntityWaiver }

func (h *WaiverHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p WaiverPayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.CustomerID == "" {
			return nil, fmt.Errorf("customer_id is required: %w", apperr.ErrValidation)
		}
		switch p.WaiverType {
		case "PERCENT", "CAP", "BOTH":
		default:
			return nil, fmt.Errorf("waiver_type must be PERCENT, CAP or BOTH: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.WaiverFrom.Time); err != nil {
			return nil, err
		}
		waiver := model.Waiver{
			CustomerID: p.CustomerID,
			WaiverType: p.WaiverType,
			WaiverFrom: p.WaiverFrom.Time,
			Status:     model.EntityStatusInactive,
			CreatedBy:  in.MakerID,
		}
		if p.WaiverPercentage != "" {
			v := parseAmount(p.WaiverPercentage)
			waiver.WaiverPercentage = &v
		}
		if p.WaiverCapAmount != "" {
			v := parseAmount(p.WaiverCapAmount)
			waiver.WaiverCapAmount = &v
		}
		if !p.WaiverTo.IsZero() {
			waiver.WaiverTo = &p.WaiverTo.Time
		}
		if err := db.Create(&waiver).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: waiver.WaiverID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var waiver model.Waiver
		if err := db.First(&waiver, "waiver_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("waiver %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: waiver.WaiverID, OriginalData: snapshot(waiver)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for waivers: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *WaiverHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	waiver, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if waiver.Status == model.EntityStatusActive && waiver.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		waiver.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p WaiverPayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.WaiverPercentage != "" {
			v := parseAmount(p.WaiverPercentage)
			waiver.WaiverPercentage = &v
		}
		if p.WaiverCapAmount != "" {
			v := parseAmount(p.WaiverCapAmount)
			waiver.WaiverCapAmount = &v
		}
		if !p.WaiverTo.IsZero() {
			waiver.WaiverTo = &p.WaiverTo.Time
		}

	case model.ActionDeactivate:
		waiver.Status = model.EntityStatusInactive
		end := now
		waiver.WaiverTo = &end
	}

	waiver.ApprovedBy = approval.CheckerID
	waiver.ApprovedDate = &now
	return db.Save(waiver).Error
}

func (h *WaiverHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	waiver, err := h.load(db, approval)
	if err != nil {
		return err
	}
	waiver.Status = model.EntityStatusRejected
	return db.Save(waiver).Error
}

func (h *WaiverHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.Waiver, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no waiver reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var waiver model.Waiver
	if err := db.First(&waiver, "waiver_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("waiver %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &waiver, nil
}
