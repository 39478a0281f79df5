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

// VendorPayload is the proposed_data schema for VENDOR_MASTER requests.
type VendorPayload struct {
	VendorCode    string `json:"vendor_code"`
	VendorName    string `json:"vendor_name"`
	EffectiveFrom Date   `json:"effective_from"`
}

type VendorHandler struct{}

func (h *VendorHandler) EntityType() string { return model.EntityVendorMaster }

func (h *VendorHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p VendorPayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.VendorCode == "" || p.VendorName == "" {
			return nil, fmt.Errorf("vendor_code and vendor_name are required: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		var existing int64
		if err := db.Model(&model.VendorMaster{}).
			Where("vendor_code = ? AND status <> ?", p.VendorCode, model.EntityStatusRejected).
			Count(&existing).Error; err != nil {
			return nil, err
		}
		if existing > 0 {
			return nil, fmt.Errorf("vendor code %s is already in use: %w", p.VendorCode, apperr.ErrValidation)
		}
		vendor := model.VendorMaster{
			VendorCode:    p.VendorCode,
			VendorName:    p.VendorName,
			Status:        model.EntityStatusInactive,
			EffectiveFrom: p.EffectiveFrom.Time,
			CreatedBy:     in.MakerID,
		}
		if err := db.Create(&vendor).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: vendor.VendorID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var vendor model.VendorMaster
		if err := db.First(&vendor, "vendor_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("vendor %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: vendor.VendorID, OriginalData: snapshot(vendor)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for vendors: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *VendorHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	vendor, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if vendor.Status == model.EntityStatusActive && vendor.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		// An approved vendor supersedes any older active row with the same code.
		if err := db.Model(&model.VendorMaster{}).
			Where("vendor_code = ? AND vendor_id <> ? AND status = ?", vendor.VendorCode, vendor.VendorID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(vendor.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		vendor.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p VendorPayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.VendorName != "" {
			vendor.VendorName = p.VendorName
		}
		if !p.EffectiveFrom.IsZero() {
			vendor.EffectiveFrom = p.EffectiveFrom.Time
		}

	case model.ActionDeactivate:
		if vendor.Status == model.EntityStatusInactive && vendor.ApprovedBy != nil && vendor.EffectiveTo != nil {
			return ErrAlreadyApplied
		}
		vendor.Status = model.EntityStatusInactive
		vendor.EffectiveTo = &now
	}

	vendor.ApprovedBy = approval.CheckerID
	vendor.ApprovedDate = &now
	return db.Save(vendor).Error
}

func (h *VendorHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	vendor, err := h.load(db, approval)
	if err != nil {
		return err
	}
	vendor.Status = model.EntityStatusRejected
	return db.Save(vendor).Error
}

func (h *VendorHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.VendorMaster, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no vendor reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var vendor model.VendorMaster
	if err := db.First(&vendor, "vendor_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("vendor %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &vendor, nil
}

// BankStorePayload is the proposed_data schema for BANK_STORE_MASTER requests.
type BankStorePayload struct {
	BankStoreCode    string `json:"bank_store_code"`
	StoreName        string `json:"store_name"`
	SolID            string `json:"sol_id"`
	Location         string `json:"location"`
	Frequency        string `json:"frequency"`
	DailyPickupLimit string `json:"daily_pickup_limit"`
	DepositionBranch string `json:"deposition_branch"`
	FixedCharge      string `json:"fixed_charge"`
	EffectiveFrom    Date   `json:"effective_from"`
}

type BankStoreHandler struct{}

func (h *BankStoreHandler) EntityType() string { return model.EntityBankStoreMaster }

func (h *BankStoreHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p BankStorePayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.BankStoreCode == "" {
			return nil, fmt.Errorf("bank_store_code is required: %w", apperr.ErrValidation)
		}
		if err := ensureMonthUnlocked(db, p.EffectiveFrom.Time); err != nil {
			return nil, err
		}
		store := model.BankStoreMaster{
			BankStoreCode:    p.BankStoreCode,
			StoreName:        p.StoreName,
			SolID:            p.SolID,
			Location:         p.Location,
			Frequency:        p.Frequency,
			DailyPickupLimit: parseAmount(p.DailyPickupLimit),
			DepositionBranch: p.DepositionBranch,
			FixedCharge:      parseAmount(p.FixedCharge),
			Status:           model.EntityStatusInactive,
			EffectiveFrom:    p.EffectiveFrom.Time,
			CreatedBy:        in.MakerID,
		}
		if err := db.Create(&store).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: store.StoreID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var store model.BankStoreMaster
		if err := db.First(&store, "store_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("bank store %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: store.StoreID, OriginalData: snapshot(store)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for bank stores: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *BankStoreHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	store, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if store.Status == model.EntityStatusActive && store.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		if err := db.Model(&model.BankStoreMaster{}).
			Where("bank_store_code = ? AND store_id <> ? AND status = ?", store.BankStoreCode, store.StoreID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(store.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		store.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p BankStorePayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.StoreName != "" {
			store.StoreName = p.StoreName
		}
		if p.Location != "" {
			store.Location = p.Location
		}
		if p.Frequency != "" {
			store.Frequency = p.Frequency
		}
		if p.DailyPickupLimit != "" {
			store.DailyPickupLimit = parseAmount(p.DailyPickupLimit)
		}
		if p.FixedCharge != "" {
			store.FixedCharge = parseAmount(p.FixedCharge)
		}

	case model.ActionDeactivate:
		if store.Status == model.EntityStatusInactive && store.ApprovedBy != nil && store.EffectiveTo != nil {
			return ErrAlreadyApplied
		}
		store.Status = model.EntityStatusInactive
		store.EffectiveTo = &now
	}

	store.ApprovedBy = approval.CheckerID
	store.ApprovedDate = &now
	return db.Save(store).Error
}

func (h *BankStoreHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	store, err := h.load(db, approval)
	if err != nil {
		return err
	}
	store.Status = model.EntityStatusRejected
	return db.Save(store).Error
}

func (h *BankStoreHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.BankStoreMaster, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no store reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var store model.BankStoreMaster
	if err := db.First(&store, "store_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bank store %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &store, nil
}

// StoreMappingPayload is the proposed_data schema for STORE_MAPPING requests.
type StoreMappingPayload struct {
	VendorID        uint64 `json:"vendor_id"`
	VendorStoreCode string `json:"vendor_store_code"`
	BankStoreCode   string `json:"bank_store_code"`
	CustomerID      string `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	AccountNo       string `json:"account_no"`
	EffectiveFrom   Date   `json:"effective_from"`
}

type StoreMappingHandler struct{}

func (h *StoreMappingHandler) EntityType() string { return model.EntityStoreMapping }

func (h *StoreMappingHandler) Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error) {
	switch in.Action {
	case model.ActionCreate:
		var p StoreMappingPayload
		if err := decodePayload(in.Proposed, &p); err != nil {
			return nil, err
		}
		if p.BankStoreCode == "" {
			return nil, fmt.Errorf("bank_store_code is required: %w", apperr.ErrValidation)
		}
		effective := p.EffectiveFrom.Time
		if effective.IsZero() {
			effective = time.Now().UTC()
		}
		if err := ensureMonthUnlocked(db, effective); err != nil {
			return nil, err
		}
		if p.VendorID != 0 {
			var vendors int64
			if err := db.Model(&model.VendorMaster{}).Where("vendor_id = ?", p.VendorID).Count(&vendors).Error; err != nil {
				return nil, err
			}
			if vendors == 0 {
				return nil, fmt.Errorf("vendor %d: %w", p.VendorID, apperr.ErrNotFound)
			}
		}
		mapping := model.StoreMapping{
			VendorID:        p.VendorID,
			VendorStoreCode: p.VendorStoreCode,
			BankStoreCode:   p.BankStoreCode,
			CustomerID:      p.CustomerID,
			CustomerName:    p.CustomerName,
			AccountNo:       p.AccountNo,
			Status:          model.EntityStatusInactive,
			EffectiveFrom:   effective,
			CreatedBy:       in.MakerID,
		}
		if err := db.Create(&mapping).Error; err != nil {
			return nil, err
		}
		return &StageResult{EntityID: mapping.MappingID, OriginalData: "{}"}, nil

	case model.ActionUpdate, model.ActionDeactivate:
		id, err := requireTarget(in)
		if err != nil {
			return nil, err
		}
		var mapping model.StoreMapping
		if err := db.First(&mapping, "mapping_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("mapping %d: %w", id, apperr.ErrNotFound)
			}
			return nil, err
		}
		return &StageResult{EntityID: mapping.MappingID, OriginalData: snapshot(mapping)}, nil

	default:
		return nil, fmt.Errorf("action %s not supported for store mappings: %w", in.Action, apperr.ErrValidation)
	}
}

func (h *StoreMappingHandler) Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	mapping, err := h.load(db, approval)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch approval.RequestedAction {
	case model.ActionCreate:
		if mapping.Status == model.EntityStatusActive && mapping.ApprovedBy != nil {
			return ErrAlreadyApplied
		}
		if err := db.Model(&model.StoreMapping{}).
			Where("vendor_id = ? AND vendor_store_code = ? AND mapping_id <> ? AND status = ?",
				mapping.VendorID, mapping.VendorStoreCode, mapping.MappingID, model.EntityStatusActive).
			Updates(map[string]interface{}{
				"status":       model.EntityStatusInactive,
				"effective_to": dayBefore(mapping.EffectiveFrom),
			}).Error; err != nil {
			return err
		}
		mapping.Status = model.EntityStatusActive

	case model.ActionUpdate:
		var p StoreMappingPayload
		if err := decodePayload([]byte(approval.ProposedData), &p); err != nil {
			return err
		}
		if p.CustomerID != "" {
			mapping.CustomerID = p.CustomerID
		}
		if p.CustomerName != "" {
			mapping.CustomerName = p.CustomerName
		}
		if p.AccountNo != "" {
			mapping.AccountNo = p.AccountNo
		}

	case model.ActionDeactivate:
		if mapping.Status == model.EntityStatusInactive && mapping.ApprovedBy != nil && mapping.EffectiveTo != nil {
			return ErrAlreadyApplied
		}
		mapping.Status = model.EntityStatusInactive
		mapping.EffectiveTo = &now
	}

	mapping.ApprovedBy = approval.CheckerID
	mapping.ApprovedDate = &now
	return db.Save(mapping).Error
}

func (h *StoreMappingHandler) Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error {
	if approval.RequestedAction != model.ActionCreate {
		return nil
	}
	mapping, err := h.load(db, approval)
	if err != nil {
		return err
	}
	mapping.Status = model.EntityStatusRejected
	return db.Save(mapping).Error
}

func (h *StoreMappingHandler) load(db *gorm.DB, approval *model.ApprovalRequest) (*model.StoreMapping, error) {
	if approval.EntityID == nil {
		return nil, fmt.Errorf("approval %d has no mapping reference: %w", approval.ApprovalID, apperr.ErrNotFound)
	}
	var mapping model.StoreMapping
	if err := db.First(&mapping, "mapping_id = ?", *approval.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("mapping %d: %w", *approval.EntityID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &mapping, nil
}
