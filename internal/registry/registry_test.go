package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cashops/internal/apperr"
	"cashops/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.MonthLock{},
		&model.VendorMaster{},
		&model.ReconciliationResult{},
		&model.ReconciliationCorrection{},
		&model.ExceptionRecord{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func TestHandlerUnknownEntityType(t *testing.T) {
	_, err := Default().Handler("SOMETHING_ELSE")
	if !errors.Is(err, apperr.ErrUnsupportedEntityType) {
		t.Fatalf("expected ErrUnsupportedEntityType, got %v", err)
	}
}

func TestEveryGovernedTypeIsRegistered(t *testing.T) {
	reg := Default()
	types := []string{
		model.EntityVendorMaster,
		model.EntityBankStoreMaster,
		model.EntityStoreMapping,
		model.EntityChargeConfig,
		model.EntityVendorCharge,
		model.EntityChargeSlab,
		model.EntityWaiver,
		model.EntityVendorFileFormat,
		model.EntityPickupRule,
		model.EntityRemittance,
		model.EntityExceptionResolution,
		model.EntityReconCorrection,
	}
	for _, typ := range types {
		h, err := reg.Handler(typ)
		if err != nil {
			t.Fatalf("Handler(%s): %v", typ, err)
		}
		if h.EntityType() != typ {
			t.Fatalf("Handler(%s) returned handler for %s", typ, h.EntityType())
		}
	}
}

func TestCorrectionRoutedBeforeGenericMap(t *testing.T) {
	h, err := Default().Handler(model.EntityReconCorrection)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if _, ok := h.(*CorrectionHandler); !ok {
		t.Fatalf("correction tag routed to %T", h)
	}
}

func TestDateWireFormat(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2026-03-15"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.March || d.Day() != 15 {
		t.Fatalf("parsed %v", d.Time)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2026-03-15"` {
		t.Fatalf("marshaled %s", out)
	}
}

func TestVendorStageCreateValidation(t *testing.T) {
	db := openTestDB(t)
	h := &VendorHandler{}

	_, err := h.Stage(context.Background(), db, StageInput{
		Action:   model.ActionCreate,
		Proposed: []byte(`{"vendor_name":"CMS Corp"}`),
		MakerID:  "EMP001",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing vendor_code, got %v", err)
	}
}

func TestVendorStageCreateRefusesTakenCode(t *testing.T) {
	db := openTestDB(t)
	h := &VendorHandler{}

	if err := db.Create(&model.VendorMaster{
		VendorCode: "CMS01",
		VendorName: "CMS Corp",
		Status:     model.EntityStatusActive,
	}).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	_, err := h.Stage(context.Background(), db, StageInput{
		Action:   model.ActionCreate,
		Proposed: []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp II","effective_from":"2026-04-01"}`),
		MakerID:  "EMP001",
	})
	// A taken code is a payload problem, not an open-request conflict.
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation for taken vendor code, got %v", err)
	}
	if errors.Is(err, apperr.ErrDuplicatePending) {
		t.Fatalf("taken vendor code misreported as an open-request conflict: %v", err)
	}
}

func TestVendorStageCreateInsertsInactiveRow(t *testing.T) {
	db := openTestDB(t)
	h := &VendorHandler{}

	staged, err := h.Stage(context.Background(), db, StageInput{
		Action:   model.ActionCreate,
		Proposed: []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp","effective_from":"2026-04-01"}`),
		MakerID:  "EMP001",
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	var vendor model.VendorMaster
	if err := db.First(&vendor, "vendor_id = ?", staged.EntityID).Error; err != nil {
		t.Fatalf("load staged vendor: %v", err)
	}
	if vendor.Status != model.EntityStatusInactive {
		t.Fatalf("staged status = %s, want INACTIVE", vendor.Status)
	}
	if vendor.CreatedBy != "EMP001" {
		t.Fatalf("created by = %s", vendor.CreatedBy)
	}
}

func TestVendorStageRefusesLockedMonth(t *testing.T) {
	db := openTestDB(t)
	locker := "EMP099"
	now := time.Now().UTC()
	if err := db.Create(&model.MonthLock{
		MonthKey: "202604",
		Status:   model.MonthLocked,
		LockedBy: &locker,
		LockedAt: &now,
	}).Error; err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	h := &VendorHandler{}
	_, err := h.Stage(context.Background(), db, StageInput{
		Action:   model.ActionCreate,
		Proposed: []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp","effective_from":"2026-04-10"}`),
		MakerID:  "EMP001",
	})
	if !errors.Is(err, apperr.ErrMonthLocked) {
		t.Fatalf("expected ErrMonthLocked, got %v", err)
	}
}

func TestCorrectionApplyRewritesAmountsAndResolvesExceptions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	pickup := parseAmount("1000.00")
	remitted := parseAmount("900.00")
	recon := model.ReconciliationResult{
		BankStoreCode:    "BS001",
		PickupAmount:     &pickup,
		RemittanceAmount: &remitted,
		Status:           model.ReconAmountMismatch,
		Reason:           "amounts differ",
	}
	if err := db.Create(&recon).Error; err != nil {
		t.Fatalf("seed recon: %v", err)
	}
	reconID := recon.ReconID
	exception := model.ExceptionRecord{
		ReconID:       &reconID,
		ExceptionType: model.ReconAmountMismatch,
		Status:        model.ExceptionOpen,
		CreatedBy:     "SYSTEM",
	}
	if err := db.Create(&exception).Error; err != nil {
		t.Fatalf("seed exception: %v", err)
	}

	h := &CorrectionHandler{}
	staged, err := h.Stage(ctx, db, StageInput{
		Action:   model.ActionUpdate,
		EntityID: &reconID,
		Proposed: []byte(`{"correction_type":"AMOUNT_EDIT","details":{"vendor_amount":"900.00"}}`),
		MakerID:  "EMP001",
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	checker := "EMP002"
	approval := &model.ApprovalRequest{
		ApprovalID:      42,
		EntityType:      model.EntityReconCorrection,
		RequestedAction: model.ActionUpdate,
		EntityID:        &staged.EntityID,
		CheckerID:       &checker,
	}
	if err := h.Link(ctx, db, approval.ApprovalID, staged.EntityID); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := h.Apply(ctx, db, approval); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var updated model.ReconciliationResult
	if err := db.First(&updated, "recon_id = ?", reconID).Error; err != nil {
		t.Fatalf("reload recon: %v", err)
	}
	if updated.Status != model.ReconMatched {
		t.Fatalf("recon status = %s, want MATCHED", updated.Status)
	}
	if !updated.PickupAmount.Equal(parseAmount("900.00")) {
		t.Fatalf("pickup amount = %s", updated.PickupAmount)
	}

	var resolved model.ExceptionRecord
	if err := db.First(&resolved, "exception_id = ?", exception.ExceptionID).Error; err != nil {
		t.Fatalf("reload exception: %v", err)
	}
	if resolved.Status != model.ExceptionResolved {
		t.Fatalf("exception status = %s, want RESOLVED", resolved.Status)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != checker {
		t.Fatalf("resolved by = %v", resolved.ResolvedBy)
	}

	// Re-applying after a crash between apply and status commit is a no-op.
	if err := h.Apply(ctx, db, approval); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}
}

func TestCorrectionStageRefusesMatchedResult(t *testing.T) {
	db := openTestDB(t)

	amount := parseAmount("500.00")
	recon := model.ReconciliationResult{
		BankStoreCode:    "BS001",
		PickupAmount:     &amount,
		RemittanceAmount: &amount,
		Status:           model.ReconMatched,
	}
	if err := db.Create(&recon).Error; err != nil {
		t.Fatalf("seed recon: %v", err)
	}

	h := &CorrectionHandler{}
	_, err := h.Stage(context.Background(), db, StageInput{
		Action:   model.ActionUpdate,
		EntityID: &recon.ReconID,
		Proposed: []byte(`{"correction_type":"AMOUNT_EDIT","details":{"vendor_amount":"1.00"}}`),
		MakerID:  "EMP001",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
