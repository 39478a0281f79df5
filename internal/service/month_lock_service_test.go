package service

import (
	"context"
	"errors"
	"testing"

	"cashops/internal/apperr"
	"cashops/internal/database"
	"cashops/internal/model"
	"cashops/internal/registry"
	"cashops/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var admin = model.Identity{EmployeeID: "EMP100", Name: "Admin", Role: model.RoleAdmin}

func newTestLockService(t *testing.T) (*MonthLockService, *WorkflowService, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	txManager := repository.NewTransactionManager(db)
	approvals := repository.NewApprovalRepository(db)
	audits := repository.NewAuditRepository(db)
	locks := repository.NewMonthLockRepository(db)

	lockSvc := NewMonthLockService(txManager, locks, approvals, audits)
	workflow := NewWorkflowService(db, txManager, approvals, audits, registry.Default(), NewGuard(), nil)
	return lockSvc, workflow, db
}

func TestLockRequiresAdmin(t *testing.T) {
	lockSvc, _, _ := newTestLockService(t)

	err := lockSvc.Lock(context.Background(), maker, "202604")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestLockRejectsBadMonthKey(t *testing.T) {
	lockSvc, _, _ := newTestLockService(t)

	for _, key := range []string{"2026-04", "23", "ABCDEF", ""} {
		if err := lockSvc.Lock(context.Background(), admin, key); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("key %q: expected ErrValidation, got %v", key, err)
		}
	}
}

func TestLockRefusedWhileRequestsOpen(t *testing.T) {
	lockSvc, workflow, _ := newTestLockService(t)
	ctx := context.Background()

	if _, err := workflow.Submit(ctx, maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		Reason:     "onboard vendor",
		Proposed:   []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp"}`),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := lockSvc.Lock(ctx, admin, "202604"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation while a request is open, got %v", err)
	}
}

func TestLockedMonthBlocksSubmission(t *testing.T) {
	lockSvc, workflow, _ := newTestLockService(t)
	ctx := context.Background()

	if err := lockSvc.Lock(ctx, admin, "202604"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	_, err := workflow.Submit(ctx, maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		Reason:     "onboard vendor",
		Proposed:   []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp","effective_from":"2026-04-15"}`),
	})
	if !errors.Is(err, apperr.ErrMonthLocked) {
		t.Fatalf("expected ErrMonthLocked, got %v", err)
	}

	// Unlocking reopens the month.
	if err := lockSvc.Unlock(ctx, admin, "202604"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := workflow.Submit(ctx, maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		Reason:     "onboard vendor",
		Proposed:   []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp","effective_from":"2026-04-15"}`),
	}); err != nil {
		t.Fatalf("Submit after unlock: %v", err)
	}
}

func TestLockListVisibleToAuditor(t *testing.T) {
	lockSvc, _, _ := newTestLockService(t)
	ctx := context.Background()

	if err := lockSvc.Lock(ctx, admin, "202603"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	locks, err := lockSvc.List(ctx, auditor)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 1 || locks[0].MonthKey != "202603" || locks[0].Status != model.MonthLocked {
		t.Fatalf("locks = %+v", locks)
	}

	if _, err := lockSvc.List(ctx, maker); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for maker, got %v", err)
	}
}
