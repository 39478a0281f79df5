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

var (
	maker   = model.Identity{EmployeeID: "EMP001", Name: "Maker One", Role: model.RoleMaker}
	checker = model.Identity{EmployeeID: "EMP002", Name: "Checker Two", Role: model.RoleChecker}
	auditor = model.Identity{EmployeeID: "EMP003", Name: "Auditor Three", Role: model.RoleAuditor}
)

func newTestWorkflow(t *testing.T) (*WorkflowService, *gorm.DB) {
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
	svc := NewWorkflowService(db, txManager, approvals, audits, registry.Default(), NewGuard(), nil)
	return svc, db
}

func submitVendorCreate(t *testing.T, svc *WorkflowService, code string) *model.ApprovalRequest {
	t.Helper()
	approval, err := svc.Submit(context.Background(), maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		Reason:     "onboard new pickup vendor",
		Proposed:   []byte(`{"vendor_code":"` + code + `","vendor_name":"CMS Corp","effective_from":"2026-04-01"}`),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return approval
}

func TestSubmitRequiresReason(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	_, err := svc.Submit(context.Background(), maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		Reason:     "   ",
		Proposed:   []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp"}`),
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSubmitUnknownEntityType(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	_, err := svc.Submit(context.Background(), maker, SubmitInput{
		EntityType: "MYSTERY",
		Action:     model.ActionCreate,
		Reason:     "because",
		Proposed:   []byte(`{}`),
	})
	if !errors.Is(err, apperr.ErrUnsupportedEntityType) {
		t.Fatalf("expected ErrUnsupportedEntityType, got %v", err)
	}
}

func TestSubmitForbiddenForChecker(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	_, err := svc.Submit(context.Background(), checker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		Reason:     "checker filing",
		Proposed:   []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp"}`),
	})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSubmitOnBehalfOfAnotherMaker(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	_, err := svc.Submit(context.Background(), maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionCreate,
		MakerID:    "EMP777",
		Reason:     "impersonation",
		Proposed:   []byte(`{"vendor_code":"CMS01","vendor_name":"CMS Corp"}`),
	})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestVendorCreateLifecycle(t *testing.T) {
	svc, db := newTestWorkflow(t)
	ctx := context.Background()

	approval := submitVendorCreate(t, svc, "CMS01")
	if approval.Status != model.ApprovalPending {
		t.Fatalf("status = %s, want PENDING", approval.Status)
	}
	if approval.EntityID == nil {
		t.Fatal("submit did not stage an entity row")
	}

	var staged model.VendorMaster
	if err := db.First(&staged, "vendor_id = ?", *approval.EntityID).Error; err != nil {
		t.Fatalf("load staged vendor: %v", err)
	}
	if staged.Status != model.EntityStatusInactive {
		t.Fatalf("staged vendor status = %s, want INACTIVE", staged.Status)
	}

	decided, err := svc.Approve(ctx, checker, approval.ApprovalID, "verified with contract")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if decided.Status != model.ApprovalApproved {
		t.Fatalf("status = %s, want APPROVED", decided.Status)
	}

	var active model.VendorMaster
	if err := db.First(&active, "vendor_id = ?", *approval.EntityID).Error; err != nil {
		t.Fatalf("load vendor: %v", err)
	}
	if active.Status != model.EntityStatusActive {
		t.Fatalf("vendor status = %s, want ACTIVE", active.Status)
	}
	if active.ApprovedBy == nil || *active.ApprovedBy != checker.EmployeeID {
		t.Fatalf("approved by = %v", active.ApprovedBy)
	}

	// A decided request is immutable.
	if _, err := svc.Reject(ctx, checker, approval.ApprovalID, "changed my mind"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSelfApprovalForbidden(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	approval := submitVendorCreate(t, svc, "CMS01")
	sameMakerAsChecker := model.Identity{EmployeeID: maker.EmployeeID, Role: model.RoleChecker}

	_, err := svc.Approve(context.Background(), sameMakerAsChecker, approval.ApprovalID, "approving my own work")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuditorCannotDecide(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	approval := submitVendorCreate(t, svc, "CMS01")
	_, err := svc.Approve(context.Background(), auditor, approval.ApprovalID, "auditor approving")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireCommentOnDecision(t *testing.T) {
	svc, _ := newTestWorkflow(t)

	approval := submitVendorCreate(t, svc, "CMS01")
	if _, err := svc.Approve(context.Background(), checker, approval.ApprovalID, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Reject(context.Background(), checker, approval.ApprovalID, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestClarificationRoundTrip(t *testing.T) {
	svc, _ := newTestWorkflow(t)
	ctx := context.Background()

	approval := submitVendorCreate(t, svc, "CMS01")

	parked, err := svc.RequestClarification(ctx, checker, approval.ApprovalID, "which contract covers this vendor?")
	if err != nil {
		t.Fatalf("RequestClarification: %v", err)
	}
	if parked.Status != model.ApprovalClarification {
		t.Fatalf("status = %s, want CLARIFICATION_REQUESTED", parked.Status)
	}

	// Only the original maker can answer.
	otherMaker := model.Identity{EmployeeID: "EMP009", Role: model.RoleMaker}
	if _, err := svc.Resubmit(ctx, otherMaker, approval.ApprovalID, "noting from the side"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign maker, got %v", err)
	}

	revived, err := svc.Resubmit(ctx, maker, approval.ApprovalID, "contract C-2026-17, attached to the ticket")
	if err != nil {
		t.Fatalf("Resubmit: %v", err)
	}
	if revived.Status != model.ApprovalPending {
		t.Fatalf("status = %s, want PENDING", revived.Status)
	}
	if revived.ProposedData != approval.ProposedData {
		t.Fatal("proposed data changed during the clarification loop")
	}

	decided, err := svc.Approve(ctx, checker, approval.ApprovalID, "contract verified")
	if err != nil {
		t.Fatalf("Approve after resubmit: %v", err)
	}
	// The submission reason stays in the reason column; the history holds
	// exactly the clarification exchange plus the decision.
	comments := decided.Comments()
	if len(comments) != 3 {
		t.Fatalf("history length = %d, want 3 (question, answer, decision)", len(comments))
	}
	wantRoles := []string{model.CommentRoleChecker, model.CommentRoleMaker, model.CommentRoleChecker}
	for i, want := range wantRoles {
		if comments[i].Role != want {
			t.Fatalf("comment %d role = %s, want %s", i, comments[i].Role, want)
		}
	}
}

func TestRejectCreateMarksEntityRejected(t *testing.T) {
	svc, db := newTestWorkflow(t)

	approval := submitVendorCreate(t, svc, "CMS01")
	if _, err := svc.Reject(context.Background(), checker, approval.ApprovalID, "duplicate of CMS00"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	var vendor model.VendorMaster
	if err := db.First(&vendor, "vendor_id = ?", *approval.EntityID).Error; err != nil {
		t.Fatalf("load vendor: %v", err)
	}
	if vendor.Status != model.EntityStatusRejected {
		t.Fatalf("vendor status = %s, want REJECTED", vendor.Status)
	}
}

func TestSingleOpenRequestPerTarget(t *testing.T) {
	svc, db := newTestWorkflow(t)
	ctx := context.Background()

	vendor := model.VendorMaster{
		VendorCode: "CMS01",
		VendorName: "CMS Corp",
		Status:     model.EntityStatusActive,
		CreatedBy:  "EMP000",
	}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	update := SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionUpdate,
		EntityID:   &vendor.VendorID,
		Reason:     "rename after rebrand",
		Proposed:   []byte(`{"vendor_name":"CMS Corporation"}`),
	}
	if _, err := svc.Submit(ctx, maker, update); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, maker, update); !errors.Is(err, apperr.ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
}

func TestApplyFailureLeavesRequestPending(t *testing.T) {
	svc, db := newTestWorkflow(t)
	ctx := context.Background()

	vendor := model.VendorMaster{
		VendorCode: "CMS01",
		VendorName: "CMS Corp",
		Status:     model.EntityStatusActive,
		CreatedBy:  "EMP000",
	}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	approval, err := svc.Submit(ctx, maker, SubmitInput{
		EntityType: model.EntityVendorMaster,
		Action:     model.ActionUpdate,
		EntityID:   &vendor.VendorID,
		Reason:     "rename",
		Proposed:   []byte(`{"vendor_name":"CMS Corporation"}`),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The governed row vanishes before the decision; Apply must fail and the
	// whole transaction roll back.
	if err := db.Delete(&model.VendorMaster{}, "vendor_id = ?", vendor.VendorID).Error; err != nil {
		t.Fatalf("delete vendor: %v", err)
	}

	if _, err := svc.Approve(ctx, checker, approval.ApprovalID, "ok"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from apply, got %v", err)
	}

	current, err := svc.Get(ctx, auditor, approval.ApprovalID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Status != model.ApprovalPending {
		t.Fatalf("status after failed apply = %s, want PENDING", current.Status)
	}
}

func TestAuditTrailWritten(t *testing.T) {
	svc, db := newTestWorkflow(t)
	ctx := context.Background()

	approval := submitVendorCreate(t, svc, "CMS01")
	if _, err := svc.Approve(ctx, checker, approval.ApprovalID, "verified"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	var actions []string
	if err := db.Model(&model.AuditLog{}).Order("changed_at").Pluck("action", &actions).Error; err != nil {
		t.Fatalf("load audit actions: %v", err)
	}
	if len(actions) != 2 || actions[0] != model.AuditActionRequest || actions[1] != model.AuditActionApprove {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestListPendingFiltersByStatus(t *testing.T) {
	svc, _ := newTestWorkflow(t)
	ctx := context.Background()

	first := submitVendorCreate(t, svc, "CMS01")
	submitVendorCreate(t, svc, "CMS02")
	if _, err := svc.Approve(ctx, checker, first.ApprovalID, "ok"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	items, total, err := svc.ListPending(ctx, checker, "", 1, 20)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("pending total = %d, len = %d, want 1/1", total, len(items))
	}
	if items[0].Status != model.ApprovalPending {
		t.Fatalf("listed status = %s", items[0].Status)
	}
}
