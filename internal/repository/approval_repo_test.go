package repository

import (
	"context"
	"errors"
	"testing"

	"cashops/internal/apperr"
	"cashops/internal/database"
	"cashops/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB creates an in-memory sqlite DB with the full schema, including
// the open-request unique index.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func pendingRequest(entityID uint64) *model.ApprovalRequest {
	return &model.ApprovalRequest{
		EntityType:      model.EntityVendorMaster,
		RequestedAction: model.ActionUpdate,
		EntityID:        &entityID,
		OriginalData:    `{"vendor_name":"old"}`,
		ProposedData:    `{"vendor_name":"new"}`,
		Reason:          "rename vendor",
		MakerID:         "EMP001",
		CommentsHistory: "[]",
		Status:          model.ApprovalPending,
	}
}

func TestCreateRefusesSecondOpenRequest(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, pendingRequest(7)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, pendingRequest(7))
	if !errors.Is(err, apperr.ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}

	// A different target is unaffected.
	if err := repo.Create(ctx, pendingRequest(8)); err != nil {
		t.Fatalf("Create with other entity id: %v", err)
	}
}

func TestCreateAllowsNewRequestAfterResolution(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	first := pendingRequest(7)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.AppendDecision(ctx, first.ApprovalID, model.ApprovalPending, model.ApprovalRejected, "EMP002", "not needed"); err != nil {
		t.Fatalf("AppendDecision: %v", err)
	}

	if err := repo.Create(ctx, pendingRequest(7)); err != nil {
		t.Fatalf("Create after rejection: %v", err)
	}
}

// Two submissions racing on the same target can both pass any in-process
// check, so the open-request invariant has to hold in the database itself.
// Raw inserts bypass the repository entirely; the partial unique index alone
// must refuse the second open row.
func TestOpenRequestUniquenessEnforcedByDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := db.Create(pendingRequest(7)).Error; err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if err := db.Create(pendingRequest(7)).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated-key error from the index, got %v", err)
	}

	// A request parked in clarification still occupies the slot.
	if err := db.Model(&model.ApprovalRequest{}).
		Where("entity_id = ?", 7).
		Update("status", model.ApprovalClarification).Error; err != nil {
		t.Fatalf("park in clarification: %v", err)
	}
	if err := db.Create(pendingRequest(7)).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated-key error while parked, got %v", err)
	}

	// Terminal rows leave the index and free the target.
	if err := db.Model(&model.ApprovalRequest{}).
		Where("entity_id = ?", 7).
		Update("status", model.ApprovalRejected).Error; err != nil {
		t.Fatalf("close request: %v", err)
	}
	if err := db.Create(pendingRequest(7)).Error; err != nil {
		t.Fatalf("insert after resolution: %v", err)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	_, err := repo.FindByID(context.Background(), 999)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendDecisionRecordsCheckerAndHistory(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	req := pendingRequest(1)
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	decided, err := repo.AppendDecision(ctx, req.ApprovalID, model.ApprovalPending, model.ApprovalApproved, "EMP002", "looks correct")
	if err != nil {
		t.Fatalf("AppendDecision: %v", err)
	}
	if decided.Status != model.ApprovalApproved {
		t.Fatalf("status = %s, want APPROVED", decided.Status)
	}
	if decided.CheckerID == nil || *decided.CheckerID != "EMP002" {
		t.Fatalf("checker id not recorded: %v", decided.CheckerID)
	}
	if decided.DecidedDate == nil {
		t.Fatal("decided date not set")
	}

	comments := decided.Comments()
	if len(comments) != 1 {
		t.Fatalf("history length = %d, want 1", len(comments))
	}
	if comments[0].Role != model.CommentRoleChecker {
		t.Fatalf("history role = %s, want %s", comments[0].Role, model.CommentRoleChecker)
	}
	if comments[0].Comment != "looks correct" {
		t.Fatalf("checker comment = %q", comments[0].Comment)
	}
}

func TestAppendDecisionOnTerminalRequest(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	req := pendingRequest(1)
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.AppendDecision(ctx, req.ApprovalID, model.ApprovalPending, model.ApprovalApproved, "EMP002", "ok"); err != nil {
		t.Fatalf("first decision: %v", err)
	}

	_, err := repo.AppendDecision(ctx, req.ApprovalID, model.ApprovalPending, model.ApprovalRejected, "EMP003", "no")
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAppendDecisionStaleExpectation(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	req := pendingRequest(1)
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// First checker parks the request for clarification.
	if _, err := repo.AppendDecision(ctx, req.ApprovalID, model.ApprovalPending, model.ApprovalClarification, "EMP002", "why?"); err != nil {
		t.Fatalf("clarify: %v", err)
	}

	// Second checker still believes it is PENDING. The request is not
	// terminal, so this is a lost race, not an invalid transition.
	_, err := repo.AppendDecision(ctx, req.ApprovalID, model.ApprovalPending, model.ApprovalApproved, "EMP003", "ok")
	if !errors.Is(err, apperr.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestClarificationReplyReturnsToPending(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	req := pendingRequest(1)
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.AppendDecision(ctx, req.ApprovalID, model.ApprovalPending, model.ApprovalClarification, "EMP002", "please explain"); err != nil {
		t.Fatalf("clarify: %v", err)
	}

	revived, err := repo.AppendClarificationReply(ctx, req.ApprovalID, "EMP001", "explained")
	if err != nil {
		t.Fatalf("AppendClarificationReply: %v", err)
	}
	if revived.Status != model.ApprovalPending {
		t.Fatalf("status = %s, want PENDING", revived.Status)
	}
	if revived.CheckerID != nil {
		t.Fatalf("checker id should be cleared, got %v", *revived.CheckerID)
	}
	if revived.DecidedDate != nil {
		t.Fatal("decided date should be cleared")
	}
	if revived.ProposedData != req.ProposedData {
		t.Fatal("proposed data must not change through the clarification loop")
	}
	if got := len(revived.Comments()); got != 2 {
		t.Fatalf("history length = %d, want 2 (question, answer)", got)
	}
}

func TestClarificationReplyOnlyFromClarification(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	req := pendingRequest(1)
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := repo.AppendClarificationReply(ctx, req.ApprovalID, "EMP001", "nothing asked")
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCountOpen(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	a := pendingRequest(1)
	b := pendingRequest(2)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.AppendDecision(ctx, a.ApprovalID, model.ApprovalPending, model.ApprovalApproved, "EMP002", "ok"); err != nil {
		t.Fatalf("AppendDecision: %v", err)
	}

	open, err := repo.CountOpen(ctx)
	if err != nil {
		t.Fatalf("CountOpen: %v", err)
	}
	if open != 1 {
		t.Fatalf("open = %d, want 1", open)
	}
}

func TestListFilters(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	a := pendingRequest(1)
	b := pendingRequest(2)
	b.MakerID = "EMP009"
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, total, err := repo.List(ctx, ApprovalFilter{MakerID: "EMP009"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("total = %d, len = %d, want 1/1", total, len(items))
	}
	if items[0].MakerID != "EMP009" {
		t.Fatalf("maker = %s", items[0].MakerID)
	}
}
