package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashops/internal/apperr"
	"cashops/internal/model"
	"cashops/pkg/pagination"

	"gorm.io/gorm"
)

// ApprovalFilter narrows List results. Zero values mean "no filter".
type ApprovalFilter struct {
	Status     string
	EntityType string
	MakerID    string
	Page       int
	Limit      int
}

// ApprovalRepository is the durable store for approval requests. It owns the
// single-outstanding-request invariant and the optimistic-concurrency guard;
// everything else about the lifecycle lives in the workflow engine.
type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id uint64) (*model.ApprovalRequest, error)
	List(ctx context.Context, filter ApprovalFilter) ([]model.ApprovalRequest, int64, error)
	CountOpen(ctx context.Context) (int64, error)
	AppendDecision(ctx context.Context, id uint64, expectedStatus, newStatus, checkerID, comment string) (*model.ApprovalRequest, error)
	AppendClarificationReply(ctx context.Context, id uint64, makerID, comment string) (*model.ApprovalRequest, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

// Create persists a new request. At most one open request may exist per
// (entity_type, entity_id) target; the uq_approval_open_target partial unique
// index enforces that, so two makers racing to propose against the same
// target cannot both commit even under READ COMMITTED.
func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	if err := GetDB(ctx, r.db).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s target already has an open request: %w", req.EntityType, apperr.ErrDuplicatePending)
		}
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

func (r *approvalRepository) FindByID(ctx context.Context, id uint64) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := GetDB(ctx, r.db).First(&req, "approval_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("approval %d: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, filter ApprovalFilter) ([]model.ApprovalRequest, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.ApprovalRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.MakerID != "" {
		query = query.Where("maker_id = ?", filter.MakerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []model.ApprovalRequest
	if err := query.
		Order("created_date DESC").
		Scopes(pagination.Of(filter.Page, filter.Limit).Scope()).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// CountOpen returns the number of requests still awaiting resolution.
// The month-lock guard refuses to freeze a month while this is non-zero.
func (r *approvalRepository) CountOpen(ctx context.Context) (int64, error) {
	var open int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).
		Where("status IN ?", []string{model.ApprovalPending, model.ApprovalClarification}).
		Count(&open).Error
	return open, err
}

// AppendDecision transitions status and appends the checker's entry to the
// history. The UPDATE is guarded by a status-equality compare-and-swap: when
// two checkers race, only the first commit matches the expected status and the
// loser gets ErrConcurrentModification (or ErrInvalidTransition if the request
// meanwhile reached a terminal state).
func (r *approvalRepository) AppendDecision(ctx context.Context, id uint64, expectedStatus, newStatus, checkerID, comment string) (*model.ApprovalRequest, error) {
	db := GetDB(ctx, r.db)

	req, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, fmt.Errorf("approval %d is already %s: %w", id, req.Status, apperr.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":           newStatus,
		"checker_id":       checkerID,
		"checker_comment":  comment,
		"comments_history": model.AppendComment(req.CommentsHistory, model.CommentRoleChecker, checkerID, comment),
		"decided_date":     now,
	}

	res := db.Model(&model.ApprovalRequest{}).
		Where("approval_id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to commit decision: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.classifyConflict(ctx, id, expectedStatus)
	}

	return r.FindByID(ctx, id)
}

// AppendClarificationReply records the maker's reply and returns the request
// to PENDING, clearing the checker fields for the next reviewer. Valid only
// from CLARIFICATION_REQUESTED; proposed_data is never touched.
func (r *approvalRepository) AppendClarificationReply(ctx context.Context, id uint64, makerID, comment string) (*model.ApprovalRequest, error) {
	db := GetDB(ctx, r.db)

	req, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != model.ApprovalClarification {
		return nil, fmt.Errorf("approval %d is %s, not awaiting clarification: %w", id, req.Status, apperr.ErrInvalidTransition)
	}

	updates := map[string]interface{}{
		"status":           model.ApprovalPending,
		"checker_id":       nil,
		"checker_comment":  "",
		"comments_history": model.AppendComment(req.CommentsHistory, model.CommentRoleMaker, makerID, comment),
		"decided_date":     nil,
	}

	res := db.Model(&model.ApprovalRequest{}).
		Where("approval_id = ? AND status = ?", id, model.ApprovalClarification).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to record clarification reply: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.classifyConflict(ctx, id, model.ApprovalClarification)
	}

	return r.FindByID(ctx, id)
}

// classifyConflict distinguishes a lost race from an attempt on a terminal
// request after a zero-row CAS update.
func (r *approvalRepository) classifyConflict(ctx context.Context, id uint64, expectedStatus string) error {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current.IsTerminal() {
		return fmt.Errorf("approval %d is already %s: %w", id, current.Status, apperr.ErrInvalidTransition)
	}
	return fmt.Errorf("approval %d changed from %s to %s: %w", id, expectedStatus, current.Status, apperr.ErrConcurrentModification)
}
