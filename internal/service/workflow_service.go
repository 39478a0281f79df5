package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cashops/internal/apperr"
	"cashops/internal/model"
	"cashops/internal/registry"
	"cashops/internal/repository"
	"cashops/internal/websocket"

	"gorm.io/gorm"
)

// SubmitInput is everything a maker provides when filing a request.
type SubmitInput struct {
	EntityType string          `json:"entity_type"`
	Action     string          `json:"action"`
	EntityID   *uint64         `json:"entity_id"`
	MakerID    string          `json:"maker_id"`
	Reason     string          `json:"reason"`
	Proposed   json.RawMessage `json:"proposed_data"`
}

// WorkflowService drives every approval request through its lifecycle. All
// state changes run inside a single transaction so that a failed side effect
// leaves the request where it was.
type WorkflowService struct {
	db        *gorm.DB
	txManager repository.TransactionManager
	approvals repository.ApprovalRepository
	audits    repository.AuditRepository
	registry  *registry.Registry
	guard     *Guard
	hub       *websocket.Hub
}

func NewWorkflowService(
	db *gorm.DB,
	txManager repository.TransactionManager,
	approvals repository.ApprovalRepository,
	audits repository.AuditRepository,
	reg *registry.Registry,
	guard *Guard,
	hub *websocket.Hub,
) *WorkflowService {
	return &WorkflowService{
		db:        db,
		txManager: txManager,
		approvals: approvals,
		audits:    audits,
		registry:  reg,
		guard:     guard,
		hub:       hub,
	}
}

// Submit stages the proposed change and files a PENDING approval request for
// it. At most one open request may exist per entity at a time.
func (s *WorkflowService) Submit(ctx context.Context, actor model.Identity, in SubmitInput) (*model.ApprovalRequest, error) {
	if err := s.guard.CanSubmit(actor, in.MakerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("a submission reason is required: %w", apperr.ErrValidation)
	}
	handler, err := s.registry.Handler(in.EntityType)
	if err != nil {
		return nil, err
	}

	var approval *model.ApprovalRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		db := repository.GetDB(txCtx, s.db)
		staged, err := handler.Stage(txCtx, db, registry.StageInput{
			Action:   in.Action,
			EntityID: in.EntityID,
			Proposed: in.Proposed,
			MakerID:  actor.EmployeeID,
		})
		if err != nil {
			return err
		}

		req := &model.ApprovalRequest{
			EntityType:      in.EntityType,
			RequestedAction: in.Action,
			EntityID:        &staged.EntityID,
			OriginalData:    staged.OriginalData,
			ProposedData:    string(in.Proposed),
			Reason:          in.Reason,
			MakerID:         actor.EmployeeID,
			// The history records decisions and clarification replies;
			// the submission rationale lives in the reason column.
			CommentsHistory: "[]",
			Status:          model.ApprovalPending,
		}
		if err := s.approvals.Create(txCtx, req); err != nil {
			return err
		}
		if linker, ok := handler.(registry.Linker); ok {
			if err := linker.Link(txCtx, db, req.ApprovalID, staged.EntityID); err != nil {
				return err
			}
		}
		approval = req
		return s.recordAudit(txCtx, actor, model.AuditActionRequest, req, "{}", req.ProposedData)
	})
	if err != nil {
		return nil, err
	}

	s.notify("SUBMITTED", approval, actor)
	return approval, nil
}

// Approve applies the staged change and moves the request to APPROVED. Apply
// runs before the status flips so that an apply failure leaves the request
// PENDING; a request already applied by an interrupted earlier attempt is
// detected and only the status commit is replayed.
func (s *WorkflowService) Approve(ctx context.Context, actor model.Identity, approvalID uint64, comment string) (*model.ApprovalRequest, error) {
	return s.decide(ctx, actor, approvalID, comment, model.ApprovalApproved)
}

// Reject discards the staged change and moves the request to REJECTED.
func (s *WorkflowService) Reject(ctx context.Context, actor model.Identity, approvalID uint64, comment string) (*model.ApprovalRequest, error) {
	return s.decide(ctx, actor, approvalID, comment, model.ApprovalRejected)
}

func (s *WorkflowService) decide(ctx context.Context, actor model.Identity, approvalID uint64, comment, newStatus string) (*model.ApprovalRequest, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("a decision comment is required: %w", apperr.ErrValidation)
	}

	var decided *model.ApprovalRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		approval, err := s.approvals.FindByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if err := s.guard.CanDecide(actor, approval); err != nil {
			return err
		}

		db := repository.GetDB(txCtx, s.db)
		handler, err := s.registry.Handler(approval.EntityType)
		if err != nil {
			return err
		}
		approval.CheckerID = &actor.EmployeeID
		approval.CheckerComment = comment

		switch newStatus {
		case model.ApprovalApproved:
			if err := handler.Apply(txCtx, db, approval); err != nil && !errors.Is(err, registry.ErrAlreadyApplied) {
				return err
			}
		case model.ApprovalRejected:
			if err := handler.Reject(txCtx, db, approval); err != nil {
				return err
			}
		}

		decided, err = s.approvals.AppendDecision(txCtx, approvalID, model.ApprovalPending, newStatus, actor.EmployeeID, comment)
		if err != nil {
			return err
		}
		action := model.AuditActionApprove
		if newStatus == model.ApprovalRejected {
			action = model.AuditActionReject
		}
		return s.recordAudit(txCtx, actor, action, decided, decided.OriginalData, decided.ProposedData)
	})
	if err != nil {
		return nil, err
	}

	s.notify(decided.Status, decided, actor)
	return decided, nil
}

// RequestClarification parks a PENDING request until its maker responds. No
// entity state changes.
func (s *WorkflowService) RequestClarification(ctx context.Context, actor model.Identity, approvalID uint64, comment string) (*model.ApprovalRequest, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("a clarification question is required: %w", apperr.ErrValidation)
	}

	var parked *model.ApprovalRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		approval, err := s.approvals.FindByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if err := s.guard.CanDecide(actor, approval); err != nil {
			return err
		}
		parked, err = s.approvals.AppendDecision(txCtx, approvalID, model.ApprovalPending, model.ApprovalClarification, actor.EmployeeID, comment)
		if err != nil {
			return err
		}
		return s.recordAudit(txCtx, actor, model.AuditActionClarify, parked, "{}", "{}")
	})
	if err != nil {
		return nil, err
	}

	s.notify(model.ApprovalClarification, parked, actor)
	return parked, nil
}

// Resubmit answers a clarification and returns the request to PENDING for a
// fresh decision. The staged data is left untouched.
func (s *WorkflowService) Resubmit(ctx context.Context, actor model.Identity, approvalID uint64, comment string) (*model.ApprovalRequest, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("a response comment is required: %w", apperr.ErrValidation)
	}

	var revived *model.ApprovalRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		approval, err := s.approvals.FindByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if err := s.guard.CanResubmit(actor, approval); err != nil {
			return err
		}
		revived, err = s.approvals.AppendClarificationReply(txCtx, approvalID, actor.EmployeeID, comment)
		if err != nil {
			return err
		}
		return s.recordAudit(txCtx, actor, model.AuditActionResubmit, revived, "{}", "{}")
	})
	if err != nil {
		return nil, err
	}

	s.notify(model.ApprovalPending, revived, actor)
	return revived, nil
}

// Get returns a single request with its full comment history.
func (s *WorkflowService) Get(ctx context.Context, actor model.Identity, approvalID uint64) (*model.ApprovalRequest, error) {
	if err := s.guard.CanView(actor); err != nil {
		return nil, err
	}
	return s.approvals.FindByID(ctx, approvalID)
}

// List returns requests under the given filter. Checkers typically ask for
// the PENDING queue; makers for their own clarifications.
func (s *WorkflowService) List(ctx context.Context, actor model.Identity, filter repository.ApprovalFilter) ([]model.ApprovalRequest, int64, error) {
	if err := s.guard.CanView(actor); err != nil {
		return nil, 0, err
	}
	return s.approvals.List(ctx, filter)
}

// ListPending is the checker work queue, oldest first.
func (s *WorkflowService) ListPending(ctx context.Context, actor model.Identity, entityType string, page, limit int) ([]model.ApprovalRequest, int64, error) {
	return s.List(ctx, actor, repository.ApprovalFilter{
		Status:     model.ApprovalPending,
		EntityType: entityType,
		Page:       page,
		Limit:      limit,
	})
}

// ListClarifications is the maker's queue of requests waiting on a response.
func (s *WorkflowService) ListClarifications(ctx context.Context, actor model.Identity, page, limit int) ([]model.ApprovalRequest, int64, error) {
	return s.List(ctx, actor, repository.ApprovalFilter{
		Status:  model.ApprovalClarification,
		MakerID: actor.EmployeeID,
		Page:    page,
		Limit:   limit,
	})
}

func (s *WorkflowService) recordAudit(ctx context.Context, actor model.Identity, action string, approval *model.ApprovalRequest, oldData, newData string) error {
	return s.audits.Log(ctx, &model.AuditLog{
		EntityType: approval.EntityType,
		EntityID:   strconv.FormatUint(approval.ApprovalID, 10),
		Action:     action,
		OldData:    oldData,
		NewData:    newData,
		ChangedBy:  actor.EmployeeID,
	})
}

func (s *WorkflowService) notify(kind string, approval *model.ApprovalRequest, actor model.Identity) {
	if s.hub == nil || approval == nil {
		return
	}
	s.hub.Notify(websocket.Event{
		Kind:       kind,
		ApprovalID: approval.ApprovalID,
		EntityType: approval.EntityType,
		Status:     approval.Status,
		Actor:      actor.EmployeeID,
	})
}
