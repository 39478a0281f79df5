package service

import (
	"context"
	"fmt"
	"regexp"

	"cashops/internal/apperr"
	"cashops/internal/model"
	"cashops/internal/repository"
)

var monthKeyPattern = regexp.MustCompile(`^\d{6}$`)

// MonthLockService freezes closed accounting months. A month cannot be locked
// while approval requests are still open, since approving them would mutate
// frozen data.
type MonthLockService struct {
	txManager repository.TransactionManager
	locks     repository.MonthLockRepository
	approvals repository.ApprovalRepository
	audits    repository.AuditRepository
}

func NewMonthLockService(
	txManager repository.TransactionManager,
	locks repository.MonthLockRepository,
	approvals repository.ApprovalRepository,
	audits repository.AuditRepository,
) *MonthLockService {
	return &MonthLockService{txManager: txManager, locks: locks, approvals: approvals, audits: audits}
}

func (s *MonthLockService) Lock(ctx context.Context, actor model.Identity, monthKey string) error {
	if actor.Role != model.RoleAdmin {
		return fmt.Errorf("only admins can lock months: %w", apperr.ErrForbidden)
	}
	if !monthKeyPattern.MatchString(monthKey) {
		return fmt.Errorf("month key must be YYYYMM, got %q: %w", monthKey, apperr.ErrValidation)
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		open, err := s.approvals.CountOpen(txCtx)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%d approval requests are still open: %w", open, apperr.ErrValidation)
		}
		if err := s.locks.Lock(txCtx, monthKey, actor.EmployeeID); err != nil {
			return err
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			EntityType: "MONTH_LOCK",
			EntityID:   monthKey,
			Action:     model.AuditActionLockMonth,
			OldData:    "{}",
			NewData:    fmt.Sprintf(`{"status":%q}`, model.MonthLocked),
			ChangedBy:  actor.EmployeeID,
		})
	})
}

func (s *MonthLockService) Unlock(ctx context.Context, actor model.Identity, monthKey string) error {
	if actor.Role != model.RoleAdmin {
		return fmt.Errorf("only admins can unlock months: %w", apperr.ErrForbidden)
	}
	if !monthKeyPattern.MatchString(monthKey) {
		return fmt.Errorf("month key must be YYYYMM, got %q: %w", monthKey, apperr.ErrValidation)
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.locks.Unlock(txCtx, monthKey); err != nil {
			return err
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			EntityType: "MONTH_LOCK",
			EntityID:   monthKey,
			Action:     model.AuditActionUnlock,
			OldData:    fmt.Sprintf(`{"status":%q}`, model.MonthLocked),
			NewData:    fmt.Sprintf(`{"status":%q}`, model.MonthOpen),
			ChangedBy:  actor.EmployeeID,
		})
	})
}

func (s *MonthLockService) List(ctx context.Context, actor model.Identity) ([]model.MonthLock, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleAuditor {
		return nil, fmt.Errorf("role %s cannot view month locks: %w", actor.Role, apperr.ErrForbidden)
	}
	return s.locks.List(ctx)
}
