package service

import (
	"context"
	"fmt"

	"cashops/internal/apperr"
	"cashops/internal/model"
	"cashops/internal/repository"
)

// AuditService exposes the immutable change trail. Auditors and admins only.
type AuditService interface {
	GetAuditLogs(ctx context.Context, actor model.Identity, entityType string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditService struct {
	audits repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(audits repository.AuditRepository) AuditService {
	return &auditService{audits: audits}
}

func (s *auditService) GetAuditLogs(ctx context.Context, actor model.Identity, entityType string, page, limit int) ([]model.AuditLog, int64, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleAuditor {
		return nil, 0, fmt.Errorf("role %s cannot read audit logs: %w", actor.Role, apperr.ErrForbidden)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.audits.List(ctx, entityType, page, limit)
}
