package service

import (
	"context"
	"errors"
	"fmt"

	"cashops/internal/apperr"
	"cashops/internal/model"

	"gorm.io/gorm"
)

// CorrectionService reads the correction rows the workflow stages. Writes go
// through the workflow engine only.
type CorrectionService interface {
	GetByApproval(ctx context.Context, actor model.Identity, approvalID uint64) (*model.ReconciliationCorrection, error)
	ListByRecon(ctx context.Context, actor model.Identity, reconID uint64) ([]model.ReconciliationCorrection, error)
}

type correctionService struct {
	db    *gorm.DB
	guard *Guard
}

// NewCorrectionService creates a new CorrectionService instance
func NewCorrectionService(db *gorm.DB, guard *Guard) CorrectionService {
	return &correctionService{db: db, guard: guard}
}

func (s *correctionService) GetByApproval(ctx context.Context, actor model.Identity, approvalID uint64) (*model.ReconciliationCorrection, error) {
	if err := s.guard.CanView(actor); err != nil {
		return nil, err
	}
	var correction model.ReconciliationCorrection
	err := s.db.WithContext(ctx).First(&correction, "approval_id = ?", approvalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no correction for approval %d: %w", approvalID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &correction, nil
}

func (s *correctionService) ListByRecon(ctx context.Context, actor model.Identity, reconID uint64) ([]model.ReconciliationCorrection, error) {
	if err := s.guard.CanView(actor); err != nil {
		return nil, err
	}
	var corrections []model.ReconciliationCorrection
	err := s.db.WithContext(ctx).
		Where("recon_id = ?", reconID).
		Order("created_date desc").
		Find(&corrections).Error
	return corrections, err
}
