package repository

import (
	"context"
	"errors"
	"time"

	"cashops/internal/model"

	"gorm.io/gorm"
)

type MonthLockRepository interface {
	IsLocked(ctx context.Context, monthKey string) (bool, error)
	List(ctx context.Context) ([]model.MonthLock, error)
	Lock(ctx context.Context, monthKey, lockedBy string) error
	Unlock(ctx context.Context, monthKey string) error
}

type monthLockRepository struct {
	db *gorm.DB
}

func NewMonthLockRepository(db *gorm.DB) MonthLockRepository {
	return &monthLockRepository{db: db}
}

func (r *monthLockRepository) IsLocked(ctx context.Context, monthKey string) (bool, error) {
	var lock model.MonthLock
	err := GetDB(ctx, r.db).
		Where("month_key = ? AND status = ?", monthKey, model.MonthLocked).
		First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *monthLockRepository) List(ctx context.Context) ([]model.MonthLock, error) {
	var locks []model.MonthLock
	if err := GetDB(ctx, r.db).Order("month_key desc").Find(&locks).Error; err != nil {
		return nil, err
	}
	return locks, nil
}

func (r *monthLockRepository) Lock(ctx context.Context, monthKey, lockedBy string) error {
	db := GetDB(ctx, r.db)
	now := time.Now().UTC()

	var lock model.MonthLock
	err := db.Where("month_key = ?", monthKey).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(&model.MonthLock{
			MonthKey: monthKey,
			Status:   model.MonthLocked,
			LockedBy: &lockedBy,
			LockedAt: &now,
		}).Error
	}
	if err != nil {
		return err
	}

	lock.Status = model.MonthLocked
	lock.LockedBy = &lockedBy
	lock.LockedAt = &now
	return db.Save(&lock).Error
}

func (r *monthLockRepository) Unlock(ctx context.Context, monthKey string) error {
	return GetDB(ctx, r.db).Model(&model.MonthLock{}).
		Where("month_key = ?", monthKey).
		Updates(map[string]interface{}{"status": model.MonthOpen, "locked_by": nil, "locked_at": nil}).Error
}
