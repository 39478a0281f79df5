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

type UserRepository interface {
	Create(ctx context.Context, user *model.UserAccount) error
	GetByEmployeeID(ctx context.Context, employeeID string) (*model.UserAccount, error)
	List(ctx context.Context, page, limit int) ([]model.UserAccount, int64, error)
	Update(ctx context.Context, user *model.UserAccount) error
	TouchLastLogin(ctx context.Context, employeeID string) error

	SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.UserAccount) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByEmployeeID(ctx context.Context, employeeID string) (*model.UserAccount, error) {
	var user model.UserAccount
	if err := GetDB(ctx, r.db).First(&user, "employee_id = ?", employeeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", employeeID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, page, limit int) ([]model.UserAccount, int64, error) {
	var users []model.UserAccount
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.UserAccount{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_date desc").Scopes(pagination.Of(page, limit).Scope()).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.UserAccount) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) TouchLastLogin(ctx context.Context, employeeID string) error {
	return GetDB(ctx, r.db).Model(&model.UserAccount{}).
		Where("employee_id = ?", employeeID).
		Update("last_login_date", time.Now().UTC()).Error
}

func (r *userRepository) SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *userRepository) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	if err := GetDB(ctx, r.db).First(&rt, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("refresh token: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &rt, nil
}

func (r *userRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	return GetDB(ctx, r.db).Delete(&model.RefreshToken{}, "token = ?", token).Error
}
