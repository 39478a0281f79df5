package service

import (
	"context"
	"fmt"

	"cashops/internal/apperr"
	"cashops/internal/model"
	"cashops/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	FullName   string `json:"full_name" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Password   string `json:"password" binding:"required,min=8"`
}

type UpdateUserRequest struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

// UserService provisions and maintains operator accounts. Only admins reach
// it; the handler layer enforces that.
type UserService interface {
	CreateUser(ctx context.Context, actor model.Identity, req CreateUserRequest) (*model.UserAccount, error)
	UpdateUser(ctx context.Context, actor model.Identity, employeeID string, req UpdateUserRequest) (*model.UserAccount, error)
	GetUser(ctx context.Context, employeeID string) (*model.UserAccount, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.UserAccount, int64, error)
}

type userService struct {
	users  repository.UserRepository
	audits repository.AuditRepository
}

// NewUserService returns a new instance of UserService
func NewUserService(users repository.UserRepository, audits repository.AuditRepository) UserService {
	return &userService{users: users, audits: audits}
}

func (s *userService) CreateUser(ctx context.Context, actor model.Identity, req CreateUserRequest) (*model.UserAccount, error) {
	if !model.ValidRole(req.Role) {
		return nil, fmt.Errorf("role must be one of MAKER, CHECKER, ADMIN, AUDITOR: %w", apperr.ErrValidation)
	}
	if _, err := s.users.GetByEmployeeID(ctx, req.EmployeeID); err == nil {
		return nil, fmt.Errorf("employee id %s already exists: %w", req.EmployeeID, apperr.ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.UserAccount{
		EmployeeID:   req.EmployeeID,
		FullName:     req.FullName,
		RoleCode:     req.Role,
		PasswordHash: string(hashed),
		Status:       "ACTIVE",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	_ = s.audits.Log(ctx, &model.AuditLog{
		EntityType: "USER_ACCOUNT",
		EntityID:   user.EmployeeID,
		Action:     model.AuditActionCreateUser,
		OldData:    "{}",
		NewData:    fmt.Sprintf(`{"employee_id":%q,"role":%q}`, user.EmployeeID, user.RoleCode),
		ChangedBy:  actor.EmployeeID,
	})
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor model.Identity, employeeID string, req UpdateUserRequest) (*model.UserAccount, error) {
	user, err := s.users.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	if req.Role != "" {
		if !model.ValidRole(req.Role) {
			return nil, fmt.Errorf("role must be one of MAKER, CHECKER, ADMIN, AUDITOR: %w", apperr.ErrValidation)
		}
		user.RoleCode = req.Role
	}
	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Status != "" {
		if req.Status != "ACTIVE" && req.Status != "INACTIVE" {
			return nil, fmt.Errorf("status must be ACTIVE or INACTIVE: %w", apperr.ErrValidation)
		}
		user.Status = req.Status
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	_ = s.audits.Log(ctx, &model.AuditLog{
		EntityType: "USER_ACCOUNT",
		EntityID:   user.EmployeeID,
		Action:     model.AuditActionUpdateUser,
		OldData:    "{}",
		NewData:    fmt.Sprintf(`{"role":%q,"status":%q}`, user.RoleCode, user.Status),
		ChangedBy:  actor.EmployeeID,
	})
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, employeeID string) (*model.UserAccount, error) {
	return s.users.GetByEmployeeID(ctx, employeeID)
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]model.UserAccount, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	return s.users.List(ctx, page, limit)
}
