package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workflow roles
const (
	RoleMaker   = "MAKER"
	RoleChecker = "CHECKER"
	RoleAdmin   = "ADMIN"
	RoleAuditor = "AUDITOR"
)

// ValidRole reports whether a role code is one of the recognized workflow roles.
func ValidRole(role string) bool {
	switch role {
	case RoleMaker, RoleChecker, RoleAdmin, RoleAuditor:
		return true
	}
	return false
}

// Identity is the authenticated actor attached to every workflow call.
// It is always passed explicitly; the engine never reads ambient session state.
type Identity struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

// UserAccount represents a back-office operator provisioned by an admin.
type UserAccount struct {
	UserID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	EmployeeID    string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"employee_id"`
	FullName      string     `gorm:"type:varchar(150);not null" json:"full_name"`
	RoleCode      string     `gorm:"type:varchar(20);not null" json:"role_code"`
	PasswordHash  string     `gorm:"type:varchar(255);not null" json:"-"`
	Status        string     `gorm:"type:varchar(10);not null;default:'ACTIVE'" json:"status"`
	CreatedDate   time.Time  `gorm:"autoCreateTime" json:"created_date"`
	LastLoginDate *time.Time `json:"last_login_date"`
}

func (u *UserAccount) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EmployeeID string    `gorm:"type:varchar(50);not null;index" json:"employee_id"`
	Token      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
