package service

import (
	"context"
	"fmt"
	"time"

	"cashops/internal/apperr"
	"cashops/internal/model"
	"cashops/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type LoginRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type TokenPair struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Identity     model.Identity `json:"identity"`
}

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// AuthService issues and renews workflow credentials.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	users  repository.UserRepository
	secret []byte
}

// NewAuthService returns a new instance of AuthService
func NewAuthService(users repository.UserRepository, secret []byte) AuthService {
	return &authService{users: users, secret: secret}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	user, err := s.users.GetByEmployeeID(ctx, req.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("invalid employee id or password: %w", apperr.ErrForbidden)
	}
	if user.Status != "ACTIVE" {
		return nil, fmt.Errorf("account %s is disabled: %w", req.EmployeeID, apperr.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid employee id or password: %w", apperr.ErrForbidden)
	}
	if err := s.users.TouchLastLogin(ctx, user.EmployeeID); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.users.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token not recognised: %w", apperr.ErrForbidden)
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.users.DeleteRefreshToken(ctx, refreshToken)
		return nil, fmt.Errorf("refresh token expired: %w", apperr.ErrForbidden)
	}
	user, err := s.users.GetByEmployeeID(ctx, stored.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("account for token no longer exists: %w", apperr.ErrForbidden)
	}
	// Rotate: one refresh token, one renewal
	if err := s.users.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.users.DeleteRefreshToken(ctx, refreshToken)
}

func (s *authService) issue(ctx context.Context, user *model.UserAccount) (*TokenPair, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.EmployeeID,
		"name": user.FullName,
		"role": user.RoleCode,
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenTTL).Unix(),
	})
	access, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := &model.RefreshToken{
		EmployeeID: user.EmployeeID,
		Token:      uuid.NewString(),
		ExpiresAt:  now.Add(refreshTokenTTL),
	}
	if err := s.users.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		Identity: model.Identity{
			EmployeeID: user.EmployeeID,
			Name:       user.FullName,
			Role:       user.RoleCode,
		},
	}, nil
}
