package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest DTO
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// AuthService handles login and the caller's own account.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest, origin string) (*models.LoginResponse, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
	ChangePassword(ctx context.Context, actor models.Principal, req ChangePasswordRequest) error
}

type authService struct {
	userRepo repositories.UserRepository
	tx       repositories.Transactor
	audit    auditor
	now      Clock
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(ur repositories.UserRepository, ar repositories.AuditRepository, tx repositories.Transactor) AuthService {
	return &authService{
		userRepo: ur,
		tx:       tx,
		audit:    auditor{repo: ar},
		now:      time.Now,
	}
}

// Login checks credentials and issues an access token.
func (s *authService) Login(ctx context.Context, req LoginRequest, origin string) (*models.LoginResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login attempt failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}

	token, err := utils.GenerateAccessToken(user.ID, user.Username, user.Role, user.FullName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		utils.LoggerFromContext(ctx).Warn().Err(err).Int64("user_id", user.ID).Msg("Could not record last login")
	} else {
		user.LastLogin = &now
	}
	actor := models.Principal{UserID: user.ID, Username: user.Username, Role: user.Role, Origin: origin}
	if err := s.audit.record(ctx, s.tx.Executor(), actor, "login", "user", user.ID, "User logged in"); err != nil {
		utils.LoggerFromContext(ctx).Warn().Err(err).Msg("Could not audit login")
	}

	user.PasswordHash = ""
	return &models.LoginResponse{Token: token, User: user}, nil
}

func (s *authService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, s.tx.Executor(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, actor models.Principal, req ChangePasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		user, err := s.userRepo.FindUserByID(ctx, exec, actor.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return ErrWrongPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := s.userRepo.UpdatePassword(ctx, exec, user.ID, string(hash)); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "change_password", "user", user.ID, "Password changed")
	})
}
