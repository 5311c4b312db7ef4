package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// CreateUserRequest DTO
type CreateUserRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=64"`
	Password string  `json:"password" binding:"required,min=6"`
	Role     string  `json:"role" binding:"required"`
	FullName string  `json:"fullName" binding:"required"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    *string `json:"phone"`
}

// UpdateUserRequest DTO. Nil fields are left unchanged.
type UpdateUserRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
}

// UserService manages staff accounts.
type UserService interface {
	ListUsers(ctx context.Context, actor models.Principal) ([]models.User, error)
	ListActiveUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, actor models.Principal, id int64) (*models.User, error)
	CreateUser(ctx context.Context, actor models.Principal, req CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, actor models.Principal, id int64, req UpdateUserRequest) (*models.User, error)
	SetActive(ctx context.Context, actor models.Principal, id int64, active bool) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	tx       repositories.Transactor
	audit    auditor
}

// NewUserService creates a new instance of UserService.
func NewUserService(ur repositories.UserRepository, ar repositories.AuditRepository, tx repositories.Transactor) UserService {
	return &userService{userRepo: ur, tx: tx, audit: auditor{repo: ar}}
}

func requireManagement(actor models.Principal) error {
	if !isManagement(actor.Role) {
		return fmt.Errorf("%w: management access required", ErrForbidden)
	}
	return nil
}

func scrub(users []models.User) []models.User {
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users
}

func (s *userService) ListUsers(ctx context.Context, actor models.Principal) ([]models.User, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListUsers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return scrub(users), nil
}

func (s *userService) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListUsers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return scrub(users), nil
}

func (s *userService) GetUser(ctx context.Context, actor models.Principal, id int64) (*models.User, error) {
	if actor.UserID != id && !isManagement(actor.Role) {
		return nil, fmt.Errorf("%w: cannot view other users", ErrForbidden)
	}
	user, err := s.userRepo.FindUserByID(ctx, s.tx.Executor(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, actor models.Principal, req CreateUserRequest) (*models.User, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !models.IsValidRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if req.Role == models.RoleAdmin && !IsAdmin(actor.Role) {
		return nil, fmt.Errorf("%w: only admins can create admin accounts", ErrForbidden)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: string(hash),
		Role:         req.Role,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        trimmedPtr(req.Email),
		Phone:        trimmedPtr(req.Phone),
		Active:       true,
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.userRepo.CreateUser(ctx, exec, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return fmt.Errorf("%w: %s", ErrUsernameExists, user.Username)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "create_user", "user", user.ID,
			fmt.Sprintf("Created user %s with role %s", user.Username, user.Role))
	})
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor models.Principal, id int64, req UpdateUserRequest) (*models.User, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, *req.Role)
		}
		if *req.Role == models.RoleAdmin && !IsAdmin(actor.Role) {
			return nil, fmt.Errorf("%w: only admins can grant the admin role", ErrForbidden)
		}
	}

	var user *models.User
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		user, err = s.userRepo.FindUserByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if user.Role == models.RoleAdmin && !IsAdmin(actor.Role) {
			return fmt.Errorf("%w: only admins can edit admin accounts", ErrForbidden)
		}
		if req.FullName != nil && strings.TrimSpace(*req.FullName) != "" {
			user.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.Email != nil {
			user.Email = trimmedPtr(req.Email)
		}
		if req.Phone != nil {
			user.Phone = trimmedPtr(req.Phone)
		}
		if req.Role != nil {
			user.Role = *req.Role
		}
		if err := s.userRepo.UpdateUser(ctx, exec, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "update_user", "user", user.ID, "Updated user "+user.Username)
	})
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) SetActive(ctx context.Context, actor models.Principal, id int64, active bool) (*models.User, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if id == actor.UserID && !active {
		return nil, validationError("cannot deactivate your own account")
	}

	var user *models.User
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		user, err = s.userRepo.FindUserByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if user.Role == models.RoleAdmin && !IsAdmin(actor.Role) {
			return fmt.Errorf("%w: only admins can change admin accounts", ErrForbidden)
		}
		user.Active = active
		if err := s.userRepo.UpdateUser(ctx, exec, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		action := "deactivate_user"
		if active {
			action = "activate_user"
		}
		return s.audit.record(ctx, exec, actor, action, "user", user.ID, "")
	})
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}
