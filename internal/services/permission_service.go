package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
)

// BulkPermissionRequest grants or revokes several permissions for one user.
type BulkPermissionRequest struct {
	UserID      int64    `json:"userId" binding:"required,gt=0"`
	Permissions []string `json:"permissions" binding:"required,min=1,dive,required"`
}

// PermissionRequest grants or revokes one permission.
type PermissionRequest struct {
	UserID     int64  `json:"userId" binding:"required,gt=0"`
	Permission string `json:"permission" binding:"required"`
}

// PermissionService resolves effective permissions and manages overrides.
type PermissionService interface {
	AvailablePermissions() []models.PermissionInfo
	RolePermissions(ctx context.Context, role string) ([]string, error)
	// EffectivePermissions is the role baseline plus overrides. Unknown or inactive
	// users get an empty set.
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	HasPermission(ctx context.Context, userID int64, permission string) (bool, error)
	UserPermissions(ctx context.Context, actor models.Principal, userID int64) (*models.UserPermissionSet, error)
	Grant(ctx context.Context, actor models.Principal, userID int64, permission string) error
	Revoke(ctx context.Context, actor models.Principal, userID int64, permission string) error
	BulkGrant(ctx context.Context, actor models.Principal, req BulkPermissionRequest) error
	BulkRevoke(ctx context.Context, actor models.Principal, req BulkPermissionRequest) error
}

type permissionService struct {
	permRepo repositories.PermissionRepository
	userRepo repositories.UserRepository
	tx       repositories.Transactor
	audit    auditor
}

// NewPermissionService creates a new instance of PermissionService.
func NewPermissionService(pr repositories.PermissionRepository, ur repositories.UserRepository, ar repositories.AuditRepository, tx repositories.Transactor) PermissionService {
	return &permissionService{
		permRepo: pr,
		userRepo: ur,
		tx:       tx,
		audit:    auditor{repo: ar},
	}
}

// IsAdmin reports whether role is the admin tier.
func IsAdmin(role string) bool {
	return role == models.RoleAdmin
}

// IsManagement reports whether role is admin or manager.
func IsManagement(role string) bool {
	return isManagement(role)
}

func (s *permissionService) AvailablePermissions() []models.PermissionInfo {
	out := make([]models.PermissionInfo, len(models.PermissionCatalog))
	copy(out, models.PermissionCatalog)
	return out
}

func (s *permissionService) RolePermissions(ctx context.Context, role string) ([]string, error) {
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	perms, err := s.permRepo.RolePermissions(ctx, s.tx.Executor(), role)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	return perms, nil
}

func (s *permissionService) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	exec := s.tx.Executor()
	user, err := s.userRepo.FindUserByID(ctx, exec, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to load user for permissions: %w", err)
	}
	if !user.Active {
		return []string{}, nil
	}
	rolePerms, overrides, err := s.loadSets(ctx, exec, user)
	if err != nil {
		return nil, err
	}
	return union(rolePerms, overrides), nil
}

func (s *permissionService) loadSets(ctx context.Context, exec repositories.SQLExecutor, user *models.User) ([]string, []models.UserPermission, error) {
	rolePerms, err := s.permRepo.RolePermissions(ctx, exec, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	overrides, err := s.permRepo.UserOverrides(ctx, exec, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user permissions: %w", err)
	}
	return rolePerms, overrides, nil
}

func union(rolePerms []string, overrides []models.UserPermission) []string {
	set := make(map[string]struct{}, len(rolePerms)+len(overrides))
	for _, p := range rolePerms {
		set[p] = struct{}{}
	}
	for _, o := range overrides {
		set[o.Permission] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *permissionService) HasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func (s *permissionService) UserPermissions(ctx context.Context, actor models.Principal, userID int64) (*models.UserPermissionSet, error) {
	if actor.UserID != userID && !IsAdmin(actor.Role) {
		return nil, fmt.Errorf("%w: only admins can view other users' permissions", ErrForbidden)
	}
	exec := s.tx.Executor()
	user, err := s.userRepo.FindUserByID(ctx, exec, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	rolePerms, overrides, err := s.loadSets(ctx, exec, user)
	if err != nil {
		return nil, err
	}
	effective := union(rolePerms, overrides)
	if !user.Active {
		effective = []string{}
	}
	return &models.UserPermissionSet{
		UserID:          user.ID,
		Role:            user.Role,
		Effective:       effective,
		RolePermissions: rolePerms,
		Custom:          overrides,
	}, nil
}

func (s *permissionService) Grant(ctx context.Context, actor models.Principal, userID int64, permission string) error {
	return s.apply(ctx, actor, userID, []string{permission}, true, "grant_permission")
}

func (s *permissionService) Revoke(ctx context.Context, actor models.Principal, userID int64, permission string) error {
	return s.apply(ctx, actor, userID, []string{permission}, false, "revoke_permission")
}

func (s *permissionService) BulkGrant(ctx context.Context, actor models.Principal, req BulkPermissionRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return s.apply(ctx, actor, req.UserID, req.Permissions, true, "bulk_grant_permissions")
}

func (s *permissionService) BulkRevoke(ctx context.Context, actor models.Principal, req BulkPermissionRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return s.apply(ctx, actor, req.UserID, req.Permissions, false, "bulk_revoke_permissions")
}

// apply grants or revokes perms for userID in one transaction with one audit entry.
func (s *permissionService) apply(ctx context.Context, actor models.Principal, userID int64, perms []string, grant bool, action string) error {
	if !IsAdmin(actor.Role) {
		return fmt.Errorf("%w: only admins can change permissions", ErrForbidden)
	}
	for _, p := range perms {
		if !models.IsKnownPermission(p) {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, p)
		}
	}

	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.userRepo.FindUserByID(ctx, exec, userID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		for _, p := range perms {
			var err error
			if grant {
				_, err = s.permRepo.GrantUserPermission(ctx, exec, userID, p, actor.UserID)
			} else {
				_, err = s.permRepo.RevokeUserPermission(ctx, exec, userID, p)
			}
			if err != nil {
				return fmt.Errorf("failed to %s: %w", action, err)
			}
		}
		verb := "Revoked"
		if grant {
			verb = "Granted"
		}
		return s.audit.record(ctx, exec, actor, action, "permission", userID,
			fmt.Sprintf("%s %s", verb, strings.Join(perms, ", ")))
	})
}
