package repositories

import (
	"context"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// PermissionRepository reads role baselines and maintains per-user overrides.
type PermissionRepository interface {
	RolePermissions(ctx context.Context, executor SQLExecutor, role string) ([]string, error)
	UserOverrides(ctx context.Context, executor SQLExecutor, userID int64) ([]models.UserPermission, error)
	// GrantUserPermission reports whether a new row was written.
	GrantUserPermission(ctx context.Context, executor SQLExecutor, userID int64, permission string, grantedBy int64) (bool, error)
	// RevokeUserPermission reports whether a row was removed.
	RevokeUserPermission(ctx context.Context, executor SQLExecutor, userID int64, permission string) (bool, error)
}

type permissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository creates a new instance of PermissionRepository.
func NewPermissionRepository(db *sqlx.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) RolePermissions(ctx context.Context, executor SQLExecutor, role string) ([]string, error) {
	perms := []string{}
	err := executor.SelectContext(ctx, &perms,
		`SELECT permission FROM role_permissions WHERE role = $1 ORDER BY permission`, role)
	if err != nil {
		return nil, mapError(err, "listing role permissions")
	}
	return perms, nil
}

func (r *permissionRepository) UserOverrides(ctx context.Context, executor SQLExecutor, userID int64) ([]models.UserPermission, error) {
	perms := []models.UserPermission{}
	err := executor.SelectContext(ctx, &perms,
		`SELECT id, user_id, permission, granted_by, granted_at
		 FROM user_permissions WHERE user_id = $1 ORDER BY permission`, userID)
	if err != nil {
		return nil, mapError(err, "listing user permissions")
	}
	return perms, nil
}

func (r *permissionRepository) GrantUserPermission(ctx context.Context, executor SQLExecutor, userID int64, permission string, grantedBy int64) (bool, error) {
	res, err := executor.ExecContext(ctx,
		`INSERT INTO user_permissions (user_id, permission, granted_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, permission) DO NOTHING`, userID, permission, grantedBy)
	if err != nil {
		return false, mapError(err, "granting user permission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "granting user permission")
	}
	return n > 0, nil
}

func (r *permissionRepository) RevokeUserPermission(ctx context.Context, executor SQLExecutor, userID int64, permission string) (bool, error) {
	res, err := executor.ExecContext(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission = $2`, userID, permission)
	if err != nil {
		return false, mapError(err, "revoking user permission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "revoking user permission")
	}
	return n > 0, nil
}
