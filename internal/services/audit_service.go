package services

import (
	"context"
	"fmt"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditService exposes the audit log to management.
type AuditService interface {
	List(ctx context.Context, actor models.Principal, filter models.AuditFilter) ([]models.AuditEntry, error)
}

type auditService struct {
	repo  repositories.AuditRepository
	perms PermissionService
}

// NewAuditService creates a new instance of AuditService.
func NewAuditService(repo repositories.AuditRepository, perms PermissionService) AuditService {
	return &auditService{repo: repo, perms: perms}
}

func (s *auditService) List(ctx context.Context, actor models.Principal, filter models.AuditFilter) ([]models.AuditEntry, error) {
	if !isManagement(actor.Role) {
		ok, err := s.perms.HasPermission(ctx, actor.UserID, models.PermViewAuditLog)
		if err != nil {
			return nil, fmt.Errorf("failed to check permission: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: permission required: %s", ErrForbidden, models.PermViewAuditLog)
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	if filter.Limit > maxAuditLimit {
		filter.Limit = maxAuditLimit
	}
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
