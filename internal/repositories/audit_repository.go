package repositories

import (
	"context"
	"fmt"
	"strings"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// AuditRepository writes and reads the audit log.
type AuditRepository interface {
	CreateEntry(ctx context.Context, executor SQLExecutor, entry *models.AuditEntry) error
	ListEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

type auditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateEntry(ctx context.Context, executor SQLExecutor, entry *models.AuditEntry) error {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO audit_log (user_id, action, entity_type, entity_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Details, entry.IPAddress,
	).Scan(&entry.ID, &entry.CreatedAt)
	return mapError(err, "writing audit entry")
}

func (r *auditRepository) ListEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT al.id, al.user_id, u.username, al.action, al.entity_type, al.entity_id,
	    al.details, al.ip_address, al.created_at
	  FROM audit_log al
	  LEFT JOIN users u ON u.id = al.user_id`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("al.user_id = $%d", argCount))
		args = append(args, *filter.UserID)
		argCount++
	}
	if filter.EntityType != nil && *filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("al.entity_type = $%d", argCount))
		args = append(args, *filter.EntityType)
		argCount++
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY al.created_at DESC, al.id DESC LIMIT $%d", argCount))
	args = append(args, filter.Limit)

	entries := []models.AuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, queryBuilder.String(), args...); err != nil {
		return nil, mapError(err, "listing audit entries")
	}
	return entries, nil
}
