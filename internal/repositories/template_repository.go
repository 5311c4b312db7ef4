package repositories

import (
	"context"
	"fmt"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// TemplateRepository persists task templates.
type TemplateRepository interface {
	ListTemplates(ctx context.Context) ([]models.TaskTemplate, error)
	GetTemplate(ctx context.Context, executor SQLExecutor, id int64) (*models.TaskTemplate, error)
	CreateTemplate(ctx context.Context, executor SQLExecutor, tmpl *models.TaskTemplate) error
	DeleteTemplate(ctx context.Context, executor SQLExecutor, id int64) error
}

type templateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new instance of TemplateRepository.
func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, name, description, category, priority, estimated_duration, recurrence_pattern, created_by, created_at`

func (r *templateRepository) ListTemplates(ctx context.Context) ([]models.TaskTemplate, error) {
	templates := []models.TaskTemplate{}
	if err := r.db.SelectContext(ctx, &templates, `SELECT `+templateColumns+` FROM task_templates ORDER BY name, id`); err != nil {
		return nil, mapError(err, "listing task templates")
	}
	return templates, nil
}

func (r *templateRepository) GetTemplate(ctx context.Context, executor SQLExecutor, id int64) (*models.TaskTemplate, error) {
	var tmpl models.TaskTemplate
	if err := executor.GetContext(ctx, &tmpl, `SELECT `+templateColumns+` FROM task_templates WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "getting task template")
	}
	return &tmpl, nil
}

func (r *templateRepository) CreateTemplate(ctx context.Context, executor SQLExecutor, tmpl *models.TaskTemplate) error {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO task_templates (name, description, category, priority, estimated_duration, recurrence_pattern, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		tmpl.Name, tmpl.Description, tmpl.Category, tmpl.Priority, tmpl.EstimatedDuration, tmpl.RecurrencePattern, tmpl.CreatedBy,
	).Scan(&tmpl.ID, &tmpl.CreatedAt)
	if err != nil {
		return mapError(err, "creating task template")
	}
	return nil
}

func (r *templateRepository) DeleteTemplate(ctx context.Context, executor SQLExecutor, id int64) error {
	res, err := executor.ExecContext(ctx, `DELETE FROM task_templates WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting task template")
	}
	if err := requireAffected(res, "deleting task template"); err != nil {
		return fmt.Errorf("%w: task template %d", ErrNotFound, id)
	}
	return nil
}
