package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
)

// TemplateRequest DTO
type TemplateRequest struct {
	Name              string  `json:"name" binding:"required,max=200"`
	Description       *string `json:"description"`
	Category          string  `json:"category" binding:"required"`
	Priority          string  `json:"priority" binding:"required,oneof=low medium high urgent"`
	EstimatedDuration *int    `json:"estimated_duration" binding:"omitempty,gt=0"`
	RecurrencePattern *string `json:"recurrence_pattern" binding:"omitempty,oneof=none daily weekly monthly"`
}

// TemplateService manages task templates. Anyone signed in can read them.
type TemplateService interface {
	List(ctx context.Context) ([]models.TaskTemplate, error)
	Get(ctx context.Context, id int64) (*models.TaskTemplate, error)
	Create(ctx context.Context, actor models.Principal, req TemplateRequest) (*models.TaskTemplate, error)
	Delete(ctx context.Context, actor models.Principal, id int64) error
}

type templateService struct {
	deps  WorkDeps
	audit auditor
}

// NewTemplateService creates a new instance of TemplateService.
func NewTemplateService(deps WorkDeps) TemplateService {
	return &templateService{deps: deps, audit: auditor{repo: deps.Audit}}
}

func (s *templateService) List(ctx context.Context) ([]models.TaskTemplate, error) {
	templates, err := s.deps.Templates.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func (s *templateService) Get(ctx context.Context, id int64) (*models.TaskTemplate, error) {
	tmpl, err := s.deps.Templates.GetTemplate(ctx, s.deps.Tx.Executor(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tmpl, nil
}

func (s *templateService) Create(ctx context.Context, actor models.Principal, req TemplateRequest) (*models.TaskTemplate, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	category := strings.TrimSpace(req.Category)
	if name == "" || category == "" {
		return nil, validationError("name and category are required")
	}

	tmpl := &models.TaskTemplate{
		Name:              name,
		Description:       trimmedPtr(req.Description),
		Category:          category,
		Priority:          req.Priority,
		EstimatedDuration: req.EstimatedDuration,
		RecurrencePattern: req.RecurrencePattern,
	}
	if actor.UserID != 0 {
		tmpl.CreatedBy = &actor.UserID
	}
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.deps.Templates.CreateTemplate(ctx, tx, tmpl); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, actor, "create_template", "template", tmpl.ID, "Created task template: "+tmpl.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return tmpl, nil
}

func (s *templateService) Delete(ctx context.Context, actor models.Principal, id int64) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		tmpl, err := s.deps.Templates.GetTemplate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrTemplateNotFound
			}
			return err
		}
		if err := s.deps.Templates.DeleteTemplate(ctx, tx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrTemplateNotFound
			}
			return err
		}
		return s.audit.record(ctx, tx, actor, "delete_template", "template", id, "Deleted task template: "+tmpl.Name)
	})
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}
