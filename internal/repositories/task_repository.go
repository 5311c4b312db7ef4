package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TaskRepository persists tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, executor SQLExecutor, task *models.Task) error
	GetTask(ctx context.Context, executor SQLExecutor, id int64) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, executor SQLExecutor, task *models.Task) error
	UpdateStatus(ctx context.Context, executor SQLExecutor, id int64, status string, completedBy *int64, completedAt *time.Time, notes *string) error
	DeleteTask(ctx context.Context, executor SQLExecutor, id int64) error
}

type taskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new instance of TaskRepository.
func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskSelect = `SELECT t.id, t.title, t.description, t.category, t.priority, t.assignment_type, t.assigned_to,
	       u.full_name AS assigned_name, t.assigned_date, t.due_date, t.due_time, t.recurrence, t.status,
	       t.created_by, t.completed_at, t.completed_by, t.completion_notes, t.created_at
	FROM tasks t
	LEFT JOIN users u ON u.id = t.assigned_to`

func (r *taskRepository) CreateTask(ctx context.Context, executor SQLExecutor, task *models.Task) error {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO tasks (title, description, category, priority, assignment_type, assigned_to, assigned_date,
		                    due_date, due_time, recurrence, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		task.Title, task.Description, task.Category, task.Priority, task.AssignmentType, task.AssignedTo,
		nullDateArg(task.AssignedDate), nullDateArg(task.DueDate), task.DueTime, task.Recurrence, task.Status, task.CreatedBy,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		mapped := mapError(err, "creating task")
		if isForeignKey(mapped) {
			return fmt.Errorf("%w: assignee", ErrNotFound)
		}
		return mapped
	}
	return nil
}

func (r *taskRepository) GetTask(ctx context.Context, executor SQLExecutor, id int64) (*models.Task, error) {
	var task models.Task
	if err := executor.GetContext(ctx, &task, taskSelect+` WHERE t.id = $1`, id); err != nil {
		return nil, mapError(err, "getting task")
	}
	return &task, nil
}

func (r *taskRepository) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(taskSelect)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("(t.assigned_date = $%d::date OR t.due_date = $%d::date)", argCount, argCount))
		args = append(args, dateArg(*filter.Date))
		argCount++
	}
	if filter.Status != nil && *filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", argCount))
		args = append(args, *filter.Status)
		argCount++
	}
	if filter.AssignedTo != nil {
		own := fmt.Sprintf("t.assigned_to = $%d", argCount)
		args = append(args, *filter.AssignedTo)
		argCount++
		if len(filter.ShiftDates) > 0 {
			dates := make([]string, len(filter.ShiftDates))
			for i, d := range filter.ShiftDates {
				dates[i] = dateArg(d)
			}
			own = fmt.Sprintf("(%s OR (t.assignment_type = 'shift-based' AND t.assigned_date = ANY($%d::date[])))", own, argCount)
			args = append(args, pq.Array(dates))
			argCount++
		}
		conditions = append(conditions, own)
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(` ORDER BY CASE t.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
	    t.due_date ASC NULLS LAST, t.id DESC`)

	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, queryBuilder.String(), args...); err != nil {
		return nil, mapError(err, "listing tasks")
	}
	return tasks, nil
}

func (r *taskRepository) UpdateTask(ctx context.Context, executor SQLExecutor, task *models.Task) error {
	res, err := executor.ExecContext(ctx,
		`UPDATE tasks SET title = $2, description = $3, category = $4, priority = $5, assignment_type = $6,
		        assigned_to = $7, assigned_date = $8, due_date = $9, due_time = $10, recurrence = $11
		 WHERE id = $1`,
		task.ID, task.Title, task.Description, task.Category, task.Priority, task.AssignmentType, task.AssignedTo,
		nullDateArg(task.AssignedDate), nullDateArg(task.DueDate), task.DueTime, task.Recurrence)
	if err != nil {
		return mapError(err, "updating task")
	}
	if err := requireAffected(res, "updating task"); err != nil {
		return fmt.Errorf("%w: task %d", ErrNotFound, task.ID)
	}
	return nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, executor SQLExecutor, id int64, status string, completedBy *int64, completedAt *time.Time, notes *string) error {
	res, err := executor.ExecContext(ctx,
		`UPDATE tasks SET status = $2, completed_by = $3, completed_at = $4, completion_notes = COALESCE($5, completion_notes)
		 WHERE id = $1`, id, status, completedBy, completedAt, notes)
	if err != nil {
		return mapError(err, "updating task status")
	}
	if err := requireAffected(res, "updating task status"); err != nil {
		return fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return nil
}

func (r *taskRepository) DeleteTask(ctx context.Context, executor SQLExecutor, id int64) error {
	res, err := executor.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting task")
	}
	if err := requireAffected(res, "deleting task"); err != nil {
		return fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return nil
}
