package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
)

// TaskRequest DTO, shared by create and update.
type TaskRequest struct {
	Title          string  `json:"title" binding:"required,max=200"`
	Description    *string `json:"description"`
	Category       string  `json:"category" binding:"required"`
	Priority       string  `json:"priority" binding:"required,oneof=low medium high urgent"`
	AssignmentType string  `json:"assignment_type" binding:"required,oneof=individual shift-based"`
	AssignedTo     *int64  `json:"assigned_to"`
	AssignedDate   *string `json:"assigned_date"`
	DueDate        *string `json:"due_date"`
	DueTime        *string `json:"due_time"`
	Recurrence     string  `json:"recurrence" binding:"omitempty,oneof=none daily weekly monthly"`
}

// TaskStatusRequest DTO
type TaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CompleteTaskRequest DTO
type CompleteTaskRequest struct {
	Notes *string `json:"notes"`
}

// TaskService manages tasks and their lifecycle.
type TaskService interface {
	Create(ctx context.Context, actor models.Principal, req TaskRequest) (*models.Task, error)
	List(ctx context.Context, actor models.Principal, date, status string) ([]models.Task, error)
	ListShiftTasks(ctx context.Context, date string) ([]models.Task, error)
	Get(ctx context.Context, actor models.Principal, id int64) (*models.Task, error)
	Update(ctx context.Context, actor models.Principal, id int64, req TaskRequest) (*models.Task, error)
	UpdateStatus(ctx context.Context, actor models.Principal, id int64, req TaskStatusRequest) (*models.Task, error)
	Complete(ctx context.Context, actor models.Principal, id int64, req CompleteTaskRequest) (*models.Task, error)
	Delete(ctx context.Context, actor models.Principal, id int64) error
	Stats(ctx context.Context, actor models.Principal) (*models.TaskStats, error)
}

type taskService struct {
	deps  WorkDeps
	audit auditor
	pub   publisher
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(deps WorkDeps) TaskService {
	return &taskService{
		deps:  deps,
		audit: auditor{repo: deps.Audit},
		pub:   publisher{broadcaster: deps.Broadcaster, metrics: deps.Metrics},
	}
}

// allow admits management outright and everyone else only with perm.
func (s *taskService) allow(ctx context.Context, actor models.Principal, perm string) error {
	if isManagement(actor.Role) {
		return nil
	}
	if s.deps.Permissions != nil {
		ok, err := s.deps.Permissions.HasPermission(ctx, actor.UserID, perm)
		if err != nil {
			return fmt.Errorf("failed to check permission: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: permission required: %s", ErrForbidden, perm)
}

// build validates req and copies it onto task.
func (s *taskService) build(req TaskRequest, task *models.Task) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return validationError("title must not be blank")
	}
	task.Title = title
	task.Description = trimmedPtr(req.Description)
	task.Category = strings.TrimSpace(req.Category)
	task.Priority = req.Priority
	task.AssignmentType = req.AssignmentType
	task.Recurrence = req.Recurrence
	if task.Recurrence == "" {
		task.Recurrence = "none"
	}

	task.AssignedTo, task.AssignedDate = nil, nil
	switch req.AssignmentType {
	case models.AssignIndividual:
		if req.AssignedTo == nil || *req.AssignedTo <= 0 {
			return validationError("individual tasks must have an assigned user")
		}
		task.AssignedTo = req.AssignedTo
	case models.AssignShiftBased:
		d, err := parseOptionalDate(req.AssignedDate)
		if err != nil {
			return err
		}
		if d == nil {
			return validationError("shift-based tasks must have an assigned date")
		}
		task.AssignedDate = d
	}

	due, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return err
	}
	task.DueDate = due
	task.DueTime = trimmedPtr(req.DueTime)
	if task.DueTime != nil {
		if _, err := parseClock(*task.DueTime); err != nil {
			return err
		}
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, actor models.Principal, req TaskRequest) (*models.Task, error) {
	if err := s.allow(ctx, actor, models.PermCreateTasks); err != nil {
		return nil, err
	}
	task := &models.Task{Status: models.TaskPending, CreatedBy: &actor.UserID}
	if err := s.build(req, task); err != nil {
		return nil, err
	}

	notes := s.deps.notifier()
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if task.AssignedTo != nil {
			if _, err := s.deps.Users.FindUserByID(ctx, tx, *task.AssignedTo); err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return ErrUserNotFound
				}
				return err
			}
		}
		if err := s.deps.Tasks.CreateTask(ctx, tx, task); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := s.notifyAssignees(ctx, tx, notes, task); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, actor, "create_task", "task", task.ID, "Created task: "+task.Title)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	notes.flush(ctx)
	return task, nil
}

// notifyAssignees tells the assignee, or everyone on shift that day, about a new task.
func (s *taskService) notifyAssignees(ctx context.Context, tx repositories.SQLExecutor, notes *notifier, task *models.Task) error {
	taskID := task.ID
	if task.AssignmentType == models.AssignIndividual {
		return notes.add(ctx, tx, *task.AssignedTo, &taskID, models.NotifyTaskAssigned, "New task assigned: "+task.Title)
	}
	shifts, err := s.deps.Schedules.ListByDate(ctx, *task.AssignedDate)
	if err != nil {
		return err
	}
	date := task.AssignedDate.Format(dateLayout)
	seen := map[int64]bool{}
	for _, sh := range shifts {
		if seen[sh.UserID] {
			continue
		}
		seen[sh.UserID] = true
		msg := fmt.Sprintf("New shift duty for %s: %s", date, task.Title)
		if err := notes.add(ctx, tx, sh.UserID, &taskID, models.NotifyShiftDuty, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *taskService) List(ctx context.Context, actor models.Principal, date, status string) ([]models.Task, error) {
	var filter models.TaskFilter
	if strings.TrimSpace(date) != "" {
		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		filter.Date = &d
	}
	if status != "" {
		if !models.IsValidTaskStatus(status) {
			return nil, validationError("invalid task status %q", status)
		}
		filter.Status = &status
	}

	if err := scopeToActor(ctx, s.deps, actor, &filter); err != nil {
		return nil, err
	}

	tasks, err := s.deps.Tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// scopeToActor narrows filter for staff to their own tasks plus shift duty on
// days they work, looking 30 days back and 60 ahead. Management sees everything.
func scopeToActor(ctx context.Context, deps WorkDeps, actor models.Principal, filter *models.TaskFilter) error {
	if isManagement(actor.Role) {
		return nil
	}
	filter.AssignedTo = &actor.UserID
	today := day(deps.clock()())
	shifts, err := deps.Schedules.ListByUser(ctx, actor.UserID, today.AddDate(0, 0, -30), today.AddDate(0, 0, 60))
	if err != nil {
		return fmt.Errorf("failed to load shifts: %w", err)
	}
	for _, sh := range shifts {
		filter.ShiftDates = append(filter.ShiftDates, sh.ShiftDate)
	}
	return nil
}

func (s *taskService) ListShiftTasks(ctx context.Context, date string) ([]models.Task, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	tasks, err := s.deps.Tasks.ListTasks(ctx, models.TaskFilter{Date: &d})
	if err != nil {
		return nil, fmt.Errorf("failed to list shift tasks: %w", err)
	}
	shiftTasks := tasks[:0]
	for _, t := range tasks {
		if t.AssignmentType == models.AssignShiftBased {
			shiftTasks = append(shiftTasks, t)
		}
	}
	return shiftTasks, nil
}

func (s *taskService) load(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Task, error) {
	task, err := s.deps.Tasks.GetTask(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// canWork reports whether actor may view, progress or complete task.
func canWork(actor models.Principal, task *models.Task) bool {
	if isManagement(actor.Role) || task.AssignmentType == models.AssignShiftBased {
		return true
	}
	return task.AssignedTo != nil && *task.AssignedTo == actor.UserID
}

func (s *taskService) Get(ctx context.Context, actor models.Principal, id int64) (*models.Task, error) {
	task, err := s.load(ctx, s.deps.Tx.Executor(), id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if !canWork(actor, task) {
		return nil, fmt.Errorf("%w: task is assigned to someone else", ErrForbidden)
	}
	return task, nil
}

func (s *taskService) Update(ctx context.Context, actor models.Principal, id int64, req TaskRequest) (*models.Task, error) {
	if err := s.allow(ctx, actor, models.PermEditTasks); err != nil {
		return nil, err
	}
	var task *models.Task
	notes := s.deps.notifier()
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		previousAssignee := current.AssignedTo
		if err := s.build(req, current); err != nil {
			return err
		}
		if err := s.deps.Tasks.UpdateTask(ctx, tx, current); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if current.AssignedTo != nil && (previousAssignee == nil || *previousAssignee != *current.AssignedTo) {
			taskID := current.ID
			if err := notes.add(ctx, tx, *current.AssignedTo, &taskID, models.NotifyTaskUpdated, "Task assigned to you: "+current.Title); err != nil {
				return err
			}
		}
		task = current
		return s.audit.record(ctx, tx, actor, "update_task", "task", id, "Updated task: "+current.Title)
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	notes.flush(ctx)
	s.pub.publish(ctx, models.EventTaskUpdated, 0, map[string]interface{}{"task_id": id})
	return task, nil
}

func (s *taskService) UpdateStatus(ctx context.Context, actor models.Principal, id int64, req TaskStatusRequest) (*models.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !models.IsValidTaskStatus(req.Status) {
		return nil, validationError("invalid task status %q", req.Status)
	}
	return s.transition(ctx, actor, id, req.Status, nil)
}

func (s *taskService) Complete(ctx context.Context, actor models.Principal, id int64, req CompleteTaskRequest) (*models.Task, error) {
	return s.transition(ctx, actor, id, models.TaskCompleted, trimmedPtr(req.Notes))
}

// transition moves a task to status. Completing records who and when, and
// tells the creator.
func (s *taskService) transition(ctx context.Context, actor models.Principal, id int64, status string, completionNotes *string) (*models.Task, error) {
	var task *models.Task
	notes := s.deps.notifier()
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canWork(actor, current) {
			return fmt.Errorf("%w: you cannot update this task", ErrForbidden)
		}

		var completedBy *int64
		var completedAt *time.Time
		if status == models.TaskCompleted {
			now := s.deps.clock()().UTC()
			completedBy, completedAt = &actor.UserID, &now
		}
		if err := s.deps.Tasks.UpdateStatus(ctx, tx, id, status, completedBy, completedAt, completionNotes); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		current.Status = status
		current.CompletedBy, current.CompletedAt = completedBy, completedAt
		if completionNotes != nil {
			current.CompletionNotes = completionNotes
		}
		task = current

		if status != models.TaskCompleted {
			return s.audit.record(ctx, tx, actor, "update_task_status", "task", id, "Status set to "+status)
		}
		if current.CreatedBy != nil && *current.CreatedBy != actor.UserID {
			name := actor.Username
			if u, err := s.deps.Users.FindUserByID(ctx, tx, actor.UserID); err == nil {
				name = u.FullName
			}
			taskID := current.ID
			msg := fmt.Sprintf("Task completed by %s: %s", name, current.Title)
			if err := notes.add(ctx, tx, *current.CreatedBy, &taskID, models.NotifyTaskCompleted, msg); err != nil {
				return err
			}
		}
		return s.audit.record(ctx, tx, actor, "complete_task", "task", id, "Completed task: "+current.Title)
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrForbidden) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	notes.flush(ctx)
	s.pub.publish(ctx, models.EventTaskStatusChanged, 0, map[string]interface{}{"task_id": id, "status": status})
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, actor models.Principal, id int64) error {
	if err := s.allow(ctx, actor, models.PermDeleteTasks); err != nil {
		return err
	}
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		task, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.deps.Tasks.DeleteTask(ctx, tx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		return s.audit.record(ctx, tx, actor, "delete_task", "task", id, "Deleted task: "+task.Title)
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.pub.publish(ctx, models.EventTaskDeleted, 0, map[string]interface{}{"task_id": id})
	return nil
}

func (s *taskService) Stats(ctx context.Context, actor models.Principal) (*models.TaskStats, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	tasks, err := s.deps.Tasks.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	today := day(s.deps.clock()())
	stats := &models.TaskStats{Total: len(tasks), ByStatus: map[string]int{}}
	for _, t := range tasks {
		stats.ByStatus[t.Status]++
		if t.Status != models.TaskCompleted && t.DueDate != nil && t.DueDate.Before(today) {
			stats.Overdue++
		}
	}
	return stats, nil
}
