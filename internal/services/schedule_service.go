package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"
)

// WorkDeps bundles the storage and side channels used by the schedule and task services.
type WorkDeps struct {
	Users         repositories.UserRepository
	Schedules     repositories.ScheduleRepository
	Tasks         repositories.TaskRepository
	Templates     repositories.TemplateRepository
	Notifications repositories.NotificationRepository
	Audit         repositories.AuditRepository
	Tx            repositories.Transactor
	Permissions   PermissionService
	Broadcaster   realtime.Broadcaster
	Metrics       *metrics.Metrics
	Clock         Clock
}

func (d WorkDeps) clock() Clock {
	if d.Clock == nil {
		return time.Now
	}
	return d.Clock
}

func (d WorkDeps) notifier() *notifier {
	return &notifier{repo: d.Notifications, pub: publisher{broadcaster: d.Broadcaster, metrics: d.Metrics}}
}

// CreateShiftRequest DTO
type CreateShiftRequest struct {
	UserID     int64   `json:"user_id" binding:"required,gt=0"`
	ShiftDate  string  `json:"shift_date" binding:"required"`
	ShiftStart string  `json:"shift_start" binding:"required"`
	ShiftEnd   string  `json:"shift_end" binding:"required"`
	Role       *string `json:"role"`
	Notes      *string `json:"notes"`
}

// ScheduleService manages shift schedules.
type ScheduleService interface {
	Create(ctx context.Context, actor models.Principal, req CreateShiftRequest) (*models.ShiftSchedule, error)
	ListByDate(ctx context.Context, date string) ([]models.ShiftSchedule, error)
	ListByUser(ctx context.Context, actor models.Principal, userID int64, from, to string) ([]models.ShiftSchedule, error)
	OnDuty(ctx context.Context, date string) ([]models.User, error)
	Delete(ctx context.Context, actor models.Principal, id int64) error
}

type scheduleService struct {
	deps  WorkDeps
	audit auditor
}

// NewScheduleService creates a new instance of ScheduleService.
func NewScheduleService(deps WorkDeps) ScheduleService {
	return &scheduleService{deps: deps, audit: auditor{repo: deps.Audit}}
}

// parseClock validates an HH:MM time of day and returns minutes since midnight.
func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, validationError("invalid time %q, expected HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (s *scheduleService) Create(ctx context.Context, actor models.Principal, req CreateShiftRequest) (*models.ShiftSchedule, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.ShiftDate)
	if err != nil {
		return nil, err
	}
	start, err := parseClock(req.ShiftStart)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(req.ShiftEnd)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, validationError("shift_end must be after shift_start")
	}

	shift := &models.ShiftSchedule{
		UserID:     req.UserID,
		ShiftDate:  date,
		ShiftStart: strings.TrimSpace(req.ShiftStart),
		ShiftEnd:   strings.TrimSpace(req.ShiftEnd),
		Role:       trimmedPtr(req.Role),
		Notes:      trimmedPtr(req.Notes),
		CreatedBy:  &actor.UserID,
	}
	notes := s.deps.notifier()

	err = s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		user, err := s.deps.Users.FindUserByID(ctx, tx, req.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if !user.Active {
			return validationError("user %d is inactive", user.ID)
		}
		shift.FullName = &user.FullName
		if err := s.deps.Schedules.CreateShift(ctx, tx, shift); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		msg := fmt.Sprintf("You have been scheduled for a shift on %s from %s to %s",
			date.Format(dateLayout), shift.ShiftStart, shift.ShiftEnd)
		if err := notes.add(ctx, tx, user.ID, nil, models.NotifyShiftAssigned, msg); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, actor, "create_schedule", "schedule", shift.ID,
			fmt.Sprintf("Scheduled %s on %s %s-%s", user.Username, date.Format(dateLayout), shift.ShiftStart, shift.ShiftEnd))
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create shift: %w", err)
	}
	notes.flush(ctx)
	utils.LoggerFromContext(ctx).Info().Int64("shift_id", shift.ID).Int64("user_id", shift.UserID).Msg("Shift scheduled")
	return shift, nil
}

func (s *scheduleService) ListByDate(ctx context.Context, date string) ([]models.ShiftSchedule, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	shifts, err := s.deps.Schedules.ListByDate(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

func (s *scheduleService) ListByUser(ctx context.Context, actor models.Principal, userID int64, from, to string) ([]models.ShiftSchedule, error) {
	if actor.UserID != userID && !isManagement(actor.Role) {
		return nil, fmt.Errorf("%w: cannot view other users' schedules", ErrForbidden)
	}
	today := day(s.deps.clock()())
	start, end := today, today.AddDate(0, 0, 30)
	if strings.TrimSpace(from) != "" {
		d, err := parseDate(from)
		if err != nil {
			return nil, err
		}
		start = d
	}
	if strings.TrimSpace(to) != "" {
		d, err := parseDate(to)
		if err != nil {
			return nil, err
		}
		end = d
	}
	if end.Before(start) {
		return nil, validationError("endDate must not be before startDate")
	}
	shifts, err := s.deps.Schedules.ListByUser(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

// OnDuty returns the distinct users scheduled on date.
func (s *scheduleService) OnDuty(ctx context.Context, date string) ([]models.User, error) {
	shifts, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.usersOf(ctx, s.deps.Tx.Executor(), shifts)
}

func (s *scheduleService) usersOf(ctx context.Context, exec repositories.SQLExecutor, shifts []models.ShiftSchedule) ([]models.User, error) {
	seen := make(map[int64]bool, len(shifts))
	users := []models.User{}
	for _, sh := range shifts {
		if seen[sh.UserID] {
			continue
		}
		seen[sh.UserID] = true
		user, err := s.deps.Users.FindUserByID(ctx, exec, sh.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load user %d: %w", sh.UserID, err)
		}
		if !user.Active {
			continue
		}
		users = append(users, *user)
	}
	return scrub(users), nil
}

func (s *scheduleService) Delete(ctx context.Context, actor models.Principal, id int64) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	err := s.deps.Tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.deps.Schedules.DeleteShift(ctx, tx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrShiftNotFound
			}
			return err
		}
		return s.audit.record(ctx, tx, actor, "delete_schedule", "schedule", id, "")
	})
	if err != nil {
		if errors.Is(err, ErrShiftNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	return nil
}
