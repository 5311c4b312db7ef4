package repositories

import (
	"context"
	"fmt"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// ScheduleRepository persists shift schedules.
type ScheduleRepository interface {
	CreateShift(ctx context.Context, executor SQLExecutor, shift *models.ShiftSchedule) error
	GetShift(ctx context.Context, id int64) (*models.ShiftSchedule, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.ShiftSchedule, error)
	ListByUser(ctx context.Context, userID int64, from, to time.Time) ([]models.ShiftSchedule, error)
	DeleteShift(ctx context.Context, executor SQLExecutor, id int64) error
}

type scheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new instance of ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const shiftSelect = `SELECT ss.id, ss.user_id, u.full_name, ss.shift_date, ss.shift_start, ss.shift_end, ss.role,
	       ss.notes, ss.created_by, ss.created_at
	FROM shift_schedules ss
	JOIN users u ON u.id = ss.user_id`

func (r *scheduleRepository) CreateShift(ctx context.Context, executor SQLExecutor, shift *models.ShiftSchedule) error {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO shift_schedules (user_id, shift_date, shift_start, shift_end, role, notes, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		shift.UserID, dateArg(shift.ShiftDate), shift.ShiftStart, shift.ShiftEnd, shift.Role, shift.Notes, shift.CreatedBy,
	).Scan(&shift.ID, &shift.CreatedAt)
	if err != nil {
		mapped := mapError(err, "creating shift")
		if isForeignKey(mapped) {
			return fmt.Errorf("%w: user %d", ErrNotFound, shift.UserID)
		}
		return mapped
	}
	return nil
}

func (r *scheduleRepository) GetShift(ctx context.Context, id int64) (*models.ShiftSchedule, error) {
	var shift models.ShiftSchedule
	if err := r.db.GetContext(ctx, &shift, shiftSelect+` WHERE ss.id = $1`, id); err != nil {
		return nil, mapError(err, "getting shift")
	}
	return &shift, nil
}

func (r *scheduleRepository) ListByDate(ctx context.Context, date time.Time) ([]models.ShiftSchedule, error) {
	shifts := []models.ShiftSchedule{}
	err := r.db.SelectContext(ctx, &shifts,
		shiftSelect+` WHERE ss.shift_date = $1::date ORDER BY ss.shift_start, u.full_name`, dateArg(date))
	if err != nil {
		return nil, mapError(err, "listing shifts by date")
	}
	return shifts, nil
}

func (r *scheduleRepository) ListByUser(ctx context.Context, userID int64, from, to time.Time) ([]models.ShiftSchedule, error) {
	shifts := []models.ShiftSchedule{}
	err := r.db.SelectContext(ctx, &shifts,
		shiftSelect+` WHERE ss.user_id = $1 AND ss.shift_date BETWEEN $2::date AND $3::date
		 ORDER BY ss.shift_date, ss.shift_start`, userID, dateArg(from), dateArg(to))
	if err != nil {
		return nil, mapError(err, "listing shifts by user")
	}
	return shifts, nil
}

func (r *scheduleRepository) DeleteShift(ctx context.Context, executor SQLExecutor, id int64) error {
	res, err := executor.ExecContext(ctx, `DELETE FROM shift_schedules WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting shift")
	}
	if err := requireAffected(res, "deleting shift"); err != nil {
		return fmt.Errorf("%w: shift %d", ErrNotFound, id)
	}
	return nil
}
