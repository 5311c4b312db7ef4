package repositories

import (
	"context"
	"fmt"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// NotificationRepository persists per-user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, executor SQLExecutor, n *models.Notification) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	// MarkRead returns ErrNotFound unless the notification belongs to userID.
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, executor SQLExecutor, n *models.Notification) error {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO notifications (user_id, task_id, message, type) VALUES ($1, $2, $3, $4)
		 RETURNING id, read, created_at`,
		n.UserID, n.TaskID, n.Message, n.Type,
	).Scan(&n.ID, &n.Read, &n.CreatedAt)
	return mapError(err, "creating notification")
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, task_id, message, type, read, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	notifications := []models.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, mapError(err, "listing notifications")
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(err, "marking notification read")
	}
	if err := requireAffected(res, "marking notification read"); err != nil {
		return fmt.Errorf("%w: notification %d", ErrNotFound, id)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, mapError(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "marking notifications read")
	}
	return n, nil
}
