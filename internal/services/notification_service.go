package services

import (
	"context"
	"errors"
	"fmt"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
)

const defaultNotificationLimit = 50

// NotificationService serves the caller's notification inbox.
type NotificationService interface {
	List(ctx context.Context, actor models.Principal, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, actor models.Principal, id int64) error
	MarkAllRead(ctx context.Context, actor models.Principal) (int64, error)
}

type notificationService struct {
	repo repositories.NotificationRepository
}

// NewNotificationService creates a new instance of NotificationService.
func NewNotificationService(repo repositories.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) List(ctx context.Context, actor models.Principal, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultNotificationLimit
	}
	items, err := s.repo.ListForUser(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor models.Principal, id int64) error {
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor models.Principal) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// notifier stores notifications inside a transaction and pushes them once the
// caller has committed.
type notifier struct {
	repo    repositories.NotificationRepository
	pub     publisher
	pending []models.Notification
}

func (n *notifier) add(ctx context.Context, exec repositories.SQLExecutor, userID int64, taskID *int64, kind, message string) error {
	note := models.Notification{UserID: userID, TaskID: taskID, Type: kind, Message: message}
	if err := n.repo.CreateNotification(ctx, exec, &note); err != nil {
		return fmt.Errorf("creating notification for user %d: %w", userID, err)
	}
	n.pending = append(n.pending, note)
	return nil
}

func (n *notifier) flush(ctx context.Context) {
	for _, note := range n.pending {
		n.pub.publish(ctx, models.EventNotification, note.UserID, note)
	}
	n.pending = nil
}
