package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"
)

const dateLayout = "2006-01-02"

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

// day truncates t to midnight UTC of its calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validationError("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if utils.IsEmpty(utils.DerefString(value, "")) {
		return nil, nil
	}
	t, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// auditor writes audit entries inside the caller's transaction.
type auditor struct {
	repo repositories.AuditRepository
}

func (a auditor) record(ctx context.Context, exec repositories.SQLExecutor, actor models.Principal, action, entityType string, entityID int64, details string) error {
	entry := &models.AuditEntry{
		Action:     action,
		EntityType: entityType,
	}
	if actor.UserID != 0 {
		entry.UserID = &actor.UserID
	}
	if entityID != 0 {
		entry.EntityID = &entityID
	}
	if details != "" {
		entry.Details = &details
	}
	if actor.Origin != "" {
		entry.IPAddress = &actor.Origin
	}
	if err := a.repo.CreateEntry(ctx, exec, entry); err != nil {
		return fmt.Errorf("writing audit entry %s: %w", action, err)
	}
	return nil
}

// publisher pushes events after commit. Failures are logged and counted, never returned.
type publisher struct {
	broadcaster realtime.Broadcaster
	metrics     *metrics.Metrics
}

func (p publisher) publish(ctx context.Context, eventType string, userID int64, payload interface{}) {
	if p.broadcaster == nil {
		return
	}
	event := realtime.NewEvent(eventType, userID, payload)
	if err := p.broadcaster.Publish(ctx, event); err != nil {
		p.metrics.RealtimeFailure()
		utils.LoggerFromContext(ctx).Warn().Err(err).Str("event", eventType).Msg("Realtime publish failed")
	}
}

func isManagement(role string) bool {
	return role == models.RoleAdmin || role == models.RoleManager
}

func strPtr(s string) *string { return &s }

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.NewNullString(strings.TrimSpace(*s))
}
