package audit

import (
	"context"
	"log"
	"time"

	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database/audit"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var (
	_ catalog.AuditRecorder = (*Service)(nil)
	_ auth.AuthRecorder     = (*Service)(nil)
)

// Service writes the audit trail. Recording never fails the caller: errors
// are logged and dropped.
type Service struct {
	repo *audit.Repository
	now  func() time.Time
}

func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Log records a single event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	if event.Status == "" {
		event.Status = entities.AuditStatusSuccess
	}
	event.Description = truncate(event.Description, 500)
	event.ErrorMsg = truncate(event.ErrorMsg, 500)
	return s.repo.LogEvent(ctx, event)
}

func (s *Service) logQuietly(ctx context.Context, event *entities.AuditEvent) {
	if err := s.Log(ctx, event); err != nil {
		log.Printf("Failed to log audit event %s: %v", event.Action, err)
	}
}

// RecordChange notes a successful catalog change made by userID.
func (s *Service) RecordChange(ctx context.Context, userID uint, eventType entities.AuditEventType, entityType, entityID, description string) {
	s.logQuietly(ctx, &entities.AuditEvent{
		UserID:      userID,
		EventType:   eventType,
		Action:      entityType + "_" + string(eventType),
		Description: description,
		EntityType:  entityType,
		EntityID:    entityID,
	})
}

// LogAuth records a login, logout or setup attempt.
func (s *Service) LogAuth(ctx context.Context, userID uint, action, ipAddr string, err error) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = err.Error()
	}
	s.logQuietly(ctx, event)
}

// List returns matching events, most recent first, with the total count.
func (s *Service) List(ctx context.Context, filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, filter, limit, offset)
}

// Prune deletes events older than retentionDays and returns how many went.
func (s *Service) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
