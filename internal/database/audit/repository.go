package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

const defaultLimit = 50

// Filter narrows event listings. Zero values match everything.
type Filter struct {
	UserID     uint
	EventType  entities.AuditEventType
	EntityType string
	EntityID   string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(ctx context.Context, event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// GetEvents retrieves matching audit events, most recent first, with the
// total match count.
func (r *Repository) GetEvents(ctx context.Context, filter Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.AuditEvent{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// DeleteOldEvents removes audit events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}

// GetEventByID retrieves a single audit event by ID.
func (r *Repository) GetEventByID(ctx context.Context, id uint) (*entities.AuditEvent, error) {
	var event entities.AuditEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, database.Translate(err, fmt.Sprintf("audit event %d", id))
	}
	return &event, nil
}
