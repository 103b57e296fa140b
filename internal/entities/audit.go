package entities

import "time"

type AuditEventType string

const (
	AuditEventCreate AuditEventType = "create"
	AuditEventUpdate AuditEventType = "update"
	AuditEventDelete AuditEventType = "delete"
	AuditEventLoan   AuditEventType = "loan"
	AuditEventAuth   AuditEventType = "auth"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g. "author_create", "instance_renew"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	EntityType  string         `gorm:"size:50" json:"entity_type"`  // "author", "book", "book_instance"
	EntityID    string         `gorm:"index;size:36" json:"entity_id,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
