package event

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent represents outbox_events
type OutboxEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	AggregateType string    `gorm:"not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null"`
	EventType     string    `gorm:"not null"`
	Payload       string    `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time `gorm:"default:now()"`
	ProcessedAt   sql.NullTime
	RetryCount    int `gorm:"default:0"`
	MaxRetries    int `gorm:"default:5"`
	NextRetryAt   sql.NullTime
	ErrorMessage  sql.NullString
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
