package chat

import (
	"time"

	"github.com/google/uuid"
)

// Chat represents the chats table. A chat is materialized when a chat
// request is accepted; at most one exists per ordered (sender, recipient).
type Chat struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	SenderID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_chats_pair"`
	RecipientID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_chats_pair;index"`
	ChatRequestID int64     `gorm:"not null"`
	CreatedAt     time.Time
}

func (Chat) TableName() string {
	return "chats"
}

// Counterpart returns the other participant of the chat.
func (c Chat) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.SenderID == userID {
		return c.RecipientID
	}
	return c.SenderID
}
