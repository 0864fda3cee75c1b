package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants, format domain.action
const (
	EventTypeChatRequestCreated  = "chat_request.created"
	EventTypeChatRequestAccepted = "chat_request.accepted"
	EventTypeChatRequestRejected = "chat_request.rejected"
	EventTypeChatRequestBlocked  = "chat_request.blocked"
	EventTypeChatRequestDeleted  = "chat_request.deleted"
)

const (
	AggregateTypeChatRequest = "chat_request"
)

// Redis channel prefixes
const (
	ChannelPrefixUser   = "channel:user:"
	ChannelSystemOutbox = "channel:system:outbox"
)

// ChatRequestPayload is the payload of every chat_request.* event.
type ChatRequestPayload struct {
	ChatRequestID  uuid.UUID  `json:"chat_request_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	RecipientEmail string     `json:"recipient_email"`
	ActorID        uuid.UUID  `json:"actor_id"`
	Status         string     `json:"status"`
	ChatID         *uuid.UUID `json:"chat_id,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}
