package repository

import (
	"context"
	"time"

	"chat-requests/internal/domain/chat"
	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/event"
	"chat-requests/internal/domain/user"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}

type ChatRequestRepository interface {
	Create(ctx context.Context, r *chatrequest.ChatRequest) error
	GetByUUID(ctx context.Context, id uuid.UUID) (chatrequest.ChatRequest, error)
	// GetSentTo returns the most recent request from senderID to recipientEmail.
	GetSentTo(ctx context.Context, senderID uuid.UUID, recipientEmail string) (chatrequest.ChatRequest, error)
	ListSent(ctx context.Context, senderID uuid.UUID) ([]chatrequest.ChatRequest, error)
	ListReceived(ctx context.Context, recipientEmail string) ([]chatrequest.ChatRequest, error)
	// UpdateStatus moves the request from one status to another. It fails with
	// ErrInvalidTransition when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id int64, from, to chatrequest.Status) error
	Delete(ctx context.Context, id int64) error
}

type ChatRepository interface {
	Create(ctx context.Context, c *chat.Chat) error
	Exists(ctx context.Context, senderID, recipientID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error)
}

type EventRepository interface {
	CreateOutboxEvent(ctx context.Context, e *event.OutboxEvent) error
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]event.OutboxEvent, error)
	MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error
	MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMessage string) error
}

// Store groups the repositories that have to share a transaction.
type Store interface {
	Users() UserRepository
	ChatRequests() ChatRequestRepository
	Chats() ChatRepository
	Events() EventRepository
	// Transaction runs fn against a Store bound to a single transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
