package chatrequest

import (
	"time"

	"chat-requests/internal/domain/user"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a chat request.
type Status int

const (
	StatusPending Status = iota
	StatusAccepted
	StatusRejected
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusBlocked:
		return true
	}
	return false
}

// Open reports whether the status counts toward the one-open-request-per-pair
// constraint.
func (s Status) Open() bool {
	switch s {
	case StatusPending, StatusAccepted:
		return true
	case StatusRejected, StatusBlocked:
		return false
	}
	return false
}

// Terminal reports whether no transition other than deletion leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusBlocked:
		return true
	case StatusPending:
		return false
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		switch next {
		case StatusAccepted, StatusRejected, StatusBlocked:
			return true
		case StatusPending:
			return false
		}
	case StatusAccepted, StatusRejected, StatusBlocked:
		return false
	}
	return false
}

// ChatRequest represents the chat_requests table.
//
// ID is the internal key and never leaves the service; UUID is the external
// identifier handed to callers. The partial unique index keeps at most one
// open (pending or accepted) request per ordered pair.
type ChatRequest struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_chat_requests_open_pair,where:status < 2"`
	RecipientEmail string    `gorm:"not null;index;uniqueIndex:ux_chat_requests_open_pair,where:status < 2"`
	Status         Status    `gorm:"type:smallint;not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ChatRequest) TableName() string {
	return "chat_requests"
}

// New builds a pending request from sender to recipientEmail with a fresh
// external identifier.
func New(senderID uuid.UUID, recipientEmail string) ChatRequest {
	now := time.Now()
	return ChatRequest{
		UUID:           uuid.New(),
		SenderID:       senderID,
		RecipientEmail: user.NormalizeEmail(recipientEmail),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r ChatRequest) IsSender(u user.User) bool {
	return r.SenderID == u.ID
}

func (r ChatRequest) IsRecipient(u user.User) bool {
	return r.RecipientEmail == user.NormalizeEmail(u.Email)
}

// IsParty reports whether u is the sender or the recipient.
func (r ChatRequest) IsParty(u user.User) bool {
	return r.IsSender(u) || r.IsRecipient(u)
}
