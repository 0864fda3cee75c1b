package httpdto

import "github.com/google/uuid"

type ChatDTO struct {
	ID               uuid.UUID `json:"id"`
	SenderID         uuid.UUID `json:"sender_id"`
	RecipientID      uuid.UUID `json:"recipient_id"`
	CounterpartEmail string    `json:"counterpart_email,omitempty"`
	CreatedAt        string    `json:"created_at"`
}

// ChatListResponse is returned by GET /v1/chats
type ChatListResponse struct {
	Chats []ChatDTO `json:"chats"`
}
