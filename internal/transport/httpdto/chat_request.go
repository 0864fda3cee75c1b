package httpdto

import "github.com/google/uuid"

// CreateChatRequestRequest is used for POST /v1/chat-requests
type CreateChatRequestRequest struct {
	RecipientEmail string `json:"recipient_email" binding:"required"`
}

// ChatRequestDTO is a chat request as seen by callers. The internal key is
// never exposed; ID is the external identifier.
type ChatRequestDTO struct {
	ID             uuid.UUID `json:"id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderEmail    string    `json:"sender_email,omitempty"`
	RecipientEmail string    `json:"recipient_email"`
	Status         string    `json:"status"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
}

// ChatRequestListResponse is returned by GET /v1/chat-requests
type ChatRequestListResponse struct {
	Sent     []ChatRequestDTO `json:"sent"`
	Received []ChatRequestDTO `json:"received"`
}

// AcceptChatRequestResponse is returned by POST /v1/chat-requests/:id/accept
type AcceptChatRequestResponse struct {
	Message string  `json:"message"`
	Chat    ChatDTO `json:"chat"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
