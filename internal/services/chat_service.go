package services

import (
	"context"
	"time"

	"chat-requests/internal/domain/chat"
	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/user"
	"chat-requests/internal/repository"
	app_errors "chat-requests/pkg/errors"

	"github.com/google/uuid"
)

// ChatCreator materializes the chat for an accepted request. tx is the
// caller's transaction; the chat must be written through it.
type ChatCreator interface {
	CreateChat(ctx context.Context, tx repository.Store, req chatrequest.ChatRequest) (chat.Chat, error)
}

type ChatService struct {
	store repository.Store
}

func NewChatService(store repository.Store) *ChatService {
	return &ChatService{store: store}
}

type ChatView struct {
	Chat             chat.Chat
	CounterpartEmail string
}

func (s *ChatService) CreateChat(ctx context.Context, tx repository.Store, req chatrequest.ChatRequest) (chat.Chat, error) {
	recipient, err := tx.Users().GetUserByEmail(ctx, req.RecipientEmail)
	if err != nil {
		return chat.Chat{}, err
	}
	if recipient.ID == req.SenderID {
		return chat.Chat{}, app_errors.ErrInvalidInput
	}

	c := chat.Chat{
		ID:            uuid.New(),
		SenderID:      req.SenderID,
		RecipientID:   recipient.ID,
		ChatRequestID: req.ID,
		CreatedAt:     time.Now(),
	}
	if err := tx.Chats().Create(ctx, &c); err != nil {
		return chat.Chat{}, err
	}
	return c, nil
}

// List returns every chat actor takes part in, in either direction.
func (s *ChatService) List(ctx context.Context, actor user.User) ([]ChatView, error) {
	chats, err := s.store.Chats().ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.Counterpart(actor.ID))
	}
	emails, err := emailsByID(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, err
	}

	views := make([]ChatView, 0, len(chats))
	for _, c := range chats {
		views = append(views, ChatView{Chat: c, CounterpartEmail: emails[c.Counterpart(actor.ID)]})
	}
	return views, nil
}

func emailsByID(ctx context.Context, repo repository.UserRepository, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	emails := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return emails, nil
	}
	users, err := repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		emails[u.ID] = u.Email
	}
	return emails, nil
}
