package services

import (
	"context"
	"errors"

	"chat-requests/internal/domain/chat"
	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/user"
	"chat-requests/internal/events"
	"chat-requests/internal/repository"
	app_errors "chat-requests/pkg/errors"
	"chat-requests/pkg/logger"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownRecipient       = app_errors.New(app_errors.ErrValidation, "recipient_email: no user with this email")
	ErrSelfRequest            = app_errors.New(app_errors.ErrForbidden, "cannot send a chat request to yourself")
	ErrChatAlreadyEstablished = app_errors.New(app_errors.ErrConflict, "active chat already established")
	ErrRecipientBlocked       = app_errors.New(app_errors.ErrConflict, "recipient has blocked you from sending request")
	ErrAlreadyRequested       = app_errors.New(app_errors.ErrConflict, "already sent a request to this user")
	ErrChatRequestNotFound    = app_errors.New(app_errors.ErrNotFound, "chat request not found")
	ErrAcceptOwnRequest       = app_errors.New(app_errors.ErrForbidden, "cannot accept a request sent by you")
	ErrNotRecipient           = app_errors.New(app_errors.ErrForbidden, "only the recipient can respond to this chat request")
	ErrNotParty               = app_errors.New(app_errors.ErrForbidden, "not a party to this chat request")
	ErrDeleteBlocked          = app_errors.New(app_errors.ErrForbidden, "only the recipient can delete a blocked chat request")
	ErrRequestResolved        = app_errors.New(app_errors.ErrInvalidTransition, "chat request has already been resolved")
	ErrChatCreationFailed     = app_errors.New(app_errors.ErrInvalidInput, "could not create chat for this request")
)

// ChatRequestService owns the chat request lifecycle. It never caches rows:
// every operation re-reads the request before acting on it.
type ChatRequestService struct {
	store repository.Store
	chats ChatCreator
	log   *logger.Logger
}

func NewChatRequestService(store repository.Store, chats ChatCreator, l *logger.Logger) *ChatRequestService {
	if l == nil {
		l = logger.NewNop()
	}
	return &ChatRequestService{store: store, chats: chats, log: l}
}

type ChatRequestView struct {
	Request     chatrequest.ChatRequest
	SenderEmail string
}

type ChatRequestList struct {
	Sent     []ChatRequestView
	Received []ChatRequestView
}

func (s *ChatRequestService) List(ctx context.Context, actor user.User) (ChatRequestList, error) {
	sent, err := s.store.ChatRequests().ListSent(ctx, actor.ID)
	if err != nil {
		return ChatRequestList{}, err
	}
	received, err := s.store.ChatRequests().ListReceived(ctx, actor.Email)
	if err != nil {
		return ChatRequestList{}, err
	}

	senderIDs := make([]uuid.UUID, 0, len(received))
	for _, r := range received {
		senderIDs = append(senderIDs, r.SenderID)
	}
	senderEmails, err := emailsByID(ctx, s.store.Users(), senderIDs)
	if err != nil {
		return ChatRequestList{}, err
	}

	out := ChatRequestList{
		Sent:     make([]ChatRequestView, 0, len(sent)),
		Received: make([]ChatRequestView, 0, len(received)),
	}
	for _, r := range sent {
		out.Sent = append(out.Sent, ChatRequestView{Request: r, SenderEmail: actor.Email})
	}
	for _, r := range received {
		out.Received = append(out.Received, ChatRequestView{Request: r, SenderEmail: senderEmails[r.SenderID]})
	}
	return out, nil
}

// Create sends a chat request from actor to recipientEmail. Checks run in a
// fixed order and the first failing one decides the error.
func (s *ChatRequestService) Create(ctx context.Context, actor user.User, recipientEmail string) (chatrequest.ChatRequest, error) {
	email := user.NormalizeEmail(recipientEmail)
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return chatrequest.ChatRequest{}, app_errors.New(app_errors.ErrValidation, "recipient_email: "+err.Error())
	}

	recipient, err := s.store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, app_errors.ErrNotFound) {
			return chatrequest.ChatRequest{}, ErrUnknownRecipient
		}
		return chatrequest.ChatRequest{}, err
	}

	if email == user.NormalizeEmail(actor.Email) {
		return chatrequest.ChatRequest{}, ErrSelfRequest
	}

	exists, err := s.store.Chats().Exists(ctx, actor.ID, recipient.ID)
	if err != nil {
		return chatrequest.ChatRequest{}, err
	}
	if exists {
		return chatrequest.ChatRequest{}, ErrChatAlreadyEstablished
	}

	existing, err := s.store.ChatRequests().GetSentTo(ctx, actor.ID, email)
	switch {
	case err == nil:
		return chatrequest.ChatRequest{}, duplicateRequestError(existing.Status)
	case !errors.Is(err, app_errors.ErrNotFound):
		return chatrequest.ChatRequest{}, err
	}

	req := chatrequest.New(actor.ID, email)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.ChatRequests().Create(ctx, &req); err != nil {
			if errors.Is(err, app_errors.ErrAlreadyExists) {
				// Lost the race against a concurrent create for the same pair.
				return ErrAlreadyRequested
			}
			return err
		}
		return recordChatRequestEvent(ctx, tx.Events(), events.EventTypeChatRequestCreated, req, recipient.ID, actor.ID, nil)
	})
	if err != nil {
		return chatrequest.ChatRequest{}, err
	}

	s.log.InfoCtx(ctx, "chat request created",
		zap.String("chat_request_id", req.UUID.String()),
		zap.String("recipient_email", req.RecipientEmail),
	)
	return req, nil
}

func duplicateRequestError(status chatrequest.Status) error {
	switch status {
	case chatrequest.StatusAccepted:
		return ErrChatAlreadyEstablished
	case chatrequest.StatusBlocked:
		return ErrRecipientBlocked
	case chatrequest.StatusPending, chatrequest.StatusRejected:
		return ErrAlreadyRequested
	}
	return ErrAlreadyRequested
}

// Accept creates the chat for a pending request and marks it accepted. Both
// writes share one transaction, so an accepted request always has its chat.
func (s *ChatRequestService) Accept(ctx context.Context, actor user.User, id uuid.UUID) (chat.Chat, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return chat.Chat{}, err
	}
	if req.IsSender(actor) {
		return chat.Chat{}, ErrAcceptOwnRequest
	}
	if !req.IsRecipient(actor) {
		return chat.Chat{}, ErrNotParty
	}
	if !req.Status.CanTransitionTo(chatrequest.StatusAccepted) {
		return chat.Chat{}, ErrRequestResolved
	}

	var created chat.Chat
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		c, err := s.chats.CreateChat(ctx, tx, req)
		if err != nil {
			if isChatCreationFailure(err) {
				s.log.InfoCtx(ctx, "chat creation refused",
					zap.String("chat_request_id", req.UUID.String()),
					zap.Error(err),
				)
				return ErrChatCreationFailed
			}
			return err
		}
		if err := tx.ChatRequests().UpdateStatus(ctx, req.ID, req.Status, chatrequest.StatusAccepted); err != nil {
			return transitionError(err)
		}
		req.Status = chatrequest.StatusAccepted
		created = c
		return recordChatRequestEvent(ctx, tx.Events(), events.EventTypeChatRequestAccepted, req, actor.ID, actor.ID, &c.ID)
	})
	if err != nil {
		return chat.Chat{}, err
	}

	s.log.InfoCtx(ctx, "chat request accepted",
		zap.String("chat_request_id", req.UUID.String()),
		zap.String("chat_id", created.ID.String()),
	)
	return created, nil
}

func isChatCreationFailure(err error) bool {
	return errors.Is(err, app_errors.ErrAlreadyExists) ||
		errors.Is(err, app_errors.ErrNotFound) ||
		errors.Is(err, app_errors.ErrInvalidInput)
}

func (s *ChatRequestService) Reject(ctx context.Context, actor user.User, id uuid.UUID) error {
	return s.respond(ctx, actor, id, chatrequest.StatusRejected, events.EventTypeChatRequestRejected)
}

func (s *ChatRequestService) Block(ctx context.Context, actor user.User, id uuid.UUID) error {
	return s.respond(ctx, actor, id, chatrequest.StatusBlocked, events.EventTypeChatRequestBlocked)
}

// respond moves a pending request to a terminal status on behalf of its
// recipient.
func (s *ChatRequestService) respond(ctx context.Context, actor user.User, id uuid.UUID, to chatrequest.Status, eventType string) error {
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !req.IsParty(actor) {
		return ErrNotParty
	}
	if !req.IsRecipient(actor) {
		return ErrNotRecipient
	}
	if !req.Status.CanTransitionTo(to) {
		return ErrRequestResolved
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.ChatRequests().UpdateStatus(ctx, req.ID, req.Status, to); err != nil {
			return transitionError(err)
		}
		req.Status = to
		return recordChatRequestEvent(ctx, tx.Events(), eventType, req, actor.ID, actor.ID, nil)
	})
	if err != nil {
		return err
	}

	s.log.InfoCtx(ctx, "chat request "+to.String(), zap.String("chat_request_id", req.UUID.String()))
	return nil
}

// Delete removes the request permanently. Either party may delete it,
// except that a blocked request can only be removed by its recipient: the
// row is what keeps the sender blocked.
func (s *ChatRequestService) Delete(ctx context.Context, actor user.User, id uuid.UUID) error {
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !req.IsParty(actor) {
		return ErrNotParty
	}
	if req.Status == chatrequest.StatusBlocked && !req.IsRecipient(actor) {
		return ErrDeleteBlocked
	}

	recipientID := s.recipientID(ctx, req, actor)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.ChatRequests().Delete(ctx, req.ID); err != nil {
			if errors.Is(err, app_errors.ErrNotFound) {
				return ErrChatRequestNotFound
			}
			return err
		}
		return recordChatRequestEvent(ctx, tx.Events(), events.EventTypeChatRequestDeleted, req, recipientID, actor.ID, nil)
	})
	if err != nil {
		return err
	}

	s.log.InfoCtx(ctx, "chat request deleted", zap.String("chat_request_id", req.UUID.String()))
	return nil
}

func (s *ChatRequestService) load(ctx context.Context, id uuid.UUID) (chatrequest.ChatRequest, error) {
	req, err := s.store.ChatRequests().GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, app_errors.ErrNotFound) {
			return chatrequest.ChatRequest{}, ErrChatRequestNotFound
		}
		return chatrequest.ChatRequest{}, err
	}
	return req, nil
}

// recipientID is best effort: the recipient may have been removed since the
// request was sent, in which case uuid.Nil is returned.
func (s *ChatRequestService) recipientID(ctx context.Context, req chatrequest.ChatRequest, actor user.User) uuid.UUID {
	if req.IsRecipient(actor) {
		return actor.ID
	}
	u, err := s.store.Users().GetUserByEmail(ctx, req.RecipientEmail)
	if err != nil {
		return uuid.Nil
	}
	return u.ID
}

func transitionError(err error) error {
	if errors.Is(err, app_errors.ErrInvalidTransition) {
		return ErrRequestResolved
	}
	return err
}
