// Package memory is an in-memory repository.Store used by tests.
// Transactions snapshot every table and restore them when fn fails, giving
// the same all-or-nothing behaviour as the gorm store.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"chat-requests/internal/domain/chat"
	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/event"
	"chat-requests/internal/domain/user"
	"chat-requests/internal/repository"
	app_errors "chat-requests/pkg/errors"

	"github.com/google/uuid"
)

// Store is an in-memory repository.Store. The zero value is not usable; use New.
type Store struct {
	mu sync.Mutex

	users    map[uuid.UUID]user.User
	requests map[int64]chatrequest.ChatRequest
	chats    []chat.Chat
	events   []event.OutboxEvent
	nextID   int64

	// FailUpdate, when set, is returned by ChatRequests().UpdateStatus.
	FailUpdate error
	// FailEvents, when set, is returned by Events().CreateOutboxEvent.
	FailEvents error
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]user.User),
		requests: make(map[int64]chatrequest.ChatRequest),
	}
}

// AddUser inserts a user with no password.
func (s *Store) AddUser(email string) user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user.User{ID: uuid.New(), Email: user.NormalizeEmail(email), CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u
}

func (s *Store) RemoveUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// Request looks a chat request up by its external id.
func (s *Store) Request(id uuid.UUID) (chatrequest.ChatRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.UUID == id {
			return r, true
		}
	}
	return chatrequest.ChatRequest{}, false
}

func (s *Store) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Store) ChatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

// EventTypes lists the outbox event types in insertion order.
func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// OutboxEvents returns a copy of the outbox table.
func (s *Store) OutboxEvents() []event.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.OutboxEvent(nil), s.events...)
}

func (s *Store) Users() repository.UserRepository               { return users{s} }
func (s *Store) ChatRequests() repository.ChatRequestRepository { return requests{s} }
func (s *Store) Chats() repository.ChatRepository               { return chats{s} }
func (s *Store) Events() repository.EventRepository             { return outbox{s} }

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	savedUsers := make(map[uuid.UUID]user.User, len(s.users))
	for k, v := range s.users {
		savedUsers[k] = v
	}
	savedRequests := make(map[int64]chatrequest.ChatRequest, len(s.requests))
	for k, v := range s.requests {
		savedRequests[k] = v
	}
	savedChats := append([]chat.Chat(nil), s.chats...)
	savedEvents := append([]event.OutboxEvent(nil), s.events...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.users, s.requests, s.chats, s.events = savedUsers, savedRequests, savedChats, savedEvents
		s.mu.Unlock()
		return err
	}
	return nil
}

type users struct{ s *Store }

func (r users) Create(ctx context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return app_errors.ErrAlreadyExists
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r users) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, app_errors.ErrNotFound
	}
	return u, nil
}

func (r users) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = user.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, app_errors.ErrNotFound
}

func (r users) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type requests struct{ s *Store }

func (r requests) Create(ctx context.Context, req *chatrequest.ChatRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.requests {
		if existing.SenderID == req.SenderID && existing.RecipientEmail == req.RecipientEmail && existing.Status.Open() {
			return app_errors.ErrAlreadyExists
		}
	}
	r.s.nextID++
	req.ID = r.s.nextID
	r.s.requests[req.ID] = *req
	return nil
}

func (r requests) GetByUUID(ctx context.Context, id uuid.UUID) (chatrequest.ChatRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.requests {
		if req.UUID == id {
			return req, nil
		}
	}
	return chatrequest.ChatRequest{}, app_errors.ErrNotFound
}

func (r requests) GetSentTo(ctx context.Context, senderID uuid.UUID, recipientEmail string) (chatrequest.ChatRequest, error) {
	sent, _ := r.ListSent(ctx, senderID)
	for _, req := range sent {
		if req.RecipientEmail == recipientEmail {
			return req, nil
		}
	}
	return chatrequest.ChatRequest{}, app_errors.ErrNotFound
}

// ListSent returns newest first, by internal id.
func (r requests) ListSent(ctx context.Context, senderID uuid.UUID) ([]chatrequest.ChatRequest, error) {
	return r.filter(func(req chatrequest.ChatRequest) bool { return req.SenderID == senderID }), nil
}

func (r requests) ListReceived(ctx context.Context, recipientEmail string) ([]chatrequest.ChatRequest, error) {
	email := user.NormalizeEmail(recipientEmail)
	return r.filter(func(req chatrequest.ChatRequest) bool { return req.RecipientEmail == email }), nil
}

func (r requests) filter(keep func(chatrequest.ChatRequest) bool) []chatrequest.ChatRequest {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []chatrequest.ChatRequest
	for _, req := range r.s.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r requests) UpdateStatus(ctx context.Context, id int64, from, to chatrequest.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailUpdate != nil {
		return r.s.FailUpdate
	}
	req, ok := r.s.requests[id]
	if !ok || req.Status != from {
		return app_errors.ErrInvalidTransition
	}
	req.Status = to
	req.UpdatedAt = time.Now()
	r.s.requests[id] = req
	return nil
}

func (r requests) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[id]; !ok {
		return app_errors.ErrNotFound
	}
	delete(r.s.requests, id)
	return nil
}

type chats struct{ s *Store }

func (r chats) Create(ctx context.Context, c *chat.Chat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.chats {
		if existing.SenderID == c.SenderID && existing.RecipientID == c.RecipientID {
			return app_errors.ErrAlreadyExists
		}
	}
	r.s.chats = append(r.s.chats, *c)
	return nil
}

func (r chats) Exists(ctx context.Context, senderID, recipientID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.chats {
		if c.SenderID == senderID && c.RecipientID == recipientID {
			return true, nil
		}
	}
	return false, nil
}

func (r chats) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []chat.Chat
	for _, c := range r.s.chats {
		if c.SenderID == userID || c.RecipientID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type outbox struct{ s *Store }

func (r outbox) CreateOutboxEvent(ctx context.Context, e *event.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailEvents != nil {
		return r.s.FailEvents
	}
	r.s.events = append(r.s.events, *e)
	return nil
}

func (r outbox) GetPendingOutboxEvents(ctx context.Context, limit int) ([]event.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var out []event.OutboxEvent
	for _, e := range r.s.events {
		if len(out) == limit {
			break
		}
		if e.ProcessedAt.Valid || e.RetryCount >= e.MaxRetries {
			continue
		}
		if e.NextRetryAt.Valid && e.NextRetryAt.Time.After(now) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r outbox) MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.events {
		if r.s.events[i].ID == id {
			r.s.events[i].ProcessedAt.Valid = true
			r.s.events[i].ProcessedAt.Time = time.Now()
			return nil
		}
	}
	return app_errors.ErrNotFound
}

func (r outbox) MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMessage string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.events {
		if r.s.events[i].ID == id {
			r.s.events[i].RetryCount++
			r.s.events[i].NextRetryAt = sql.NullTime{Time: nextRetryAt, Valid: true}
			r.s.events[i].ErrorMessage.Valid = true
			r.s.events[i].ErrorMessage.String = errorMessage
			return nil
		}
	}
	return app_errors.ErrNotFound
}

var _ repository.Store = (*Store)(nil)
