package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"chat-requests/internal/domain/chat"
	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/user"
	"chat-requests/internal/events"
	"chat-requests/internal/repository"
	"chat-requests/internal/repository/memory"
	app_errors "chat-requests/pkg/errors"

	"github.com/google/uuid"
)

type failingChatCreator struct{ err error }

func (f failingChatCreator) CreateChat(ctx context.Context, tx repository.Store, req chatrequest.ChatRequest) (chat.Chat, error) {
	return chat.Chat{}, f.err
}

func newTestChatRequestService(store *memory.Store) *ChatRequestService {
	return NewChatRequestService(store, NewChatService(store), nil)
}

func TestCreateChatRequest(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	store.AddUser("bob@x.com")

	req, err := svc.Create(ctx, alice, " Bob@X.com ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != chatrequest.StatusPending {
		t.Errorf("status = %s, want pending", req.Status)
	}
	if req.UUID == uuid.Nil {
		t.Error("expected an external id")
	}
	if req.RecipientEmail != "bob@x.com" {
		t.Errorf("recipient email = %q", req.RecipientEmail)
	}
	if _, ok := store.Request(req.UUID); !ok {
		t.Error("request was not stored")
	}
	if got := store.EventTypes(); !reflect.DeepEqual(got, []string{events.EventTypeChatRequestCreated}) {
		t.Errorf("events = %v", got)
	}
}

func TestCreateChatRequestRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T, store *memory.Store, svc *ChatRequestService)
		email   string
		wantErr error
		kind    error
	}{
		{
			name:    "malformed email",
			email:   "not-an-email",
			kind:    app_errors.ErrValidation,
			setup:   func(*testing.T, *memory.Store, *ChatRequestService) {},
		},
		{
			name:    "unknown recipient",
			email:   "nobody@x.com",
			wantErr: ErrUnknownRecipient,
			kind:    app_errors.ErrValidation,
			setup:   func(*testing.T, *memory.Store, *ChatRequestService) {},
		},
		{
			name:    "self request",
			email:   "ALICE@x.com",
			wantErr: ErrSelfRequest,
			kind:    app_errors.ErrForbidden,
			setup:   func(*testing.T, *memory.Store, *ChatRequestService) {},
		},
		{
			name:    "pending request exists",
			email:   "bob@x.com",
			wantErr: ErrAlreadyRequested,
			kind:    app_errors.ErrConflict,
			setup: func(t *testing.T, store *memory.Store, svc *ChatRequestService) {
				mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
			},
		},
		{
			name:    "rejected request exists",
			email:   "bob@x.com",
			wantErr: ErrAlreadyRequested,
			kind:    app_errors.ErrConflict,
			setup: func(t *testing.T, store *memory.Store, svc *ChatRequestService) {
				req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
				if err := svc.Reject(context.Background(), mustUser(t, store, "bob@x.com"), req.UUID); err != nil {
					t.Fatalf("Reject: %v", err)
				}
			},
		},
		{
			name:    "blocked by recipient",
			email:   "bob@x.com",
			wantErr: ErrRecipientBlocked,
			kind:    app_errors.ErrConflict,
			setup: func(t *testing.T, store *memory.Store, svc *ChatRequestService) {
				req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
				if err := svc.Block(context.Background(), mustUser(t, store, "bob@x.com"), req.UUID); err != nil {
					t.Fatalf("Block: %v", err)
				}
			},
		},
		{
			name:    "chat already established",
			email:   "bob@x.com",
			wantErr: ErrChatAlreadyEstablished,
			kind:    app_errors.ErrConflict,
			setup: func(t *testing.T, store *memory.Store, svc *ChatRequestService) {
				req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
				if _, err := svc.Accept(context.Background(), mustUser(t, store, "bob@x.com"), req.UUID); err != nil {
					t.Fatalf("Accept: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			svc := newTestChatRequestService(store)
			alice := store.AddUser("alice@x.com")
			store.AddUser("bob@x.com")
			tt.setup(t, store, svc)
			before := store.RequestCount()

			_, err := svc.Create(ctx, alice, tt.email)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("err = %v, want kind %v", err, tt.kind)
			}
			if after := store.RequestCount(); after != before {
				t.Errorf("request count changed from %d to %d", before, after)
			}
		})
	}
}

func TestCreateChatRequestLosesRaceToUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := store.AddUser("alice@x.com")
	store.AddUser("bob@x.com")

	// A concurrent request slipped in between the duplicate check and the
	// insert: it is in the table but invisible to the lookup the service does.
	racer := chatrequest.New(alice.ID, "bob@x.com")
	svc := NewChatRequestService(&raceStore{Store: store, racer: racer}, NewChatService(store), nil)

	_, err := svc.Create(ctx, alice, "bob@x.com")
	if !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyRequested)
	}
	if got := store.EventTypes(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

// raceStore inserts racer right before the service opens its transaction.
type raceStore struct {
	*memory.Store
	racer chatrequest.ChatRequest
}

func (s *raceStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := s.Store.ChatRequests().Create(ctx, &s.racer); err != nil {
		return err
	}
	return s.Store.Transaction(ctx, fn)
}

func TestAcceptChatRequest(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")

	req, err := svc.Create(ctx, alice, "bob@x.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	c, err := svc.Accept(ctx, bob, req.UUID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if c.SenderID != alice.ID || c.RecipientID != bob.ID {
		t.Errorf("chat = %+v, want alice -> bob", c)
	}
	if c.ChatRequestID != req.ID {
		t.Errorf("chat request id = %d, want %d", c.ChatRequestID, req.ID)
	}
	if store.ChatCount() != 1 {
		t.Errorf("chat count = %d, want 1", store.ChatCount())
	}
	stored, _ := store.Request(req.UUID)
	if stored.Status != chatrequest.StatusAccepted {
		t.Errorf("status = %s, want accepted", stored.Status)
	}
	want := []string{events.EventTypeChatRequestCreated, events.EventTypeChatRequestAccepted}
	if got := store.EventTypes(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestAcceptBySenderIsForbidden(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	store.AddUser("bob@x.com")
	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

	_, err := svc.Accept(ctx, alice, req.UUID)
	if !errors.Is(err, ErrAcceptOwnRequest) || !errors.Is(err, app_errors.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, ErrAcceptOwnRequest)
	}
	assertUntouched(t, store, req)
}

func TestAcceptByStrangerIsForbidden(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	store.AddUser("alice@x.com")
	store.AddUser("bob@x.com")
	carol := store.AddUser("carol@x.com")
	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

	if _, err := svc.Accept(ctx, carol, req.UUID); !errors.Is(err, ErrNotParty) {
		t.Fatalf("err = %v, want %v", err, ErrNotParty)
	}
	assertUntouched(t, store, req)
}

func TestAcceptRollsBackWhenChatCreationFails(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		creator func(store *memory.Store) ChatCreator
		wantErr error
		status  int
	}{
		{
			name:    "chat for pair already exists",
			creator: func(*memory.Store) ChatCreator { return failingChatCreator{err: app_errors.ErrAlreadyExists} },
			wantErr: ErrChatCreationFailed,
			status:  400,
		},
		{
			name:    "store failure",
			creator: func(*memory.Store) ChatCreator { return failingChatCreator{err: errors.New("connection reset")} },
			status:  500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			store.AddUser("alice@x.com")
			bob := store.AddUser("bob@x.com")
			req := mustCreate(t, newTestChatRequestService(store), store, "alice@x.com", "bob@x.com")

			svc := NewChatRequestService(store, tt.creator(store), nil)
			_, err := svc.Accept(ctx, bob, req.UUID)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := HTTPStatus(err); got != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.status)
			}
			assertUntouched(t, store, req)
		})
	}
}

func TestAcceptRollsBackChatWhenStatusUpdateFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")
	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

	store.FailUpdate = errors.New("disk full")
	if _, err := svc.Accept(ctx, bob, req.UUID); err == nil {
		t.Fatal("expected an error")
	}
	assertUntouched(t, store, req)
}

func TestAcceptWhenRecipientAccountIsGone(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")
	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

	store.RemoveUser(bob.ID)
	_, err := svc.Accept(ctx, bob, req.UUID)
	if !errors.Is(err, ErrChatCreationFailed) {
		t.Fatalf("err = %v, want %v", err, ErrChatCreationFailed)
	}
	assertUntouched(t, store, req)
}

func TestRespondRequiresPendingRecipient(t *testing.T) {
	ctx := context.Background()

	type op func(svc *ChatRequestService, actor user.User, id uuid.UUID) error
	reject := func(svc *ChatRequestService, actor user.User, id uuid.UUID) error {
		return svc.Reject(ctx, actor, id)
	}
	block := func(svc *ChatRequestService, actor user.User, id uuid.UUID) error {
		return svc.Block(ctx, actor, id)
	}

	for name, tc := range map[string]struct {
		do     op
		status chatrequest.Status
		event  string
	}{
		"reject": {reject, chatrequest.StatusRejected, events.EventTypeChatRequestRejected},
		"block":  {block, chatrequest.StatusBlocked, events.EventTypeChatRequestBlocked},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			svc := newTestChatRequestService(store)
			alice := store.AddUser("alice@x.com")
			bob := store.AddUser("bob@x.com")
			carol := store.AddUser("carol@x.com")
			req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

			if err := tc.do(svc, alice, req.UUID); !errors.Is(err, ErrNotRecipient) {
				t.Errorf("sender: err = %v, want %v", err, ErrNotRecipient)
			}
			if err := tc.do(svc, carol, req.UUID); !errors.Is(err, ErrNotParty) {
				t.Errorf("stranger: err = %v, want %v", err, ErrNotParty)
			}
			assertUntouched(t, store, req)

			if err := tc.do(svc, bob, req.UUID); err != nil {
				t.Fatalf("recipient: %v", err)
			}
			stored, _ := store.Request(req.UUID)
			if stored.Status != tc.status {
				t.Errorf("status = %s, want %s", stored.Status, tc.status)
			}
			want := []string{events.EventTypeChatRequestCreated, tc.event}
			if got := store.EventTypes(); !reflect.DeepEqual(got, want) {
				t.Errorf("events = %v, want %v", got, want)
			}

			err := tc.do(svc, bob, req.UUID)
			if !errors.Is(err, ErrRequestResolved) || HTTPStatus(err) != 409 {
				t.Errorf("second response: err = %v, want %v", err, ErrRequestResolved)
			}
			if _, err := svc.Accept(ctx, bob, req.UUID); !errors.Is(err, ErrRequestResolved) {
				t.Errorf("accept after %s: err = %v", name, err)
			}
		})
	}
}

func TestDeleteChatRequest(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")
	carol := store.AddUser("carol@x.com")

	first := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
	if err := svc.Delete(ctx, carol, first.UUID); !errors.Is(err, ErrNotParty) {
		t.Fatalf("stranger: err = %v, want %v", err, ErrNotParty)
	}
	if err := svc.Delete(ctx, alice, first.UUID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if store.RequestCount() != 0 {
		t.Fatalf("request count = %d, want 0", store.RequestCount())
	}

	// Every operation on a deleted identifier reports not found.
	notFound := map[string]error{
		"delete": svc.Delete(ctx, alice, first.UUID),
		"reject": svc.Reject(ctx, bob, first.UUID),
		"block":  svc.Block(ctx, bob, first.UUID),
	}
	_, notFound["accept"] = svc.Accept(ctx, bob, first.UUID)
	for name, err := range notFound {
		if !errors.Is(err, ErrChatRequestNotFound) || HTTPStatus(err) != 404 {
			t.Errorf("%s after delete: err = %v", name, err)
		}
	}

	// The recipient may delete too, and the pair is free again afterwards.
	second := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
	if err := svc.Delete(ctx, bob, second.UUID); err != nil {
		t.Fatalf("recipient delete: %v", err)
	}
	mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
}

func TestBlockedSenderCannotDeleteTheBlock(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")

	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
	if err := svc.Block(ctx, bob, req.UUID); err != nil {
		t.Fatalf("Block: %v", err)
	}

	err := svc.Delete(ctx, alice, req.UUID)
	if !errors.Is(err, ErrDeleteBlocked) || HTTPStatus(err) != 403 {
		t.Fatalf("sender delete of blocked request: err = %v", err)
	}
	if _, ok := store.Request(req.UUID); !ok {
		t.Fatal("blocked request was removed")
	}
	if _, err := svc.Create(ctx, alice, "bob@x.com"); !errors.Is(err, ErrRecipientBlocked) {
		t.Errorf("retry after failed delete: err = %v, want %v", err, ErrRecipientBlocked)
	}

	// The recipient can lift the block by deleting the request.
	if err := svc.Delete(ctx, bob, req.UUID); err != nil {
		t.Fatalf("recipient delete: %v", err)
	}
	if _, err := svc.Create(ctx, alice, "bob@x.com"); err != nil {
		t.Errorf("create after block lifted: %v", err)
	}
}

func TestDeleteEventNamesBothParties(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")
	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

	if err := svc.Delete(ctx, alice, req.UUID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	payload := lastPayload(t, store)
	if payload.SenderID != alice.ID || payload.RecipientID != bob.ID || payload.ActorID != alice.ID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestMutationRollsBackWhenOutboxWriteFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")
	store.AddUser("carol@x.com")
	req := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")

	store.FailEvents = errors.New("outbox unavailable")
	if _, err := svc.Accept(ctx, bob, req.UUID); err == nil {
		t.Error("accept: expected an error")
	}
	if err := svc.Reject(ctx, bob, req.UUID); err == nil {
		t.Error("reject: expected an error")
	}
	if err := svc.Delete(ctx, alice, req.UUID); err == nil {
		t.Error("delete: expected an error")
	}
	if _, err := svc.Create(ctx, alice, "carol@x.com"); err == nil {
		t.Error("create: expected an error")
	}
	assertUntouched(t, store, req)
}

func TestListChatRequests(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")
	store.AddUser("carol@x.com")

	toBob := mustCreate(t, svc, store, "alice@x.com", "bob@x.com")
	toCarol := mustCreate(t, svc, store, "alice@x.com", "carol@x.com")
	fromCarol := mustCreate(t, svc, store, "carol@x.com", "alice@x.com")

	list, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Sent) != 2 || list.Sent[0].Request.UUID != toCarol.UUID || list.Sent[1].Request.UUID != toBob.UUID {
		t.Errorf("sent = %+v", list.Sent)
	}
	if len(list.Received) != 1 || list.Received[0].Request.UUID != fromCarol.UUID {
		t.Fatalf("received = %+v", list.Received)
	}
	if list.Received[0].SenderEmail != "carol@x.com" {
		t.Errorf("sender email = %q", list.Received[0].SenderEmail)
	}

	empty, err := svc.List(ctx, bob)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(empty.Sent) != 0 || len(empty.Received) != 1 {
		t.Errorf("bob list = %+v", empty)
	}
}

func TestScenarioAliceAndBob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestChatRequestService(store)
	chats := NewChatService(store)
	alice := store.AddUser("alice@x.com")
	bob := store.AddUser("bob@x.com")

	req, err := svc.Create(ctx, alice, "bob@x.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, alice, "bob@x.com"); !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("second create: err = %v", err)
	}
	if _, err := svc.Accept(ctx, bob, req.UUID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	views, err := chats.List(ctx, bob)
	if err != nil {
		t.Fatalf("chat List: %v", err)
	}
	if len(views) != 1 || views[0].CounterpartEmail != "alice@x.com" {
		t.Fatalf("bob's chats = %+v", views)
	}

	// The existing-chat check is one directional: bob may still ask alice.
	if _, err := svc.Create(ctx, bob, "alice@x.com"); err != nil {
		t.Errorf("reverse create: %v", err)
	}
}

func mustUser(t *testing.T, store *memory.Store, email string) user.User {
	t.Helper()
	u, err := store.Users().GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("user %s: %v", email, err)
	}
	return u
}

func mustCreate(t *testing.T, svc *ChatRequestService, store *memory.Store, from, to string) chatrequest.ChatRequest {
	t.Helper()
	req, err := svc.Create(context.Background(), mustUser(t, store, from), to)
	if err != nil {
		t.Fatalf("Create %s -> %s: %v", from, to, err)
	}
	return req
}

// assertUntouched checks req is still pending, has no chat and produced no
// event beyond its creation.
func assertUntouched(t *testing.T, store *memory.Store, req chatrequest.ChatRequest) {
	t.Helper()
	stored, ok := store.Request(req.UUID)
	if !ok {
		t.Fatal("request disappeared")
	}
	if stored.Status != chatrequest.StatusPending {
		t.Errorf("status = %s, want pending", stored.Status)
	}
	if store.ChatCount() != 0 {
		t.Errorf("chat count = %d, want 0", store.ChatCount())
	}
	if got := store.EventTypes(); !reflect.DeepEqual(got, []string{events.EventTypeChatRequestCreated}) {
		t.Errorf("events = %v", got)
	}
}

func lastPayload(t *testing.T, store *memory.Store) events.ChatRequestPayload {
	t.Helper()
	outbox := store.OutboxEvents()
	if len(outbox) == 0 {
		t.Fatal("no events recorded")
	}
	var p events.ChatRequestPayload
	if err := json.Unmarshal([]byte(outbox[len(outbox)-1].Payload), &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return p
}
