package services

import (
	"context"
	"encoding/json"
	"time"

	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/event"
	"chat-requests/internal/events"
	"chat-requests/internal/repository"

	"github.com/google/uuid"
)

func createOutboxEvent(ctx context.Context, repo repository.EventRepository, aggregateType, eventType string, aggregateID uuid.UUID, payload interface{}) error {
	if repo == nil {
		return nil
	}
	data := []byte("{}")
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = raw
	}
	return repo.CreateOutboxEvent(ctx, &event.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       string(data),
		CreatedAt:     time.Now(),
		MaxRetries:    defaultMaxRetries,
	})
}

func recordChatRequestEvent(ctx context.Context, repo repository.EventRepository, eventType string, req chatrequest.ChatRequest, recipientID, actorID uuid.UUID, chatID *uuid.UUID) error {
	return createOutboxEvent(ctx, repo, events.AggregateTypeChatRequest, eventType, req.UUID, events.ChatRequestPayload{
		ChatRequestID:  req.UUID,
		SenderID:       req.SenderID,
		RecipientID:    recipientID,
		RecipientEmail: req.RecipientEmail,
		ActorID:        actorID,
		Status:         req.Status.String(),
		ChatID:         chatID,
		OccurredAt:     time.Now(),
	})
}
