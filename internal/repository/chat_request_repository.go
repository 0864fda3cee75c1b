package repository

import (
	"context"
	"time"

	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/user"
	app_errors "chat-requests/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresChatRequestRepository struct {
	db *gorm.DB
}

func NewChatRequestRepository(db *gorm.DB) ChatRequestRepository {
	return &PostgresChatRequestRepository{db: db}
}

func (r *PostgresChatRequestRepository) Create(ctx context.Context, req *chatrequest.ChatRequest) error {
	return translate(r.db.WithContext(ctx).Create(req).Error)
}

func (r *PostgresChatRequestRepository) GetByUUID(ctx context.Context, id uuid.UUID) (chatrequest.ChatRequest, error) {
	var req chatrequest.ChatRequest
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&req).Error; err != nil {
		return chatrequest.ChatRequest{}, translate(err)
	}
	return req, nil
}

func (r *PostgresChatRequestRepository) GetSentTo(ctx context.Context, senderID uuid.UUID, recipientEmail string) (chatrequest.ChatRequest, error) {
	var req chatrequest.ChatRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_email = ?", senderID, user.NormalizeEmail(recipientEmail)).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return chatrequest.ChatRequest{}, translate(err)
	}
	return req, nil
}

func (r *PostgresChatRequestRepository) ListSent(ctx context.Context, senderID uuid.UUID) ([]chatrequest.ChatRequest, error) {
	var items []chatrequest.ChatRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresChatRequestRepository) ListReceived(ctx context.Context, recipientEmail string) ([]chatrequest.ChatRequest, error) {
	var items []chatrequest.ChatRequest
	err := r.db.WithContext(ctx).
		Where("recipient_email = ?", user.NormalizeEmail(recipientEmail)).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresChatRequestRepository) UpdateStatus(ctx context.Context, id int64, from, to chatrequest.Status) error {
	res := r.db.WithContext(ctx).
		Model(&chatrequest.ChatRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return app_errors.ErrInvalidTransition
	}
	return nil
}

func (r *PostgresChatRequestRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&chatrequest.ChatRequest{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return app_errors.ErrNotFound
	}
	return nil
}
