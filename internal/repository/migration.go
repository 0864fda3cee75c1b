package repository

import (
	"fmt"

	"chat-requests/internal/domain/chat"
	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/event"
	"chat-requests/internal/domain/user"

	"gorm.io/gorm"
)

// Tables lists every model owned by the service, in creation order.
func Tables() []interface{} {
	return []interface{}{
		&user.User{},
		&chatrequest.ChatRequest{},
		&chat.Chat{},
		&event.OutboxEvent{},
	}
}

// InitSchema creates or updates the tables and the constraints gorm tags
// cannot express.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Tables()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	constraints := []string{
		`DO $$ BEGIN
			ALTER TABLE chat_requests
				ADD CONSTRAINT chk_chat_requests_status CHECK (status IN (0, 1, 2, 3));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE chat_requests
				ADD CONSTRAINT fk_chat_requests_sender FOREIGN KEY (sender_id) REFERENCES users(id) ON DELETE CASCADE;
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending
			ON outbox_events (created_at) WHERE processed_at IS NULL;`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}

// DropSchema drops every table owned by the service.
func DropSchema(db *gorm.DB) error {
	tables := Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return err
		}
	}
	return nil
}
