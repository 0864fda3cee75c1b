package repository

import (
	"context"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *GormStore) ChatRequests() ChatRequestRepository {
	return NewChatRequestRepository(s.db)
}

func (s *GormStore) Chats() ChatRepository {
	return NewChatRepository(s.db)
}

func (s *GormStore) Events() EventRepository {
	return NewEventRepository(s.db)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

var _ Store = (*GormStore)(nil)
