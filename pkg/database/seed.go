package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chat-requests/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type SeedConfig struct {
	Emails   []string
	Password string
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Emails:   []string{"alice@example.com", "bob@example.com", "carol@example.com"},
		Password: "password123",
	}
}

// SeedUsers creates one user per email, skipping emails that already exist.
// It returns the users it created.
func SeedUsers(ctx context.Context, db *gorm.DB, cfg SeedConfig) ([]user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created []user.User
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, email := range cfg.Emails {
			email = user.NormalizeEmail(email)

			var existing user.User
			err := tx.Where("email = ?", email).First(&existing).Error
			if err == nil {
				log.Printf("User %s already exists, skipping", email)
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			now := time.Now()
			u := user.User{
				ID:           uuid.New(),
				Email:        email,
				PasswordHash: string(hash),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
			created = append(created, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
