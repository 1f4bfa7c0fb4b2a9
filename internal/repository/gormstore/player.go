package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fym-server/internal/models"
	"fym-server/internal/repository"

	"gorm.io/gorm"
)

// PlayerStore implements repository.PlayerStore on GORM
type PlayerStore struct {
	db *gorm.DB
}

var _ repository.PlayerStore = (*PlayerStore)(nil)

// NewPlayerStore creates a new GORM player store
func NewPlayerStore(db *gorm.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

// Create inserts a new player
func (s *PlayerStore) Create(ctx context.Context, player *models.Player) error {
	if err := s.db.WithContext(ctx).Create(player).Error; err != nil {
		if isDuplicateKey(err) {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// GetByUsername retrieves a player by username
func (s *PlayerStore) GetByUsername(ctx context.Context, username string) (*models.Player, error) {
	var player models.Player
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &player, nil
}

// UpdateEmail sets the player's email address
func (s *PlayerStore) UpdateEmail(ctx context.Context, username, email string) error {
	res := s.db.WithContext(ctx).Model(&models.Player{}).
		Where("username = ?", username).
		Update("email", email)
	if res.Error != nil {
		return fmt.Errorf("failed to update player email: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}

// isDuplicateKey recognises unique violations from either dialect, with or
// without GORM's error translation
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Error 1062")
}
