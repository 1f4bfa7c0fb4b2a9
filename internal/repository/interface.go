package repository

import (
	"context"

	"fym-server/internal/models"
)

// PlayerStore persists player identities. Username must be unique.
type PlayerStore interface {
	// Create inserts a player, returning models.ErrUsernameTaken on a
	// uniqueness violation
	Create(ctx context.Context, player *models.Player) error
	GetByUsername(ctx context.Context, username string) (*models.Player, error)
	UpdateEmail(ctx context.Context, username, email string) error
}

// TrainStore persists mailbox items
type TrainStore interface {
	// Create inserts a train and assigns its ID
	Create(ctx context.Context, train *models.Train) error
	GetByID(ctx context.Context, id int64) (*models.Train, error)
	// ListAvailable returns available trains matching filter in ascending ID order
	ListAvailable(ctx context.Context, filter models.TrainFilter) ([]*models.Train, error)
	// Claim moves an available train to downloaded in a single conditional
	// update. It returns models.ErrTrainNotFound when no such train exists
	// and models.ErrTrainUnavailable when it is not available.
	Claim(ctx context.Context, id int64, player string) (*models.Train, error)
}
