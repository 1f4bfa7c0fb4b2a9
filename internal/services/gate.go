package services

import (
	"context"
	"errors"

	"fym-server/internal/models"
	"fym-server/internal/repository"
)

// Credentials identify a player on a protected request
type Credentials struct {
	Player string
	Token  string
}

// Gate authenticates protected operations
type Gate struct {
	players repository.PlayerStore
}

// NewGate creates a new authentication gate
func NewGate(players repository.PlayerStore) *Gate {
	return &Gate{players: players}
}

// Authenticate resolves creds to a player
func (g *Gate) Authenticate(ctx context.Context, creds Credentials) (*models.Player, error) {
	if creds.Player == "" {
		return nil, models.NewBadRequest("player", "no player specified")
	}
	if creds.Token == "" {
		return nil, models.NewBadRequest("token", "no token specified")
	}

	player, err := g.players.GetByUsername(ctx, creds.Player)
	if err != nil {
		if errors.Is(err, models.ErrPlayerNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !player.ValidateToken(creds.Token) {
		return nil, models.ErrInvalidCredentials
	}
	return player, nil
}

// Guard runs op only when creds authenticate
func (g *Gate) Guard(ctx context.Context, creds Credentials, op func(context.Context, *models.Player) error) error {
	player, err := g.Authenticate(ctx, creds)
	if err != nil {
		return err
	}
	return op(ctx, player)
}
