package repository

import (
	"context"
	"errors"
	"fmt"

	"fym-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PlayerRepository handles database operations for players
type PlayerRepository struct {
	db *pgxpool.Pool
}

var _ PlayerStore = (*PlayerRepository)(nil)

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Create creates a new player
func (r *PlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (id, username, email, token, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, player.ID, player.Username, player.Email, player.Token, player.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// GetByUsername retrieves a player by username
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*models.Player, error) {
	query := `
		SELECT id, username, email, token, created_at
		FROM players
		WHERE username = $1
	`
	var player models.Player
	err := r.db.QueryRow(ctx, query, username).Scan(
		&player.ID, &player.Username, &player.Email, &player.Token, &player.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player by username: %w", err)
	}
	return &player, nil
}

// UpdateEmail sets the email address for a player
func (r *PlayerRepository) UpdateEmail(ctx context.Context, username, email string) error {
	query := `UPDATE players SET email = $1 WHERE username = $2`
	result, err := r.db.Exec(ctx, query, email, username)
	if err != nil {
		return fmt.Errorf("failed to update player email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}
