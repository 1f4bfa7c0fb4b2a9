package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id VARCHAR(36) PRIMARY KEY,
		username VARCHAR(40) NOT NULL UNIQUE,
		email VARCHAR(200) NOT NULL DEFAULT '',
		token VARCHAR(128) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trains (
		id BIGSERIAL PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		from_player VARCHAR(40) NOT NULL,
		to_player VARCHAR(40) NOT NULL,
		downloaded_by VARCHAR(40) NOT NULL DEFAULT '',
		upload_date DATE NOT NULL DEFAULT CURRENT_DATE,
		state SMALLINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS trains_state_idx ON trains (state)`,
	`CREATE INDEX IF NOT EXISTS trains_from_player_idx ON trains (from_player)`,
	`CREATE INDEX IF NOT EXISTS trains_to_player_idx ON trains (to_player)`,
}

// Migrate creates the tables if they do not exist
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
