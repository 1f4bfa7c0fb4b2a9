package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fym-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const trainColumns = `id, filename, from_player, to_player, downloaded_by, upload_date, state`

// TrainRepository handles database operations for trains
type TrainRepository struct {
	db *pgxpool.Pool
}

var _ TrainStore = (*TrainRepository)(nil)

// NewTrainRepository creates a new train repository
func NewTrainRepository(db *pgxpool.Pool) *TrainRepository {
	return &TrainRepository{db: db}
}

// Create creates a new train
func (r *TrainRepository) Create(ctx context.Context, train *models.Train) error {
	query := `
		INSERT INTO trains (filename, from_player, to_player, downloaded_by, upload_date, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		train.Filename, train.FromPlayer, train.ToPlayer, train.DownloadedBy, train.UploadDate, train.State,
	).Scan(&train.ID)
	if err != nil {
		return fmt.Errorf("failed to create train: %w", err)
	}
	return nil
}

// GetByID retrieves a train by ID
func (r *TrainRepository) GetByID(ctx context.Context, id int64) (*models.Train, error) {
	query := `SELECT ` + trainColumns + ` FROM trains WHERE id = $1`
	train, err := scanTrain(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTrainNotFound
		}
		return nil, fmt.Errorf("failed to get train: %w", err)
	}
	return train, nil
}

// ListAvailable retrieves available trains matching the filter
func (r *TrainRepository) ListAvailable(ctx context.Context, filter models.TrainFilter) ([]*models.Train, error) {
	where := []string{"state = $1"}
	args := []any{models.TrainAvailable}

	if filter.Player != "" {
		args = append(args, filter.Player)
		n := len(args)
		where = append(where, fmt.Sprintf("(from_player = $%d OR to_player = $%d)", n, n))
	}
	if filter.FilenameContains != "" {
		// strpos is a literal, case-sensitive containment test
		args = append(args, filter.FilenameContains)
		where = append(where, fmt.Sprintf("strpos(filename, $%d) > 0", len(args)))
	}
	if filter.UploadedBefore != nil {
		args = append(args, *filter.UploadedBefore)
		where = append(where, fmt.Sprintf("upload_date <= $%d", len(args)))
	}

	query := `SELECT ` + trainColumns + ` FROM trains WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trains: %w", err)
	}
	defer rows.Close()

	var trains []*models.Train
	for rows.Next() {
		train, err := scanTrain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan train: %w", err)
		}
		trains = append(trains, train)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trains: %w", err)
	}

	return trains, nil
}

// Claim marks an available train as downloaded by player
func (r *TrainRepository) Claim(ctx context.Context, id int64, player string) (*models.Train, error) {
	query := `
		UPDATE trains SET state = $1, downloaded_by = $2
		WHERE id = $3 AND state = $4
		RETURNING ` + trainColumns
	train, err := scanTrain(r.db.QueryRow(ctx, query, models.TrainDownloaded, player, id, models.TrainAvailable))
	if err == nil {
		return train, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim train: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM trains WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check train existence: %w", err)
	}
	if !exists {
		return nil, models.ErrTrainNotFound
	}
	return nil, models.ErrTrainUnavailable
}

func scanTrain(row pgx.Row) (*models.Train, error) {
	var train models.Train
	err := row.Scan(
		&train.ID, &train.Filename, &train.FromPlayer, &train.ToPlayer,
		&train.DownloadedBy, &train.UploadDate, &train.State,
	)
	if err != nil {
		return nil, err
	}
	return &train, nil
}
