package gormstore

import (
	"context"
	"errors"
	"fmt"

	"fym-server/internal/models"
	"fym-server/internal/repository"

	"gorm.io/gorm"
)

// TrainStore implements repository.TrainStore on GORM
type TrainStore struct {
	db *gorm.DB
}

var _ repository.TrainStore = (*TrainStore)(nil)

// NewTrainStore creates a new GORM train store
func NewTrainStore(db *gorm.DB) *TrainStore {
	return &TrainStore{db: db}
}

// Create inserts a train and assigns its ID
func (s *TrainStore) Create(ctx context.Context, train *models.Train) error {
	if err := s.db.WithContext(ctx).Create(train).Error; err != nil {
		return fmt.Errorf("failed to create train: %w", err)
	}
	return nil
}

// GetByID retrieves a train by ID
func (s *TrainStore) GetByID(ctx context.Context, id int64) (*models.Train, error) {
	var train models.Train
	if err := s.db.WithContext(ctx).First(&train, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrTrainNotFound
		}
		return nil, fmt.Errorf("failed to get train: %w", err)
	}
	return &train, nil
}

// ListAvailable retrieves available trains matching the filter
func (s *TrainStore) ListAvailable(ctx context.Context, filter models.TrainFilter) ([]*models.Train, error) {
	q := s.db.WithContext(ctx).Where("state = ?", models.TrainAvailable)

	if filter.Player != "" {
		q = q.Where("(from_player = ? OR to_player = ?)", filter.Player, filter.Player)
	}
	if filter.FilenameContains != "" {
		q = q.Where(s.containsClause(), filter.FilenameContains)
	}
	if filter.UploadedBefore != nil {
		q = q.Where("upload_date <= ?", models.Date(*filter.UploadedBefore))
	}

	var trains []*models.Train
	if err := q.Order("id ASC").Find(&trains).Error; err != nil {
		return nil, fmt.Errorf("failed to list trains: %w", err)
	}
	return trains, nil
}

// containsClause is a case-sensitive substring test. LIKE folds case on
// both SQLite and MySQL's default collations.
func (s *TrainStore) containsClause() string {
	if s.db.Dialector.Name() == "mysql" {
		return "INSTR(BINARY filename, ?) > 0"
	}
	return "instr(filename, ?) > 0"
}

// Claim moves an available train to downloaded
func (s *TrainStore) Claim(ctx context.Context, id int64, player string) (*models.Train, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Train{}).
		Where("id = ? AND state = ?", id, models.TrainAvailable).
		Updates(map[string]any{
			"state":         models.TrainDownloaded,
			"downloaded_by": player,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim train: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Train{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check train: %w", err)
		}
		if count == 0 {
			return nil, models.ErrTrainNotFound
		}
		return nil, models.ErrTrainUnavailable
	}

	return s.GetByID(ctx, id)
}
