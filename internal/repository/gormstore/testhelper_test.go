package gormstore

import (
	"testing"

	"fym-server/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// each new connection would open a fresh empty :memory: database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(db *gorm.DB) {
	_ = Close(db)
}

func seedTrain(t *testing.T, db *gorm.DB, train *models.Train) *models.Train {
	if train.State == 0 {
		train.State = models.TrainAvailable
	}
	require.NoError(t, db.Create(train).Error)
	return train
}
