package services

import (
	"testing"

	"conference-portal/models"
	"conference-portal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, utils.Migrate(db))
	return db
}

func seedRegistration(t *testing.T, db *gorm.DB, reg models.Registration) models.Registration {
	t.Helper()
	require.NoError(t, db.Create(&reg).Error)
	return reg
}

type staticSettings struct{ s models.Settings }

func (p staticSettings) Current() models.Settings { return p.s }
