package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/memescore/internal/config"
	"github.com/wnt/memescore/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConnectRequiresDatabaseName(t *testing.T) {
	db, err := Connect(config.Config{DBHost: "localhost", DBPort: "5432"})
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestConnectWithInvalidCredentials(t *testing.T) {
	if os.Getenv("RUN_DB_TESTS") != "true" {
		t.Skip("Skipping database connection test. Set RUN_DB_TESTS=true to enable.")
	}

	db, err := Connect(config.Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "nonexistentuser",
		DBPassword: "wrongpassword",
		DBName:     "nonexistentdb",
		DBSSLMode:  "disable",
	})
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestConnectSuccessful(t *testing.T) {
	if os.Getenv("RUN_DB_TESTS") != "true" {
		t.Skip("Skipping database connection test. Set RUN_DB_TESTS=true to enable.")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := Connect(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
}

func TestMigrateCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:TestMigrateCreatesTables?mode=memory&cache=shared"), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))

	for _, table := range []string{"creators", "tips", "scores"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.Tip{}, "uk_tips_tx_hash"))

	// Migrations are repeatable
	require.NoError(t, Migrate(db))
}
