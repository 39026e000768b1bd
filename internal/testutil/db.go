package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wnt/memescore/internal/database"
	"github.com/wnt/memescore/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB creates a migrated in-memory SQLite database that is closed when the test finishes
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CreateCreator inserts a creator with a unique handle and wallet derived from id
func CreateCreator(t *testing.T, db *gorm.DB, id uint, userName string) models.Creator {
	t.Helper()

	c := models.Creator{
		ID:            id,
		MemexUserID:   int64(id) + 1000,
		AccessToken:   fmt.Sprintf("token-%d", id),
		DisplayName:   strings.ToUpper(userName[:1]) + userName[1:],
		UserName:      userName,
		UserNameTag:   "0001",
		WalletAddress: fmt.Sprintf("0x%040X", id),
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("failed to create creator %d: %v", id, err)
	}
	return c
}

// FixedClock returns a clock function pinned to ts
func FixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
