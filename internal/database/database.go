package database

import (
	"fmt"
	"time"

	"github.com/wnt/memescore/internal/config"
	"github.com/wnt/memescore/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by the Postgres connection and test databases
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Connect opens the Postgres database described by cfg and migrates the schema
func Connect(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	gormCfg := GormConfig()
	gormCfg.PrepareStmt = true

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the creators, tips and scores tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Creator{},
		&models.Tip{},
		&models.ScoreSnapshot{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		// Case-insensitive handle search and ranking tie-breaks
		db.Exec("CREATE INDEX IF NOT EXISTS idx_creators_user_name_lower ON creators(lower(user_name))")
		db.Exec("CREATE INDEX IF NOT EXISTS idx_creators_display_name_lower ON creators(lower(display_name))")
		db.Exec("CREATE INDEX IF NOT EXISTS idx_creators_score_id ON creators(meme_score DESC, id ASC)")
		db.Exec("CREATE INDEX IF NOT EXISTS idx_tips_from_created ON tips(from_creator_id, created_at) WHERE from_creator_id IS NOT NULL")
	}

	return nil
}
