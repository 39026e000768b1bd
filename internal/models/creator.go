package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Creator is a social-platform account that can receive tips and is ranked by MemeScore
type Creator struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	MemexUserID int64  `gorm:"index" json:"memex_user_id"`
	AccessToken string `gorm:"type:text" json:"-"`
	DisplayName string `gorm:"size:255" json:"display_name"`
	UserName    string `gorm:"size:100;not null;uniqueIndex:uk_creators_handle" json:"user_name"`
	UserNameTag string `gorm:"size:50;not null;uniqueIndex:uk_creators_handle" json:"user_name_tag"`
	// Stored lower-cased, so the unique index is case-insensitive.
	WalletAddress string `gorm:"size:42;not null;uniqueIndex" json:"wallet_address"`
	// Mirrors the composite score of the latest ScoreSnapshot. Written only by the orchestrator.
	MemeScore float64   `gorm:"not null;default:0;index" json:"meme_score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Creator) TableName() string {
	return "creators"
}

// BeforeSave normalizes the wallet address
func (c *Creator) BeforeSave(tx *gorm.DB) error {
	c.WalletAddress = strings.ToLower(strings.TrimSpace(c.WalletAddress))
	return nil
}
