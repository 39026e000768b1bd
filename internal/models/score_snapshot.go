package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScoreSnapshot is one persisted MemeScore computation. Append-only.
type ScoreSnapshot struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatorID uint `gorm:"not null;index:idx_snapshots_creator_created,priority:1" json:"creator_id"`

	FormulaVersion string         `gorm:"size:20;not null" json:"formula_version"`
	Weights        datatypes.JSON `json:"weights"`

	EngagementScore float64 `gorm:"not null" json:"engagement_score"`
	ViewScore       float64 `gorm:"not null" json:"view_score"`
	FollowScore     float64 `gorm:"not null" json:"follow_score"`
	TipScore        float64 `gorm:"not null" json:"tip_score"`
	MemeScore       float64 `gorm:"not null" json:"meme_score"`

	// Raw counts the scores were computed from
	Likes     int64  `gorm:"not null;default:0" json:"likes"`
	Replies   int64  `gorm:"not null;default:0" json:"replies"`
	Reposts   int64  `gorm:"not null;default:0" json:"reposts"`
	Quotes    int64  `gorm:"not null;default:0" json:"quotes"`
	Views     int64  `gorm:"not null;default:0" json:"views"`
	Followers int64  `gorm:"not null;default:0" json:"followers"`
	TipCount  int64  `gorm:"not null;default:0" json:"tip_count"`
	TipAmount string `gorm:"size:78;not null;default:'0'" json:"tip_amount"`

	CreatedAt time.Time `gorm:"not null;index:idx_snapshots_creator_created,priority:2" json:"created_at"`
}

func (ScoreSnapshot) TableName() string {
	return "scores"
}
