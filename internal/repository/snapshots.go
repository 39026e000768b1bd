package repository

import (
	"context"
	"errors"

	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/models"
	"gorm.io/gorm"
)

// Snapshots reads persisted score snapshots
type Snapshots struct {
	db *gorm.DB
}

// NewSnapshots creates a snapshot repository
func NewSnapshots(db *gorm.DB) *Snapshots {
	return &Snapshots{db: db}
}

// History returns a creator's snapshots, most recent first
func (r *Snapshots) History(ctx context.Context, creatorID uint, limit int) ([]models.ScoreSnapshot, error) {
	var rows []models.ScoreSnapshot
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal("repository.History", err)
	}
	return rows, nil
}

// Latest returns the newest snapshot of a creator; ok is false if none exists
func (r *Snapshots) Latest(ctx context.Context, creatorID uint) (snap models.ScoreSnapshot, ok bool, err error) {
	err = r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("id DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ScoreSnapshot{}, false, nil
	}
	if err != nil {
		return models.ScoreSnapshot{}, false, apperr.Internal("repository.LatestSnapshot", err)
	}
	return snap, true, nil
}

// LatestByCreators returns the newest snapshot of each given creator that has one.
// Snapshot ids grow with insertion, so the highest id is the latest row.
func (r *Snapshots) LatestByCreators(ctx context.Context, creatorIDs []uint) (map[uint]models.ScoreSnapshot, error) {
	out := make(map[uint]models.ScoreSnapshot, len(creatorIDs))
	if len(creatorIDs) == 0 {
		return out, nil
	}

	latestIDs := r.db.Model(&models.ScoreSnapshot{}).
		Select("MAX(id)").
		Where("creator_id IN ?", creatorIDs).
		Group("creator_id")

	var rows []models.ScoreSnapshot
	if err := r.db.WithContext(ctx).Where("id IN (?)", latestIDs).Find(&rows).Error; err != nil {
		return nil, apperr.Internal("repository.LatestSnapshots", err)
	}
	for _, row := range rows {
		out[row.CreatorID] = row
	}
	return out, nil
}
