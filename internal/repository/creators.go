// Package repository holds the read paths over creators and score snapshots.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/models"
	"gorm.io/gorm"
)

// Creators reads creator rows
type Creators struct {
	db *gorm.DB
}

// NewCreators creates a creator repository
func NewCreators(db *gorm.DB) *Creators {
	return &Creators{db: db}
}

// Get loads a creator by id
func (r *Creators) Get(ctx context.Context, id uint) (models.Creator, error) {
	var c models.Creator
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Creator{}, apperr.NotFound("repository.GetCreator", "creator not found")
	}
	if err != nil {
		return models.Creator{}, apperr.Internal("repository.GetCreator", err)
	}
	return c, nil
}

// GetMany loads the creators with the given ids, in id order
func (r *Creators) GetMany(ctx context.Context, ids []uint) ([]models.Creator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var creators []models.Creator
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&creators).Error; err != nil {
		return nil, apperr.Internal("repository.GetCreators", err)
	}
	return creators, nil
}

// ListIDs returns every creator id in ascending order
func (r *Creators) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Creator{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Internal("repository.ListCreatorIDs", err)
	}
	return ids, nil
}

// ByWallet finds a creator by wallet address, ignoring case
func (r *Creators) ByWallet(ctx context.Context, address string) (models.Creator, error) {
	var c models.Creator
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", strings.ToLower(strings.TrimSpace(address))).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Creator{}, apperr.NotFound("repository.CreatorByWallet", "creator not found for wallet")
	}
	if err != nil {
		return models.Creator{}, apperr.Internal("repository.CreatorByWallet", err)
	}
	return c, nil
}

// Ranking lists creators by cached score descending, ties by id, optionally
// filtered by a case-insensitive substring of user name or display name
func (r *Creators) Ranking(ctx context.Context, search string, limit int) ([]models.Creator, error) {
	q := r.db.WithContext(ctx).Model(&models.Creator{})
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		q = q.Where(`LOWER(user_name) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var creators []models.Creator
	if err := q.Order("meme_score DESC").Order("id ASC").Limit(limit).Find(&creators).Error; err != nil {
		return nil, apperr.Internal("repository.Ranking", err)
	}
	return creators, nil
}

// Search is Ranking with a required query
func (r *Creators) Search(ctx context.Context, query string, limit int) ([]models.Creator, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("repository.Search", "search query is required")
	}
	return r.Ranking(ctx, query, limit)
}

// Rank returns the 1-based position of a creator in the global ranking
func (r *Creators) Rank(ctx context.Context, c models.Creator) (int64, error) {
	var ahead int64
	err := r.db.WithContext(ctx).Model(&models.Creator{}).
		Where("meme_score > ? OR (meme_score = ? AND id < ?)", c.MemeScore, c.MemeScore, c.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, apperr.Internal("repository.Rank", err)
	}
	return ahead + 1, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
