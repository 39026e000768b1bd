package social

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/apperr"
)

// DefaultMaxPages bounds pagination of a single window fetch
const DefaultMaxPages = 200

// WindowStats are engagement counts summed over the posts inside a window
type WindowStats struct {
	Likes   int64 `json:"likes"`
	Replies int64 `json:"replies"`
	Reposts int64 `json:"reposts"`
	Quotes  int64 `json:"quotes"`
	Views   int64 `json:"views"`
}

// Aggregator turns paginated feed reads into windowed counts
type Aggregator struct {
	client   Client
	pageSize int
	maxPages int
	logger   zerolog.Logger
}

// NewAggregator creates an aggregator reading pageSize posts per request
func NewAggregator(client Client, pageSize int, logger zerolog.Logger) *Aggregator {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Aggregator{
		client:   client,
		pageSize: pageSize,
		maxPages: DefaultMaxPages,
		logger:   logger.With().Str("component", "social_aggregator").Logger(),
	}
}

// FetchWindowStats sums the counters of every post created at or after
// windowStart. The feed is newest first, so paging stops at the first older
// post or when the feed is exhausted.
func (a *Aggregator) FetchWindowStats(ctx context.Context, id Identity, windowStart time.Time) (WindowStats, error) {
	const op = "social.FetchWindowStats"

	var stats WindowStats
	cursor := ""

	for page := 0; ; page++ {
		if page >= a.maxPages {
			return WindowStats{}, apperr.ExternalFetch(op, fmt.Errorf("feed for %s#%s exceeded %d pages", id.UserName, id.UserNameTag, a.maxPages))
		}

		result, err := a.client.FeedPage(ctx, id, a.pageSize, cursor)
		if err != nil {
			return WindowStats{}, apperr.ExternalFetch(op, err)
		}

		for _, post := range result.Contents {
			if post.CreatedAt.Before(windowStart) {
				return stats, nil
			}
			stats.Likes += post.LikeCount
			stats.Replies += post.ReplyCount
			stats.Reposts += post.RepostCount
			stats.Quotes += post.QuoteCount
			stats.Views += post.ViewCount
		}

		if result.NextCursor == "" || len(result.Contents) == 0 {
			return stats, nil
		}
		if result.NextCursor == cursor {
			a.logger.Warn().
				Str("user_name", id.UserName).
				Str("cursor", cursor).
				Msg("Feed returned the same cursor twice, stopping pagination")
			return stats, nil
		}
		cursor = result.NextCursor
	}
}

// FetchFollowerCount reads the creator's current follower count
func (a *Aggregator) FetchFollowerCount(ctx context.Context, id Identity) (int64, error) {
	profile, err := a.client.Profile(ctx, id)
	if err != nil {
		return 0, apperr.ExternalFetch("social.FetchFollowerCount", err)
	}
	if profile.Followers < 0 {
		return 0, nil
	}
	return profile.Followers, nil
}

// FetchTokenAddress reads the payment-token address from the creator's profile
func (a *Aggregator) FetchTokenAddress(ctx context.Context, id Identity) (string, error) {
	profile, err := a.client.Profile(ctx, id)
	if err != nil {
		return "", apperr.ExternalFetch("social.FetchTokenAddress", err)
	}
	return profile.TokenAddress, nil
}
