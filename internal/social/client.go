// Package social reads engagement and follower data from the social platform.
package social

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wnt/memescore/internal/metrics"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/utils"
)

const (
	profilePath = "/public/v1/user"
	postsPath   = "/public/v1/posts/user"
)

// Identity is what the platform needs to address one creator's feed
type Identity struct {
	AccessToken string
	UserName    string
	UserNameTag string
}

// IdentityOf builds the platform identity of a stored creator
func IdentityOf(c models.Creator) Identity {
	return Identity{
		AccessToken: c.AccessToken,
		UserName:    c.UserName,
		UserNameTag: c.UserNameTag,
	}
}

// Post is one feed item. Missing counters decode as zero.
type Post struct {
	CreatedAt   time.Time `json:"createdAt"`
	LikeCount   int64     `json:"likeCount"`
	ReplyCount  int64     `json:"replyCount"`
	RepostCount int64     `json:"repostCount"`
	QuoteCount  int64     `json:"quoteCount"`
	ViewCount   int64     `json:"viewCount"`
}

// FeedPage is one page of a creator's feed, newest first
type FeedPage struct {
	Contents   []Post `json:"contents"`
	NextCursor string `json:"nextCursor"`
}

// Profile is the subset of the platform profile the service uses
type Profile struct {
	Followers    int64  `json:"followers"`
	TokenAddress string `json:"tokenAddress"`
}

// Client is the social platform surface consumed by the aggregator
type Client interface {
	FeedPage(ctx context.Context, id Identity, size int, cursor string) (FeedPage, error)
	Profile(ctx context.Context, id Identity) (Profile, error)
}

// HTTPConfig configures the platform HTTP client
type HTTPConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
}

// HTTPClient talks to the platform's public API
type HTTPClient struct {
	http *utils.HTTPClient
}

// NewHTTPClient creates a rate-limited platform client with a per-request timeout
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}

	return &HTTPClient{
		http: utils.NewHTTPClient(
			utils.WithBaseURL(cfg.BaseURL),
			utils.WithTimeout(cfg.Timeout),
			utils.WithRateLimit(cfg.RateLimit, burst),
			utils.WithRetries(2, 500*time.Millisecond),
		),
	}
}

// FeedPage fetches one page of the creator's posts
func (c *HTTPClient) FeedPage(ctx context.Context, id Identity, size int, cursor string) (FeedPage, error) {
	query := url.Values{
		"userName":    {id.UserName},
		"userNameTag": {id.UserNameTag},
		"size":        {strconv.Itoa(size)},
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page FeedPage
	if err := c.getJSON(ctx, postsPath, query, id.AccessToken, &page); err != nil {
		return FeedPage{}, fmt.Errorf("failed to fetch feed page for %s#%s: %w", id.UserName, id.UserNameTag, err)
	}
	return page, nil
}

// Profile fetches the authenticated creator's profile
func (c *HTTPClient) Profile(ctx context.Context, id Identity) (Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, profilePath, nil, id.AccessToken, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to fetch profile for %s#%s: %w", id.UserName, id.UserNameTag, err)
	}
	return profile, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, token string, target interface{}) error {
	headers := map[string]string{"Authorization": "Bearer " + token}

	resp, err := c.http.Get(ctx, path, query, headers)
	if err != nil {
		metrics.RecordExternalRequest("social", "failed")
		return err
	}
	if err := resp.DecodeJSON(target); err != nil {
		metrics.RecordExternalRequest("social", "bad_response")
		return fmt.Errorf("failed to decode response: %w", err)
	}

	metrics.RecordExternalRequest("social", "success")
	return nil
}
