// Package annotation asks the AI backend for a best-effort description of a
// creator's stats. A failed call yields an unavailable annotation, never an error.
package annotation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/metrics"
	"github.com/wnt/memescore/internal/score"
	"github.com/wnt/memescore/internal/units"
	"github.com/wnt/memescore/internal/utils"
)

// ScoreBreakdown is the AI backend's reading of the four score factors
type ScoreBreakdown struct {
	EngagementQuality  float64 `json:"engagement_quality"`
	ViralityPotential  float64 `json:"virality_potential"`
	CommunityStrength  float64 `json:"community_strength"`
	MonetizationHealth float64 `json:"monetization_health"`
}

// Annotation is either available with content, or unavailable with none
type Annotation struct {
	Available bool            `json:"available"`
	Analysis  string          `json:"analysis,omitempty"`
	BotScore  *float64        `json:"bot_score,omitempty"`
	Breakdown *ScoreBreakdown `json:"score_breakdown,omitempty"`
}

// Unavailable is the annotation returned when the backend cannot provide one
func Unavailable() Annotation {
	return Annotation{}
}

// Annotator produces annotations for stats snapshots
type Annotator interface {
	Annotate(ctx context.Context, stats score.Stats) Annotation
}

// Disabled is used when no AI backend is configured
type Disabled struct{}

// Annotate always reports unavailable
func (Disabled) Annotate(context.Context, score.Stats) Annotation {
	return Unavailable()
}

type analyzeRequest struct {
	Likes     int64   `json:"likes"`
	Comments  int64   `json:"comments"`
	Reposts   int64   `json:"reposts"`
	Quotes    int64   `json:"quotes"`
	Views     int64   `json:"views"`
	Followers int64   `json:"followers"`
	TipCount  int64   `json:"tip_count"`
	TipAmount float64 `json:"tip_amount"`
}

type analyzeResponse struct {
	Success   bool            `json:"success"`
	Analysis  string          `json:"analysis"`
	Breakdown *ScoreBreakdown `json:"score_breakdown"`
	BotScore  *float64        `json:"bot_score"`
	Error     string          `json:"error"`
}

// Client calls the AI backend's /analyze endpoint
type Client struct {
	http   *utils.HTTPClient
	logger zerolog.Logger
}

// NewClient creates an AI backend client. The timeout bounds each call.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		http: utils.NewHTTPClient(
			utils.WithBaseURL(baseURL),
			utils.WithTimeout(timeout),
			utils.WithRetries(0, 0),
		),
		logger: logger.With().Str("component", "annotation").Logger(),
	}
}

// Annotate returns the backend's analysis, or Unavailable on any failure
func (c *Client) Annotate(ctx context.Context, stats score.Stats) Annotation {
	annotation, err := c.annotate(ctx, stats)
	if err != nil {
		metrics.RecordExternalRequest("ai", "failed")
		c.logger.Warn().Err(err).Msg("AI annotation unavailable")
		return Unavailable()
	}
	metrics.RecordExternalRequest("ai", "success")
	return annotation
}

func (c *Client) annotate(ctx context.Context, stats score.Stats) (Annotation, error) {
	tipAmount := stats.TipAmountMinorUnits
	if tipAmount == "" {
		tipAmount = "0"
	}
	tipAmountDecimal, err := units.ToDecimal(tipAmount)
	if err != nil {
		return Annotation{}, fmt.Errorf("invalid tip amount: %w", err)
	}

	resp, err := c.http.Post(ctx, "/analyze", analyzeRequest{
		Likes:     stats.Likes,
		Comments:  stats.Replies,
		Reposts:   stats.Reposts,
		Quotes:    stats.Quotes,
		Views:     stats.Views,
		Followers: stats.Followers,
		TipCount:  stats.TipCount,
		TipAmount: tipAmountDecimal,
	}, nil)
	if err != nil {
		return Annotation{}, err
	}

	var body analyzeResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return Annotation{}, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if !body.Success || body.Analysis == "" || body.Breakdown == nil || body.BotScore == nil {
		return Annotation{}, fmt.Errorf("incomplete analysis response: %s", body.Error)
	}
	if *body.BotScore < 0 || *body.BotScore > 100 {
		return Annotation{}, fmt.Errorf("bot score %v out of range", *body.BotScore)
	}

	return Annotation{
		Available: true,
		Analysis:  body.Analysis,
		BotScore:  body.BotScore,
		Breakdown: body.Breakdown,
	}, nil
}
