// Package score maps a windowed stats snapshot onto the composite MemeScore.
package score

import (
	"fmt"
	"math"

	"github.com/wnt/memescore/internal/units"
)

// Stats is the raw input of one score computation
type Stats struct {
	Likes               int64  `json:"likes"`
	Replies             int64  `json:"replies"`
	Reposts             int64  `json:"reposts"`
	Quotes              int64  `json:"quotes"`
	Views               int64  `json:"views"`
	Followers           int64  `json:"followers"`
	TipCount            int64  `json:"tip_count"`
	TipAmountMinorUnits string `json:"tip_amount"`
}

// Breakdown is an auditable score computation: sub-scores, composite, and what produced them
type Breakdown struct {
	EngagementScore float64 `json:"engagementScore"`
	ViewScore       float64 `json:"viewScore"`
	FollowScore     float64 `json:"followScore"`
	TipScore        float64 `json:"tipScore"`
	MemeScore       float64 `json:"memeScore"`
	Weights         Weights `json:"weights"`
	Stats           Stats   `json:"stats"`
}

// Engine computes breakdowns with a fixed weight set. It holds no clock or
// randomness, so equal inputs always yield equal outputs.
type Engine struct {
	weights Weights
}

// NewEngine validates the weight set and returns an engine using it
func NewEngine(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &Engine{weights: w}, nil
}

// Weights returns the weight set the engine was built with
func (e *Engine) Weights() Weights {
	return e.weights
}

// Compute maps stats onto a breakdown. All five numbers are rounded to one
// decimal place, half away from zero; the composite is the rounded sum of the
// rounded sub-scores.
func (e *Engine) Compute(s Stats) (Breakdown, error) {
	if err := s.validate(); err != nil {
		return Breakdown{}, err
	}

	tipAmount := "0"
	if s.TipAmountMinorUnits != "" {
		tipAmount = s.TipAmountMinorUnits
	}
	tipAmountDecimal, err := units.ToDecimal(tipAmount)
	if err != nil {
		return Breakdown{}, fmt.Errorf("invalid tip amount: %w", err)
	}

	w := e.weights
	engagement := w.Engagement*logScale(float64(s.Likes+s.Replies+s.Reposts+s.Quotes)) +
		w.Likes*logScale(float64(s.Likes)) +
		w.Replies*logScale(float64(s.Replies)) +
		w.Reposts*logScale(float64(s.Reposts)) +
		w.Quotes*logScale(float64(s.Quotes))
	view := w.View * logScale(float64(s.Views))
	follow := w.Follow * logScale(float64(s.Followers))
	tip := w.TipCount*logScale(float64(s.TipCount)) + w.TipAmount*logScale(tipAmountDecimal)

	b := Breakdown{
		EngagementScore: Round1(engagement),
		ViewScore:       Round1(view),
		FollowScore:     Round1(follow),
		TipScore:        Round1(tip),
		Weights:         w,
		Stats:           s,
	}
	b.Stats.TipAmountMinorUnits = tipAmount
	b.MemeScore = Composite(b.EngagementScore, b.ViewScore, b.FollowScore, b.TipScore)

	return b, nil
}

// Composite sums already-rounded sub-scores and rounds the result
func Composite(engagement, view, follow, tip float64) float64 {
	return Round1(engagement + view + follow + tip)
}

// Round1 rounds to one decimal place, half away from zero
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func logScale(x float64) float64 {
	return math.Log10(1 + x)
}

func (s Stats) validate() error {
	counts := map[string]int64{
		"likes":     s.Likes,
		"replies":   s.Replies,
		"reposts":   s.Reposts,
		"quotes":    s.Quotes,
		"views":     s.Views,
		"followers": s.Followers,
		"tip_count": s.TipCount,
	}
	for name, v := range counts {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}
	return nil
}
