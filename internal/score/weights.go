package score

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Weights is a versioned weight set for the MemeScore formula.
//
// The engagement sub-score is Engagement*log10(1+likes+replies+reposts+quotes)
// plus one log term per counter weighted by Likes, Replies, Reposts and Quotes.
// Either form may be zero, which lets older formula revisions be expressed
// without code changes.
type Weights struct {
	Version    string  `json:"version"`
	Engagement float64 `json:"engagement"`
	Likes      float64 `json:"likes,omitempty"`
	Replies    float64 `json:"replies,omitempty"`
	Reposts    float64 `json:"reposts,omitempty"`
	Quotes     float64 `json:"quotes,omitempty"`
	View       float64 `json:"view"`
	Follow     float64 `json:"follow"`
	TipCount   float64 `json:"tip_count"`
	TipAmount  float64 `json:"tip_amount"`
}

// CurrentVersion names the weight set used for new snapshots unless configured otherwise
const CurrentVersion = "v2"

// V1 is the first published formula: per-counter engagement terms, no tip term
var V1 = Weights{
	Version: "v1",
	Likes:   2.0,
	Replies: 3.0,
	Reposts: 4.0,
	View:    0.5,
	Follow:  1.5,
}

// V2 is the current formula
var V2 = Weights{
	Version:    "v2",
	Engagement: 10,
	View:       5,
	Follow:     8,
	TipCount:   3,
	TipAmount:  2,
}

var registry = map[string]Weights{
	V1.Version: V1,
	V2.Version: V2,
}

// Lookup returns a registered weight set by version
func Lookup(version string) (Weights, bool) {
	w, ok := registry[version]
	return w, ok
}

// Versions lists the registered weight-set versions in order
func Versions() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Validate checks that the weight set can be used by the engine
func (w Weights) Validate() error {
	if w.Version == "" {
		return fmt.Errorf("weights version is required")
	}

	named := map[string]float64{
		"engagement": w.Engagement,
		"likes":      w.Likes,
		"replies":    w.Replies,
		"reposts":    w.Reposts,
		"quotes":     w.Quotes,
		"view":       w.View,
		"follow":     w.Follow,
		"tip_count":  w.TipCount,
		"tip_amount": w.TipAmount,
	}
	for name, v := range named {
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	return nil
}

// JSON encodes the weight set for storage next to a snapshot
func (w Weights) JSON() ([]byte, error) {
	return json.Marshal(w)
}
