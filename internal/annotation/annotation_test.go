package annotation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/memescore/internal/score"
)

var stats = score.Stats{
	Likes:               100,
	Replies:             20,
	Reposts:             5,
	Views:               10000,
	Followers:           500,
	TipCount:            3,
	TipAmountMinorUnits: "3000000000000000000",
}

func TestAnnotateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)

		var req analyzeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(20), req.Comments)
		assert.InDelta(t, 3.0, req.TipAmount, 1e-9)

		_, _ = w.Write([]byte(`{
			"success": true,
			"analysis": "steady growth",
			"score_breakdown": {"engagement_quality": 21, "virality_potential": 20, "community_strength": 21.6, "monetization_health": 3},
			"bot_score": 15
		}`))
	}))
	defer srv.Close()

	a := NewClient(srv.URL, time.Second, zerolog.Nop()).Annotate(context.Background(), stats)
	require.True(t, a.Available)
	assert.Equal(t, "steady growth", a.Analysis)
	require.NotNil(t, a.BotScore)
	assert.Equal(t, 15.0, *a.BotScore)
	assert.Equal(t, 21.6, a.Breakdown.CommunityStrength)
}

func TestAnnotateFailuresAreUnavailable(t *testing.T) {
	responses := map[string]func(w http.ResponseWriter){
		"server error":  func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) },
		"not json":      func(w http.ResponseWriter) { _, _ = w.Write([]byte("<html>")) },
		"success false": func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"success": false, "error": "missing field"}`)) },
		"bot score absent": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"success": true, "analysis": "x", "score_breakdown": {}}`))
		},
		"bot score range": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"success": true, "analysis": "x", "score_breakdown": {}, "bot_score": 140}`))
		},
		"slow": func(w http.ResponseWriter) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{}`))
		},
	}

	for name, respond := range responses {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				respond(w)
			}))
			defer srv.Close()

			a := NewClient(srv.URL, 50*time.Millisecond, zerolog.Nop()).Annotate(context.Background(), stats)
			assert.Equal(t, Unavailable(), a)
			assert.False(t, a.Available)
		})
	}
}

func TestDisabledAnnotator(t *testing.T) {
	var a Annotator = Disabled{}
	assert.False(t, a.Annotate(context.Background(), stats).Available)
}
