package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRecommendationConfig() RecommendationConfig {
	return RecommendationConfig{
		StageA: StageAConfig{
			CredibilityFloor:    2,
			CombinedFloor:       5,
			FreshnessWindowDays: 90,
			CandidatePoolSize:   150,
		},
		StageB: StageBConfig{
			UserVectorLimit:       10,
			WeightSimilarity:      0.55,
			WeightQuality:         0.30,
			WeightRecency:         0.15,
			CredibilityMultiplier: 1.5,
			RecencyLambda:         0.03,
			EngagementWeights:     map[string]float64{"bookmark": 2.0, "click": 1.0},
			CategoryAnchorWeight:  0.15,
		},
		Diversity: DiversityConfig{
			MaxEpisodesPerSeries: 2,
			SeriesPenaltyAlpha:   0.7,
			NoAdjacentSameSeries: true,
		},
		ColdStart: ColdStartConfig{
			Enabled:        false,
			MinPerCategory: 2,
			TopN:           10,
		},
		QueryTopK: 250,
	}
}

func TestRecommendationConfig_ValidateDefaults(t *testing.T) {
	cfg := defaultRecommendationConfig()
	require.NoError(t, cfg.Validate())
}

func TestRecommendationConfig_WeightSumInvariant(t *testing.T) {
	tests := []struct {
		name    string
		sim     float64
		qual    float64
		rec     float64
		wantErr bool
	}{
		{"exact sum", 0.55, 0.30, 0.15, false},
		{"within epsilon", 0.55, 0.30, 0.155, false},
		{"sum too high", 0.6, 0.4, 0.2, true},
		{"sum too low", 0.3, 0.3, 0.3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultRecommendationConfig()
			cfg.StageB.WeightSimilarity = tt.sim
			cfg.StageB.WeightQuality = tt.qual
			cfg.StageB.WeightRecency = tt.rec

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecommendationConfig_RangeInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecommendationConfig)
	}{
		{"anchor weight above 1", func(c *RecommendationConfig) { c.StageB.CategoryAnchorWeight = 1.5 }},
		{"anchor weight negative", func(c *RecommendationConfig) { c.StageB.CategoryAnchorWeight = -0.1 }},
		{"alpha zero", func(c *RecommendationConfig) { c.Diversity.SeriesPenaltyAlpha = 0 }},
		{"alpha above 1", func(c *RecommendationConfig) { c.Diversity.SeriesPenaltyAlpha = 1.1 }},
		{"zero pool size", func(c *RecommendationConfig) { c.StageA.CandidatePoolSize = 0 }},
		{"zero freshness window", func(c *RecommendationConfig) { c.StageA.FreshnessWindowDays = 0 }},
		{"zero user vector limit", func(c *RecommendationConfig) { c.StageB.UserVectorLimit = 0 }},
		{"negative lambda", func(c *RecommendationConfig) { c.StageB.RecencyLambda = -0.01 }},
		{"zero top k", func(c *RecommendationConfig) { c.QueryTopK = 0 }},
		{"zero series cap", func(c *RecommendationConfig) { c.Diversity.MaxEpisodesPerSeries = 0 }},
		{"cold start without categories", func(c *RecommendationConfig) { c.ColdStart.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultRecommendationConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStageBConfig_EngagementWeight(t *testing.T) {
	cfg := defaultRecommendationConfig()

	assert.Equal(t, 2.0, cfg.StageB.EngagementWeight("bookmark"))
	assert.Equal(t, 1.0, cfg.StageB.EngagementWeight("click"))

	// Types outside the configured map default to 1.0 rather than being
	// rejected; listen and view carry no special weight.
	assert.Equal(t, 1.0, cfg.StageB.EngagementWeight("listen"))
	assert.Equal(t, 1.0, cfg.StageB.EngagementWeight("view"))
	assert.Equal(t, 1.0, cfg.StageB.EngagementWeight("unknown"))
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"disabled ignores zero window", RateLimitConfig{Enabled: false}, false},
		{"enabled with sane values", RateLimitConfig{Enabled: true, Limit: 300, Window: time.Minute}, false},
		{"enabled with zero window", RateLimitConfig{Enabled: true, Limit: 300}, true},
		{"enabled with negative window", RateLimitConfig{Enabled: true, Limit: 300, Window: -time.Second}, true},
		{"enabled with zero limit", RateLimitConfig{Enabled: true, Window: time.Minute}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
