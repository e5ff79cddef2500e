package services

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

func testStageBConfig() config.StageBConfig {
	return config.StageBConfig{
		UserVectorLimit:       10,
		WeightSimilarity:      0.55,
		WeightQuality:         0.30,
		WeightRecency:         0.15,
		CredibilityMultiplier: 1.5,
		RecencyLambda:         0.03,
		EngagementWeights:     map[string]float64{"bookmark": 2.0, "click": 1.0},
		CategoryAnchorWeight:  0.15,
	}
}

func engagementAt(episodeID, kind string, ts time.Time) models.Engagement {
	return models.Engagement{EpisodeID: episodeID, Type: kind, Timestamp: ts}
}

func TestUserVectorBuilder_FourCases(t *testing.T) {
	b := NewUserVectorBuilder(testStageBConfig(), logrus.New())
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	embeddings := map[string][]float32{
		"ep-a": {1, 0},
		"ep-b": {0, 1},
	}

	t.Run("no signal at all", func(t *testing.T) {
		uv := b.Build(nil, nil, nil)
		assert.Nil(t, uv.Vector)
		assert.Zero(t, uv.EpisodeCount)
		assert.False(t, uv.AnchorOnly)
	})

	t.Run("engagements only", func(t *testing.T) {
		uv := b.Build([]models.Engagement{
			engagementAt("ep-a", models.EngagementClick, now),
			engagementAt("ep-b", models.EngagementClick, now.Add(-time.Hour)),
		}, embeddings, nil)

		require.NotNil(t, uv.Vector)
		assert.Equal(t, 2, uv.EpisodeCount)
		assert.False(t, uv.AnchorOnly)
		assert.InDelta(t, 0.5, float64(uv.Vector[0]), 1e-6)
		assert.InDelta(t, 0.5, float64(uv.Vector[1]), 1e-6)
	})

	t.Run("anchor only", func(t *testing.T) {
		anchor := []float32{0.6, 0.8}
		uv := b.Build(nil, nil, anchor)
		assert.Equal(t, anchor, uv.Vector)
		assert.Zero(t, uv.EpisodeCount)
		assert.True(t, uv.AnchorOnly)
	})

	t.Run("blended and normalized", func(t *testing.T) {
		anchor := []float32{0, 1}
		uv := b.Build([]models.Engagement{
			engagementAt("ep-a", models.EngagementClick, now),
		}, embeddings, anchor)

		require.NotNil(t, uv.Vector)
		assert.Equal(t, 1, uv.EpisodeCount)
		assert.False(t, uv.AnchorOnly)

		// (1-0.15)*[1,0] + 0.15*[0,1] = [0.85, 0.15], then unit length.
		norm := math.Hypot(0.85, 0.15)
		assert.InDelta(t, 0.85/norm, float64(uv.Vector[0]), 1e-6)
		assert.InDelta(t, 0.15/norm, float64(uv.Vector[1]), 1e-6)

		var sumSq float64
		for _, x := range uv.Vector {
			sumSq += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, sumSq, 1e-6)
	})
}

func TestUserVectorBuilder_WeightedMean(t *testing.T) {
	b := NewUserVectorBuilder(testStageBConfig(), logrus.New())
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	embeddings := map[string][]float32{
		"ep-x": {4, 0},
		"ep-y": {0, 4},
		"ep-z": {0, 4},
	}

	uv := b.Build([]models.Engagement{
		engagementAt("ep-x", models.EngagementBookmark, now),
		engagementAt("ep-y", models.EngagementClick, now.Add(-time.Hour)),
		engagementAt("ep-z", models.EngagementClick, now.Add(-2*time.Hour)),
	}, embeddings, nil)

	require.NotNil(t, uv.Vector)
	assert.Equal(t, 3, uv.EpisodeCount)

	// (2*[4,0] + [0,4] + [0,4]) / 4 = [2, 2]
	assert.InDelta(t, 2.0, float64(uv.Vector[0]), 1e-6)
	assert.InDelta(t, 2.0, float64(uv.Vector[1]), 1e-6)
}

func TestUserVectorBuilder_NewestLimitAndMissingEmbeddings(t *testing.T) {
	cfg := testStageBConfig()
	cfg.UserVectorLimit = 2
	b := NewUserVectorBuilder(cfg, logrus.New())
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	embeddings := map[string][]float32{
		"ep-new":    {1, 0},
		"ep-newest": {0, 1},
		"ep-old":    {1, 1},
	}

	uv := b.Build([]models.Engagement{
		engagementAt("ep-old", models.EngagementClick, now.Add(-48*time.Hour)),
		engagementAt("ep-newest", models.EngagementClick, now),
		engagementAt("ep-new", models.EngagementClick, now.Add(-time.Hour)),
	}, embeddings, nil)

	// Only the two newest count; ep-old falls outside the limit.
	require.NotNil(t, uv.Vector)
	assert.Equal(t, 2, uv.EpisodeCount)
	assert.InDelta(t, 0.5, float64(uv.Vector[0]), 1e-6)
	assert.InDelta(t, 0.5, float64(uv.Vector[1]), 1e-6)
}

func TestUserVectorBuilder_AllEmbeddingsMissingFallsToAnchor(t *testing.T) {
	b := NewUserVectorBuilder(testStageBConfig(), logrus.New())
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	anchor := []float32{1, 0}
	uv := b.Build([]models.Engagement{
		engagementAt("ep-unknown", models.EngagementClick, now),
	}, map[string][]float32{}, anchor)

	assert.Equal(t, anchor, uv.Vector)
	assert.True(t, uv.AnchorOnly)
	assert.Zero(t, uv.EpisodeCount)
}

func TestUserVectorBuilder_AnchorDimensionMismatch(t *testing.T) {
	b := NewUserVectorBuilder(testStageBConfig(), logrus.New())
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	embeddings := map[string][]float32{"ep-a": {1, 0}}
	uv := b.Build([]models.Engagement{
		engagementAt("ep-a", models.EngagementClick, now),
	}, embeddings, []float32{1, 0, 0})

	// Mismatched anchor is dropped, engagement mean returned unblended.
	require.NotNil(t, uv.Vector)
	assert.Len(t, uv.Vector, 2)
	assert.InDelta(t, 1.0, float64(uv.Vector[0]), 1e-6)
	assert.False(t, uv.AnchorOnly)
}

func TestUserVectorBuilder_UnknownTypeWeighsOne(t *testing.T) {
	b := NewUserVectorBuilder(testStageBConfig(), logrus.New())
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	embeddings := map[string][]float32{
		"ep-a": {2, 0},
		"ep-b": {0, 2},
	}

	uv := b.Build([]models.Engagement{
		engagementAt("ep-a", "listen", now),
		engagementAt("ep-b", models.EngagementClick, now.Add(-time.Minute)),
	}, embeddings, nil)

	require.NotNil(t, uv.Vector)
	assert.InDelta(t, 1.0, float64(uv.Vector[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(uv.Vector[1]), 1e-6)
}
