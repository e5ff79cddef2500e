package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/earshot-fm/earshot/pkg/models"
)

func TestDaysSince(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing timestamp is maximally old", func(t *testing.T) {
		assert.Equal(t, float64(daysSinceUnparseable), daysSince(nil, now))

		zero := time.Time{}
		assert.Equal(t, float64(daysSinceUnparseable), daysSince(&zero, now))
	})

	t.Run("future timestamps clamp to zero", func(t *testing.T) {
		future := now.Add(48 * time.Hour)
		assert.Equal(t, 0.0, daysSince(&future, now))
	})

	t.Run("fractional days", func(t *testing.T) {
		published := now.Add(-36 * time.Hour)
		assert.InDelta(t, 1.5, daysSince(&published, now), 1e-9)
	})
}

func TestQualityScore(t *testing.T) {
	t.Run("saturates at one for max scores", func(t *testing.T) {
		scores := models.Scores{Credibility: 4, Insight: 4}
		assert.Equal(t, 1.0, qualityScore(scores, 1.5))
	})

	t.Run("normalizes against max quality", func(t *testing.T) {
		scores := models.Scores{Credibility: 2, Insight: 3}
		// raw = 2*1.5 + 3 = 6; max = 4*1.5 + 4 = 10
		assert.InDelta(t, 0.6, qualityScore(scores, 1.5), 1e-9)
	})

	t.Run("zero scores score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, qualityScore(models.Scores{}, 1.5))
	})
}

func TestRecencyScore(t *testing.T) {
	t.Run("fresh is one", func(t *testing.T) {
		assert.Equal(t, 1.0, recencyScore(0, 0.03))
	})

	t.Run("monotonically decreasing in age", func(t *testing.T) {
		prev := recencyScore(0, 0.03)
		for _, days := range []float64{1, 7, 30, 90, 365, 999} {
			cur := recencyScore(days, 0.03)
			assert.Less(t, cur, prev, "days=%v", days)
			prev = cur
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{3, 2, 1}

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, cosineSimilarity(a, b), cosineSimilarity(b, a), 1e-12)
	})

	t.Run("self similarity is one", func(t *testing.T) {
		assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-9)
	})

	t.Run("orthogonal is zero", func(t *testing.T) {
		assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-12)
	})

	t.Run("degenerate inputs score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, cosineSimilarity(nil, a))
		assert.Equal(t, 0.0, cosineSimilarity(a, []float32{1, 2}))
		assert.Equal(t, 0.0, cosineSimilarity(a, []float32{0, 0, 0}))
	})
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, clampUnit(-0.2))
	assert.Equal(t, 1.0, clampUnit(1.7))
	assert.Equal(t, 0.42, clampUnit(0.42))
}
