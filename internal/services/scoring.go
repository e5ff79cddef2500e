package services

import (
	"math"
	"time"

	"github.com/earshot-fm/earshot/pkg/models"
)

// daysSinceUnparseable is the age assigned to an episode whose published
// timestamp is missing or failed to parse at the provider boundary. It is
// large enough to push recency toward zero without overflowing exp.
const daysSinceUnparseable = 999

// daysSince returns whole-plus-fractional days between publishedAt and now,
// both taken in UTC. Missing timestamps map to daysSinceUnparseable; future
// timestamps clamp to 0.
func daysSince(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil || publishedAt.IsZero() {
		return daysSinceUnparseable
	}

	days := now.UTC().Sub(publishedAt.UTC()).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// qualityRaw is the Stage A sort key: credibility weighted by the
// multiplier, plus insight.
func qualityRaw(scores models.Scores, credibilityMultiplier float64) float64 {
	return float64(scores.Credibility)*credibilityMultiplier + float64(scores.Insight)
}

// qualityScore normalizes qualityRaw into [0,1], saturating at 1.0 for a
// max-credibility, max-insight episode.
func qualityScore(scores models.Scores, credibilityMultiplier float64) float64 {
	maxQuality := 4*credibilityMultiplier + 4
	return math.Min(qualityRaw(scores, credibilityMultiplier)/maxQuality, 1.0)
}

// recencyScore decays exponentially in age: exp(-lambda * days).
func recencyScore(days, lambda float64) float64 {
	return math.Exp(-lambda * days)
}

// cosineSimilarity returns dot(a,b)/(|a|*|b|), or 0 when either vector is
// empty, mismatched in length, or zero-norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clampUnit clips a score into [0,1]. ANN backends are supposed to return
// normalized cosine scores already; this guards against drift.
func clampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
