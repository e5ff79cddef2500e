package services

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSimilarityResolver_QueryResultPath(t *testing.T) {
	r := NewSimilarityResolver(logrus.New(), nil)
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	episode := makeEpisode("ep-a", 3, 3, now, withContentID("content-a"))

	t.Run("hit by id", func(t *testing.T) {
		sim := r.Resolve(episode, map[string]float64{"ep-a": 0.83}, nil, nil)
		assert.Equal(t, 0.83, sim)
	})

	t.Run("hit by content id", func(t *testing.T) {
		sim := r.Resolve(episode, map[string]float64{"content-a": 0.71}, nil, nil)
		assert.Equal(t, 0.71, sim)
	})

	t.Run("miss falls back to neutral", func(t *testing.T) {
		sim := r.Resolve(episode, map[string]float64{"ep-other": 0.9}, nil, nil)
		assert.Equal(t, neutralSimilarity, sim)
	})

	t.Run("out of range scores clamp", func(t *testing.T) {
		assert.Equal(t, 1.0, r.Resolve(episode, map[string]float64{"ep-a": 1.4}, nil, nil))
		assert.Equal(t, 0.0, r.Resolve(episode, map[string]float64{"ep-a": -0.2}, nil, nil))
	})
}

func TestSimilarityResolver_CosinePath(t *testing.T) {
	r := NewSimilarityResolver(logrus.New(), nil)
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	episode := makeEpisode("ep-a", 3, 3, now, withContentID("content-a"))
	userVector := []float32{1, 0}

	t.Run("cosine against own embedding", func(t *testing.T) {
		sim := r.Resolve(episode, nil, userVector, map[string][]float32{"ep-a": {1, 0}})
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("embedding found via content id", func(t *testing.T) {
		sim := r.Resolve(episode, nil, userVector, map[string][]float32{"content-a": {0, 1}})
		assert.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("missing embedding falls back", func(t *testing.T) {
		sim := r.Resolve(episode, nil, userVector, map[string][]float32{})
		assert.Equal(t, neutralSimilarity, sim)
	})

	t.Run("nil user vector is neutral", func(t *testing.T) {
		sim := r.Resolve(episode, nil, nil, map[string][]float32{"ep-a": {1, 0}})
		assert.Equal(t, neutralSimilarity, sim)
	})

	t.Run("negative cosine clamps to zero", func(t *testing.T) {
		sim := r.Resolve(episode, nil, userVector, map[string][]float32{"ep-a": {-1, 0}})
		assert.Equal(t, 0.0, sim)
	})
}
