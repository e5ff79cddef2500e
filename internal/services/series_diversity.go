package services

import (
	"math"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// SeriesDiversitySelector applies the per-series constraints during
// selection rather than by reshuffling a finished ranking. Each slot picks
// the eligible candidate with the best penalized score, so the diversity
// cost is paid only when the next-best item would actually repeat a
// series.
type SeriesDiversitySelector struct {
	cfg config.DiversityConfig
}

func NewSeriesDiversitySelector(cfg config.DiversityConfig) *SeriesDiversitySelector {
	return &SeriesDiversitySelector{cfg: cfg}
}

// seriesKey buckets episodes for the cap and adjacency checks. Episodes
// without a series share one anonymous bucket.
func seriesKey(ep models.Episode) string {
	return ep.Series.ID
}

// Select greedily builds the output order. Ties on effective score keep
// the earlier candidate. Selection stops when no remaining candidate is
// eligible.
func (s *SeriesDiversitySelector) Select(ranked []models.ScoredEpisode) []models.ScoredEpisode {
	if len(ranked) <= 1 {
		return ranked
	}

	remaining := make([]models.ScoredEpisode, len(ranked))
	copy(remaining, ranked)

	out := make([]models.ScoredEpisode, 0, len(ranked))
	seriesCount := make(map[string]int)
	lastSeries := ""
	havePrev := false

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			key := seriesKey(cand.Episode)
			count := seriesCount[key]

			if count >= s.cfg.MaxEpisodesPerSeries {
				continue
			}
			if s.cfg.NoAdjacentSameSeries && havePrev && key == lastSeries {
				continue
			}

			effective := cand.Final * math.Pow(s.cfg.SeriesPenaltyAlpha, float64(count))
			if effective > bestScore {
				bestScore = effective
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		picked := remaining[bestIdx]
		out = append(out, picked)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		key := seriesKey(picked.Episode)
		seriesCount[key]++
		lastSeries = key
		havePrev = true
	}

	return out
}
