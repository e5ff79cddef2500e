package services

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// UserVector is the personalization signal for one request. A nil Vector
// means no signal exists and similarity falls back to neutral everywhere.
type UserVector struct {
	Vector []float32
	// EpisodeCount is how many engagement embeddings contributed.
	EpisodeCount int
	// AnchorOnly marks the anchor-as-is state, which is the trigger for
	// cold-start category diversity.
	AnchorOnly bool
}

// UserVectorBuilder folds recent engagements and an optional category
// anchor into a single query vector.
type UserVectorBuilder struct {
	cfg    config.StageBConfig
	logger *logrus.Logger
}

func NewUserVectorBuilder(cfg config.StageBConfig, logger *logrus.Logger) *UserVectorBuilder {
	return &UserVectorBuilder{cfg: cfg, logger: logger}
}

// Build resolves the four engagement states:
// no signal at all, engagements only, anchor only, and the blended state
// where the anchor nudges the engagement mean by category_anchor_weight.
func (b *UserVectorBuilder) Build(engagements []models.Engagement, embeddings map[string][]float32, anchor []float32) UserVector {
	mean, used := b.engagementMean(engagements, embeddings)

	switch {
	case mean == nil && len(anchor) == 0:
		return UserVector{}

	case mean == nil:
		return UserVector{Vector: anchor, AnchorOnly: true}

	case len(anchor) == 0:
		return UserVector{Vector: mean, EpisodeCount: used}
	}

	if len(mean) != len(anchor) {
		b.logger.WithFields(logrus.Fields{
			"engagement_dims": len(mean),
			"anchor_dims":     len(anchor),
		}).Warn("Category anchor dimension mismatch, using engagement mean unblended")
		return UserVector{Vector: mean, EpisodeCount: used}
	}

	alpha := b.cfg.CategoryAnchorWeight
	blended := make([]float64, len(mean))
	for i := range mean {
		blended[i] = (1-alpha)*float64(mean[i]) + alpha*float64(anchor[i])
	}
	if norm := floats.Norm(blended, 2); norm > 0 {
		floats.Scale(1/norm, blended)
	}

	return UserVector{Vector: toFloat32(blended), EpisodeCount: used}
}

// engagementMean computes the weighted mean over the newest engagements
// that still resolve to an embedding. Returns nil when nothing resolves.
func (b *UserVectorBuilder) engagementMean(engagements []models.Engagement, embeddings map[string][]float32) ([]float32, int) {
	if len(engagements) == 0 {
		return nil, 0
	}

	sorted := make([]models.Engagement, len(engagements))
	copy(sorted, engagements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	limit := b.cfg.UserVectorLimit
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	var sum []float64
	var weightTotal float64
	used := 0

	for _, e := range sorted {
		embedding, ok := embeddings[e.EpisodeID]
		if !ok {
			b.logger.WithFields(logrus.Fields{
				"episode_id": e.EpisodeID,
				"reason":     "no embedding",
			}).Debug("Engagement skipped in user vector")
			continue
		}

		if sum == nil {
			sum = make([]float64, len(embedding))
		} else if len(embedding) != len(sum) {
			b.logger.WithFields(logrus.Fields{
				"episode_id": e.EpisodeID,
				"reason":     "dimension mismatch",
			}).Warn("Engagement skipped in user vector")
			continue
		}

		w := b.cfg.EngagementWeight(e.Type)
		for i, x := range embedding {
			sum[i] += w * float64(x)
		}
		weightTotal += w
		used++
	}

	if used == 0 || weightTotal == 0 {
		return nil, 0
	}

	floats.Scale(1/weightTotal, sum)
	return toFloat32(sum), used
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
