package services

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// BlendedRanker is Stage B: it turns a candidate pool into a fully ordered
// list of scored episodes under the configured weight blend.
type BlendedRanker struct {
	cfg        config.StageBConfig
	similarity *SimilarityResolver
	logger     *logrus.Logger
}

func NewBlendedRanker(cfg config.StageBConfig, similarity *SimilarityResolver, logger *logrus.Logger) *BlendedRanker {
	return &BlendedRanker{cfg: cfg, similarity: similarity, logger: logger}
}

// Rank scores every candidate and sorts by final score descending. The
// sort is stable so equal finals keep candidate-pool order.
func (r *BlendedRanker) Rank(
	candidates []models.Episode,
	similarityByID map[string]float64,
	userVector []float32,
	embeddings map[string][]float32,
	now time.Time,
) []models.ScoredEpisode {
	scored := make([]models.ScoredEpisode, 0, len(candidates))
	for _, ep := range candidates {
		sim := r.similarity.Resolve(ep, similarityByID, userVector, embeddings)
		qual := qualityScore(ep.Scores, r.cfg.CredibilityMultiplier)
		rec := recencyScore(daysSince(ep.PublishedAt, now), r.cfg.RecencyLambda)

		scored = append(scored, models.ScoredEpisode{
			Episode:    ep,
			Similarity: sim,
			Quality:    qual,
			Recency:    rec,
			Final:      r.cfg.WeightSimilarity*sim + r.cfg.WeightQuality*qual + r.cfg.WeightRecency*rec,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Final > scored[j].Final
	})
	return scored
}
