package services

import (
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/pkg/models"
)

// neutralSimilarity is the fallback when no personalization signal reaches
// an episode. It keeps quality and recency in charge of the blend without
// zeroing the similarity term.
const neutralSimilarity = 0.5

// SimilarityResolver assigns each candidate a similarity in [0,1], drawing
// from the ANN result map when one exists and falling back to a direct
// cosine against the episode's own embedding otherwise.
type SimilarityResolver struct {
	logger  *logrus.Logger
	metrics *Metrics
}

func NewSimilarityResolver(logger *logrus.Logger, metrics *Metrics) *SimilarityResolver {
	return &SimilarityResolver{logger: logger, metrics: metrics}
}

func (r *SimilarityResolver) fallback(episodeID, reason string) float64 {
	r.logger.WithFields(logrus.Fields{
		"episode_id": episodeID,
		"reason":     reason,
	}).Warn("Similarity fallback to neutral")
	if r.metrics != nil {
		r.metrics.SimilarityFallback()
	}
	return neutralSimilarity
}

// Resolve order: ANN map by id then content_id, then cosine against the
// episode's own embedding, then neutral.
func (r *SimilarityResolver) Resolve(
	episode models.Episode,
	similarityByID map[string]float64,
	userVector []float32,
	embeddings map[string][]float32,
) float64 {
	if similarityByID != nil {
		if score, ok := similarityByID[episode.ID]; ok {
			return clampUnit(score)
		}
		if episode.ContentID != "" {
			if score, ok := similarityByID[episode.ContentID]; ok {
				return clampUnit(score)
			}
		}
		return r.fallback(episode.ID, "absent from query result")
	}

	if len(userVector) == 0 {
		return neutralSimilarity
	}

	embedding, ok := embeddings[episode.ID]
	if !ok && episode.ContentID != "" {
		embedding, ok = embeddings[episode.ContentID]
	}
	if !ok {
		return r.fallback(episode.ID, "no embedding")
	}

	return clampUnit(cosineSimilarity(userVector, embedding))
}
