package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/catalog"
	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// freshnessLadder holds the widening thresholds, in days. When a window
// yields fewer than half the pool, the retriever retries at each larger
// threshold in turn and stops at the first sufficient pool.
var freshnessLadder = []int{60, 90}

// CandidatePool is the Stage A result plus the window that produced it.
type CandidatePool struct {
	Episodes            []models.Episode
	FreshnessWindowDays int
}

// CandidateRetriever gates the catalog by quality and freshness and keeps
// the best candidate_pool_size episodes by raw quality. This is the
// in-memory path; ANN deployments push the same predicate down to the
// vector query instead.
type CandidateRetriever struct {
	provider catalog.Provider
	cfg      config.RecommendationConfig
	logger   *logrus.Logger
	metrics  *Metrics
}

func NewCandidateRetriever(provider catalog.Provider, cfg config.RecommendationConfig, logger *logrus.Logger, metrics *Metrics) *CandidateRetriever {
	return &CandidateRetriever{provider: provider, cfg: cfg, logger: logger, metrics: metrics}
}

// Retrieve returns at most candidate_pool_size episodes, best quality
// first. A pool emptied by gating is returned as-is, not as an error.
func (r *CandidateRetriever) Retrieve(ctx context.Context, excluded map[string]struct{}, now time.Time) (CandidatePool, error) {
	episodes, err := r.provider.GetEpisodes(ctx, catalog.Query{})
	if err != nil {
		return CandidatePool{}, fmt.Errorf("failed to load catalog for retrieval: %w", err)
	}

	window := r.cfg.StageA.FreshnessWindowDays
	admitted := r.gate(episodes, excluded, window, now)

	// Half-empty pools widen the window along the ladder, one retry per
	// threshold above the current window.
	for _, next := range freshnessLadder {
		if next <= window {
			continue
		}
		if len(admitted) >= r.cfg.StageA.CandidatePoolSize/2 {
			break
		}
		r.logger.WithFields(logrus.Fields{
			"admitted":    len(admitted),
			"window_days": window,
			"widened_to":  next,
		}).Info("Widening freshness window")
		if r.metrics != nil {
			r.metrics.FreshnessWidened()
		}
		window = next
		admitted = r.gate(episodes, excluded, window, now)
	}

	sortByQuality(admitted, r.cfg.StageB.CredibilityMultiplier)
	if len(admitted) > r.cfg.StageA.CandidatePoolSize {
		admitted = admitted[:r.cfg.StageA.CandidatePoolSize]
	}

	return CandidatePool{Episodes: admitted, FreshnessWindowDays: window}, nil
}

// sortByQuality orders episodes by raw quality descending, stable on
// ties.
func sortByQuality(episodes []models.Episode, credibilityMultiplier float64) {
	sort.SliceStable(episodes, func(i, j int) bool {
		return qualityRaw(episodes[i].Scores, credibilityMultiplier) >
			qualityRaw(episodes[j].Scores, credibilityMultiplier)
	})
}

func (r *CandidateRetriever) gate(episodes []models.Episode, excluded map[string]struct{}, windowDays int, now time.Time) []models.Episode {
	var admitted []models.Episode
	for _, ep := range episodes {
		if ep.Scores.Credibility < r.cfg.StageA.CredibilityFloor {
			continue
		}
		if ep.Scores.Credibility+ep.Scores.Insight < r.cfg.StageA.CombinedFloor {
			continue
		}
		if daysSince(ep.PublishedAt, now) > float64(windowDays) {
			continue
		}
		if _, skip := excluded[ep.ID]; skip {
			continue
		}
		if ep.ContentID != "" {
			if _, skip := excluded[ep.ContentID]; skip {
				continue
			}
		}
		admitted = append(admitted, ep)
	}
	return admitted
}
