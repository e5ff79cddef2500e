package services

import (
	"context"
	"time"

	"github.com/earshot-fm/earshot/internal/catalog"
	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// stubCatalog is an in-memory catalog.Provider for pipeline tests.
type stubCatalog struct {
	episodes []models.Episode
	err      error
}

func (s *stubCatalog) GetEpisodes(ctx context.Context, q catalog.Query) ([]models.Episode, error) {
	if s.err != nil {
		return nil, s.err
	}

	if len(q.EpisodeIDs) > 0 {
		wanted := make(map[string]struct{}, len(q.EpisodeIDs))
		for _, id := range q.EpisodeIDs {
			wanted[id] = struct{}{}
		}
		var out []models.Episode
		for _, ep := range s.episodes {
			if _, ok := wanted[ep.ID]; ok {
				out = append(out, ep)
				continue
			}
			if ep.ContentID != "" {
				if _, ok := wanted[ep.ContentID]; ok {
					out = append(out, ep)
				}
			}
		}
		return out, nil
	}

	return s.episodes, nil
}

func (s *stubCatalog) GetEpisode(ctx context.Context, idOrContentID string) (models.Episode, error) {
	if s.err != nil {
		return models.Episode{}, s.err
	}
	for _, ep := range s.episodes {
		if ep.ID == idOrContentID || (ep.ContentID != "" && ep.ContentID == idOrContentID) {
			return ep, nil
		}
	}
	return models.Episode{}, models.ErrEpisodeNotFound
}

func (s *stubCatalog) EpisodesByContentID(ctx context.Context) (map[string]models.Episode, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]models.Episode)
	for _, ep := range s.episodes {
		if ep.ContentID != "" {
			out[ep.ContentID] = ep
		}
	}
	return out, nil
}

func episodes(eps ...models.Episode) []models.Episode {
	return eps
}

type episodeOpt func(*models.Episode)

func withSeries(id, name string) episodeOpt {
	return func(ep *models.Episode) { ep.Series = models.Series{ID: id, Name: name} }
}

func withContentID(contentID string) episodeOpt {
	return func(ep *models.Episode) { ep.ContentID = contentID }
}

func withCategories(major ...string) episodeOpt {
	return func(ep *models.Episode) { ep.Categories.Major = major }
}

func makeEpisode(id string, credibility, insight int, publishedAt time.Time, opts ...episodeOpt) models.Episode {
	ep := models.Episode{
		ID:          id,
		Title:       "Episode " + id,
		PublishedAt: &publishedAt,
		Scores:      models.Scores{Credibility: credibility, Insight: insight},
	}
	for _, opt := range opts {
		opt(&ep)
	}
	return ep
}

func defaultRecConfig() config.RecommendationConfig {
	return config.RecommendationConfig{
		StageA: config.StageAConfig{
			CredibilityFloor:    2,
			CombinedFloor:       5,
			FreshnessWindowDays: 90,
			CandidatePoolSize:   150,
		},
		StageB: testStageBConfig(),
		Diversity: config.DiversityConfig{
			MaxEpisodesPerSeries: 2,
			SeriesPenaltyAlpha:   0.7,
			NoAdjacentSameSeries: true,
		},
		ColdStart: config.ColdStartConfig{
			Enabled:        false,
			MinPerCategory: 2,
			TopN:           10,
		},
		QueryTopK: 250,
	}
}
