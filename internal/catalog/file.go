package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/validation"
	"github.com/earshot-fm/earshot/pkg/models"
)

// episodeRecord is the raw document shape of a catalog file entry. It is
// converted into models.Episode at this boundary; nullable scores and
// unparseable timestamps are resolved here, never downstream.
type episodeRecord struct {
	ID          string `json:"id"`
	ContentID   string `json:"content_id"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
	KeyInsight  string `json:"key_insight"`
	Scores      struct {
		Credibility   *int `json:"credibility"`
		Insight       *int `json:"insight"`
		Information   *int `json:"information"`
		Entertainment *int `json:"entertainment"`
	} `json:"scores"`
	Series struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"series"`
	Categories struct {
		Major         []string `json:"major"`
		Subcategories []string `json:"subcategories"`
	} `json:"categories"`
}

// FileProvider serves a schema-validated JSON catalog held entirely in RAM.
// The snapshot is immutable after load; re-reading the file means building
// a new provider.
type FileProvider struct {
	episodes    []models.Episode // newest-first
	byID        map[string]int
	byContentID map[string]int
	logger      *logrus.Logger
}

func NewFileProvider(path string, logger *logrus.Logger) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	validator, err := validation.NewCatalogValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateCatalog(data); err != nil {
		return nil, err
	}

	var records []episodeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode catalog file: %w", err)
	}

	p := &FileProvider{
		episodes:    make([]models.Episode, 0, len(records)),
		byID:        make(map[string]int, len(records)),
		byContentID: make(map[string]int),
		logger:      logger,
	}

	for _, rec := range records {
		p.episodes = append(p.episodes, p.convert(rec))
	}

	// Newest first; episodes without a usable timestamp sink to the end.
	sort.SliceStable(p.episodes, func(i, j int) bool {
		a, b := p.episodes[i].PublishedAt, p.episodes[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	for i, ep := range p.episodes {
		p.byID[ep.ID] = i
		if ep.ContentID != "" {
			p.byContentID[ep.ContentID] = i
		}
	}

	logger.WithFields(logrus.Fields{
		"path":     path,
		"episodes": len(p.episodes),
	}).Info("Episode catalog loaded")

	return p, nil
}

func (p *FileProvider) convert(rec episodeRecord) models.Episode {
	ep := models.Episode{
		ID:         rec.ID,
		ContentID:  rec.ContentID,
		Title:      rec.Title,
		KeyInsight: rec.KeyInsight,
		Series:     models.Series{ID: rec.Series.ID, Name: rec.Series.Name},
		Categories: models.Categories{
			Major:         rec.Categories.Major,
			Subcategories: rec.Categories.Subcategories,
		},
	}

	// Missing or null scores read as 0.
	if rec.Scores.Credibility != nil {
		ep.Scores.Credibility = *rec.Scores.Credibility
	}
	if rec.Scores.Insight != nil {
		ep.Scores.Insight = *rec.Scores.Insight
	}
	if rec.Scores.Information != nil {
		ep.Scores.Information = *rec.Scores.Information
	}
	if rec.Scores.Entertainment != nil {
		ep.Scores.Entertainment = *rec.Scores.Entertainment
	}

	if rec.PublishedAt != "" {
		ts, err := time.Parse(time.RFC3339, rec.PublishedAt)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"episode_id":   rec.ID,
				"published_at": rec.PublishedAt,
				"reason":       "unparseable timestamp",
			}).Warn("Episode treated as maximally old")
		} else {
			utc := ts.UTC()
			ep.PublishedAt = &utc
		}
	}

	return ep
}

func (p *FileProvider) GetEpisodes(ctx context.Context, q Query) ([]models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(q.EpisodeIDs) > 0 {
		out := make([]models.Episode, 0, len(q.EpisodeIDs))
		seen := make(map[int]struct{}, len(q.EpisodeIDs))
		for _, id := range q.EpisodeIDs {
			idx, ok := p.byID[id]
			if !ok {
				idx, ok = p.byContentID[id]
			}
			if !ok {
				continue
			}
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, p.episodes[idx])
		}
		return out, nil
	}

	var out []models.Episode
	skipped := 0
	for _, ep := range p.episodes {
		if q.Since != nil && (ep.PublishedAt == nil || ep.PublishedAt.Before(*q.Since)) {
			continue
		}
		if q.Until != nil && ep.PublishedAt != nil && ep.PublishedAt.After(*q.Until) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, ep)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (p *FileProvider) GetEpisode(ctx context.Context, idOrContentID string) (models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return models.Episode{}, err
	}

	if idx, ok := p.byID[idOrContentID]; ok {
		return p.episodes[idx], nil
	}
	if idx, ok := p.byContentID[idOrContentID]; ok {
		return p.episodes[idx], nil
	}
	return models.Episode{}, models.ErrEpisodeNotFound
}

func (p *FileProvider) EpisodesByContentID(ctx context.Context) (map[string]models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]models.Episode, len(p.byContentID))
	for contentID, idx := range p.byContentID {
		out[contentID] = p.episodes[idx]
	}
	return out, nil
}
