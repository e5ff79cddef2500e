package catalog

import (
	"context"
	"time"

	"github.com/earshot-fm/earshot/pkg/models"
)

// Query narrows a catalog read. Zero values mean "no constraint"; when
// EpisodeIDs is set the other fields are ignored and only those episodes
// are returned (order unspecified).
type Query struct {
	Limit      int
	Offset     int
	Since      *time.Time
	Until      *time.Time
	EpisodeIDs []string
}

// Provider is the read contract the ranking pipeline has on the episode
// catalog. Implementations return typed Episode records; any raw-document
// handling stays behind this boundary.
type Provider interface {
	// GetEpisodes returns episodes newest-first, honoring the query.
	GetEpisodes(ctx context.Context, q Query) ([]models.Episode, error)

	// GetEpisode resolves by id first, then by content id. Returns
	// models.ErrEpisodeNotFound when neither matches.
	GetEpisode(ctx context.Context, idOrContentID string) (models.Episode, error)

	// EpisodesByContentID returns a content_id -> episode map for episodes
	// that carry a content id.
	EpisodesByContentID(ctx context.Context) (map[string]models.Episode, error)
}
