package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/pkg/models"
)

// Querier is the slice of pgx this provider needs; pgxpool.Pool and pgxmock
// both satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresProvider serves the episode catalog from a document-store style
// episodes table, paginating instead of holding the catalog in RAM.
type PostgresProvider struct {
	db     Querier
	logger *logrus.Logger
}

func NewPostgresProvider(db Querier, logger *logrus.Logger) *PostgresProvider {
	return &PostgresProvider{db: db, logger: logger}
}

const episodeColumns = `
	id, content_id, title, published_at,
	credibility, insight, information, entertainment,
	series_id, series_name, categories_major, categories_sub, key_insight`

func (p *PostgresProvider) GetEpisodes(ctx context.Context, q Query) ([]models.Episode, error) {
	if len(q.EpisodeIDs) > 0 {
		query := fmt.Sprintf(`
			SELECT %s FROM episodes
			WHERE id = ANY($1) OR content_id = ANY($1)`, episodeColumns)
		rows, err := p.db.Query(ctx, query, q.EpisodeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to query episodes by id: %w", err)
		}
		defer rows.Close()
		return p.scanEpisodes(rows)
	}

	query := fmt.Sprintf("SELECT %s FROM episodes", episodeColumns)
	var args []interface{}
	argIndex := 1
	where := ""

	appendCond := func(cond string, arg interface{}) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, argIndex)
		args = append(args, arg)
		argIndex++
	}

	if q.Since != nil {
		appendCond("published_at >= $%d", *q.Since)
	}
	if q.Until != nil {
		appendCond("published_at <= $%d", *q.Until)
	}

	query += where + " ORDER BY published_at DESC NULLS LAST"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()
	return p.scanEpisodes(rows)
}

func (p *PostgresProvider) GetEpisode(ctx context.Context, idOrContentID string) (models.Episode, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM episodes
		WHERE id = $1 OR content_id = $1
		LIMIT 1`, episodeColumns)

	row := p.db.QueryRow(ctx, query, idOrContentID)
	ep, err := scanEpisode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Episode{}, models.ErrEpisodeNotFound
		}
		return models.Episode{}, fmt.Errorf("failed to load episode: %w", err)
	}
	return ep, nil
}

func (p *PostgresProvider) EpisodesByContentID(ctx context.Context) (map[string]models.Episode, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM episodes
		WHERE content_id IS NOT NULL AND content_id <> ''`, episodeColumns)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes by content id: %w", err)
	}
	defer rows.Close()

	episodes, err := p.scanEpisodes(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.Episode, len(episodes))
	for _, ep := range episodes {
		out[ep.ContentID] = ep
	}
	return out, nil
}

func (p *PostgresProvider) scanEpisodes(rows pgx.Rows) ([]models.Episode, error) {
	var episodes []models.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			// Skip problematic rows; a single bad document must not fail
			// the whole catalog read.
			p.logger.WithError(err).Warn("Skipping unscannable episode row")
			continue
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("episode rows failed: %w", err)
	}
	return episodes, nil
}

func scanEpisode(row pgx.Row) (models.Episode, error) {
	var (
		ep          models.Episode
		contentID   *string
		publishedAt *time.Time
		credibility *int
		insight     *int
		information *int
		entertain   *int
		seriesID    *string
		seriesName  *string
		major       []string
		sub         []string
		keyInsight  *string
	)

	err := row.Scan(
		&ep.ID, &contentID, &ep.Title, &publishedAt,
		&credibility, &insight, &information, &entertain,
		&seriesID, &seriesName, &major, &sub, &keyInsight,
	)
	if err != nil {
		return models.Episode{}, err
	}

	if contentID != nil {
		ep.ContentID = *contentID
	}
	if publishedAt != nil {
		utc := publishedAt.UTC()
		ep.PublishedAt = &utc
	}
	if credibility != nil {
		ep.Scores.Credibility = *credibility
	}
	if insight != nil {
		ep.Scores.Insight = *insight
	}
	if information != nil {
		ep.Scores.Information = *information
	}
	if entertain != nil {
		ep.Scores.Entertainment = *entertain
	}
	if seriesID != nil {
		ep.Series.ID = *seriesID
	}
	if seriesName != nil {
		ep.Series.Name = *seriesName
	}
	ep.Categories.Major = major
	ep.Categories.Subcategories = sub
	if keyInsight != nil {
		ep.KeyInsight = *keyInsight
	}

	return ep, nil
}
