package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/pkg/models"
)

// Querier is the slice of pgx this store needs; pgxpool.Pool and pgxmock
// both satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// cacheTTL bounds staleness of the per-user history cache. Writes
// invalidate eagerly; the TTL only covers invalidation misses.
const cacheTTL = 5 * time.Minute

// PostgresStore persists engagements in Postgres with a redis read-through
// cache in front of the ranking read path.
type PostgresStore struct {
	db        Querier
	cache     *redis.Client
	maxStored int
	logger    *logrus.Logger
}

func NewPostgresStore(db Querier, cache *redis.Client, maxStored int, logger *logrus.Logger) *PostgresStore {
	if maxStored <= 0 {
		maxStored = 500
	}
	return &PostgresStore{db: db, cache: cache, maxStored: maxStored, logger: logger}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("engagements:%s", userID)
}

func (s *PostgresStore) EngagementsForRanking(ctx context.Context, userID string, requestEngagements []models.Engagement) ([]models.Engagement, error) {
	if userID == "" {
		return requestEngagements, nil
	}

	if cached := s.readCache(ctx, userID); cached != nil {
		return cached, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, episode_id, type, episode_title, series_name, timestamp
		FROM engagements
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, userID, s.maxStored)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagements: %w", err)
	}
	defer rows.Close()

	var engagements []models.Engagement
	for rows.Next() {
		var e models.Engagement
		var title, series *string
		if err := rows.Scan(&e.ID, &e.EpisodeID, &e.Type, &title, &series, &e.Timestamp); err != nil {
			s.logger.WithError(err).Warn("Skipping unscannable engagement row")
			continue
		}
		if title != nil {
			e.EpisodeTitle = *title
		}
		if series != nil {
			e.SeriesName = *series
		}
		engagements = append(engagements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement rows failed: %w", err)
	}

	s.writeCache(ctx, userID, engagements)
	return engagements, nil
}

func (s *PostgresStore) RecordEngagement(ctx context.Context, userID string, e models.Engagement) error {
	if userID == "" {
		return nil
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO engagements (id, user_id, episode_id, type, episode_title, series_name, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, userID, e.EpisodeID, e.Type, e.EpisodeTitle, e.SeriesName, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record engagement: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *PostgresStore) DeleteEngagement(ctx context.Context, userID string, engagementID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM engagements WHERE id = $1 AND user_id = $2`, engagementID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete engagement: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteAllEngagements(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM engagements WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete engagements: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// Cache helpers. Cache failures are logged and ignored; Postgres stays the
// source of truth.

func (s *PostgresStore) readCache(ctx context.Context, userID string) []models.Engagement {
	if s.cache == nil {
		return nil
	}

	cached, err := s.cache.Get(ctx, cacheKey(userID)).Result()
	if err != nil {
		return nil
	}

	var engagements []models.Engagement
	if err := json.Unmarshal([]byte(cached), &engagements); err != nil {
		s.logger.WithError(err).Warn("Discarding corrupt engagement cache entry")
		s.invalidateCache(ctx, userID)
		return nil
	}
	return engagements
}

func (s *PostgresStore) writeCache(ctx context.Context, userID string, engagements []models.Engagement) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(engagements)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(userID), data, cacheTTL).Err(); err != nil {
		s.logger.WithError(err).Debug("Failed to cache engagements")
	}
}

func (s *PostgresStore) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(userID)).Err(); err != nil {
		s.logger.WithError(err).Debug("Failed to invalidate engagement cache")
	}
}
