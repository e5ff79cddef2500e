package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultMaxExcludedPushdown caps how many exclusion ids are sent to
	// Qdrant in one filter; the remainder is post-filtered client side.
	defaultMaxExcludedPushdown = 10000

	// defaultFetchBatchSize and defaultFetchWorkers bound the FetchVectors
	// fan-out.
	defaultFetchBatchSize = 100
	defaultFetchWorkers   = 8
)

// pointIDSpace seeds deterministic point ids so the same episode id always
// maps to the same Qdrant point across restarts.
var pointIDSpace = uuid.MustParse("8f2f6f3e-35da-4c24-9d54-7ab1f1a1c9ee")

// QdrantConfig holds the connection settings for a Qdrant deployment.
// Zero tuning values fall back to the package defaults.
type QdrantConfig struct {
	URL    string
	APIKey string
	Dims   uint64

	MaxExcludedPushdown int
	FetchBatchSize      int
	FetchWorkers        int
}

// QdrantStore implements Store backed by a Qdrant collection. Each
// namespace triple gets its own collection; nothing ever migrates between
// collections.
type QdrantStore struct {
	client       *qdrant.Client
	collection   string
	dims         uint64
	maxExcluded  int
	fetchBatch   int
	fetchWorkers int
	logger       *logrus.Logger
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// The REST port 6333 is rewritten to the gRPC port 6334.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port in qdrant URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

func NewQdrantStore(cfg QdrantConfig, ns Namespace, logger *logrus.Logger) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", host, port, err)
	}

	s := &QdrantStore{
		client:       client,
		collection:   "episodes-" + ns.String(),
		dims:         cfg.Dims,
		maxExcluded:  cfg.MaxExcludedPushdown,
		fetchBatch:   cfg.FetchBatchSize,
		fetchWorkers: cfg.FetchWorkers,
		logger:       logger,
	}
	if s.maxExcluded <= 0 {
		s.maxExcluded = defaultMaxExcludedPushdown
	}
	if s.fetchBatch <= 0 {
		s.fetchBatch = defaultFetchBatchSize
	}
	if s.fetchWorkers <= 0 {
		s.fetchWorkers = defaultFetchWorkers
	}
	return s, nil
}

func pointID(episodeID string) string {
	return uuid.NewSHA1(pointIDSpace, []byte(episodeID)).String()
}

// EnsureReady creates the namespace collection if missing and backfills
// payload indexes. CreateFieldIndex is idempotent on Qdrant, so indexes are
// always attempted.
func (s *QdrantStore) EnsureReady(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection %q: %w", s.collection, err)
		}
		s.logger.WithFields(logrus.Fields{
			"collection": s.collection,
			"dims":       s.dims,
		}).Info("Created vector collection")
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range []string{"episode_id", "content_id", "series_id"} {
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      &keywordType,
		}); err != nil {
			return fmt.Errorf("failed to ensure index on %q: %w", field, err)
		}
	}

	integerType := qdrant.FieldType_FieldTypeInteger
	for _, field := range []string{"credibility", "combined", "published_unix"} {
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      &integerType,
		}); err != nil {
			return fmt.Errorf("failed to ensure index on %q: %w", field, err)
		}
	}

	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := map[string]any{
			"episode_id":     p.EpisodeID,
			"credibility":    int64(p.Credibility),
			"combined":       int64(p.Credibility + p.Insight),
			"published_unix": p.PublishedUnix,
		}
		if p.ContentID != "" {
			payload["content_id"] = p.ContentID
		}
		if p.SeriesID != "" {
			payload["series_id"] = p.SeriesID
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(p.EpisodeID)),
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, vector []float32, filter QueryFilter, topK int) ([]QueryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	var must []*qdrant.Condition
	if filter.CredibilityFloor > 0 {
		must = append(must, qdrant.NewRange("credibility", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(filter.CredibilityFloor)),
		}))
	}
	if filter.CombinedFloor > 0 {
		must = append(must, qdrant.NewRange("combined", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(filter.CombinedFloor)),
		}))
	}
	if filter.PublishedAfter > 0 {
		must = append(must, qdrant.NewRange("published_unix", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(filter.PublishedAfter)),
		}))
	}

	// Exclusions are pushed down up to the cap; the overflow is filtered
	// here after the query returns.
	excluded := filter.ExcludedIDs
	var overflow map[string]struct{}
	if len(excluded) > s.maxExcluded {
		overflow = make(map[string]struct{}, len(excluded)-s.maxExcluded)
		for _, id := range excluded[s.maxExcluded:] {
			overflow[id] = struct{}{}
		}
		excluded = excluded[:s.maxExcluded]
	}

	var mustNot []*qdrant.Condition
	if len(excluded) > 0 {
		ids := make([]*qdrant.PointId, len(excluded))
		for i, id := range excluded {
			ids[i] = qdrant.NewID(pointID(id))
		}
		mustNot = append(mustNot, qdrant.NewHasID(ids...))
	}

	var qf *qdrant.Filter
	if len(must) > 0 || len(mustNot) > 0 {
		qf = &qdrant.Filter{Must: must, MustNot: mustNot}
	}

	// Over-fetch to absorb overflow removal.
	fetchLimit := uint64(topK + len(overflow))
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		Filter:         qf,
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayloadInclude("episode_id", "content_id"),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	matches := make([]QueryMatch, 0, len(scored))
	for _, sp := range scored {
		episodeID := sp.Payload["episode_id"].GetStringValue()
		if episodeID == "" {
			s.logger.WithField("point_id", sp.Id.GetUuid()).Warn("Dropping point without episode_id payload")
			continue
		}
		if _, skip := overflow[episodeID]; skip {
			continue
		}
		matches = append(matches, QueryMatch{
			EpisodeID: episodeID,
			ContentID: sp.Payload["content_id"].GetStringValue(),
			Score:     float64(sp.Score),
		})
		if len(matches) == topK {
			break
		}
	}

	return matches, nil
}

// FetchVectors loads stored vectors in bounded parallel batches.
func (s *QdrantStore) FetchVectors(ctx context.Context, episodeIDs []string) (map[string][]float32, error) {
	if len(episodeIDs) == 0 {
		return map[string][]float32{}, nil
	}

	var batches [][]string
	for start := 0; start < len(episodeIDs); start += s.fetchBatch {
		end := start + s.fetchBatch
		if end > len(episodeIDs) {
			end = len(episodeIDs)
		}
		batches = append(batches, episodeIDs[start:end])
	}

	var mu sync.Mutex
	out := make(map[string][]float32, len(episodeIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchWorkers)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			ids := make([]*qdrant.PointId, len(batch))
			for i, id := range batch {
				ids[i] = qdrant.NewID(pointID(id))
			}

			points, err := s.client.Get(gctx, &qdrant.GetPoints{
				CollectionName: s.collection,
				Ids:            ids,
				WithVectors:    qdrant.NewWithVectors(true),
				WithPayload:    qdrant.NewWithPayloadInclude("episode_id"),
			})
			if err != nil {
				return fmt.Errorf("failed to fetch %d vectors: %w", len(batch), err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, p := range points {
				episodeID := p.Payload["episode_id"].GetStringValue()
				if episodeID == "" {
					continue
				}
				out[episodeID] = p.Vectors.GetVector().GetData()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

// Healthy reports whether Qdrant is reachable.
func (s *QdrantStore) Healthy(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant unhealthy: %w", err)
	}
	return nil
}

// Close shuts down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
