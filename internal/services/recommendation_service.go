package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/catalog"
	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/internal/engagement"
	"github.com/earshot-fm/earshot/internal/messaging"
	"github.com/earshot-fm/earshot/internal/vectorstore"
	"github.com/earshot-fm/earshot/pkg/models"
)

// Query paths reported in the session debug payload.
const (
	queryPathANN      = "ann"
	queryPathInMemory = "in_memory"
)

// Recommender is the surface the HTTP layer binds to.
type Recommender interface {
	CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.SessionResponse, error)
	LoadMore(ctx context.Context, req models.LoadMoreRequest) (*models.PageResponse, error)
	Engage(ctx context.Context, req models.EngageRequest) (*models.EngageResponse, error)
}

// RecommendationService orchestrates one request through retrieval,
// scoring, diversity selection, and session creation. The pipeline inside
// one request is sequential; parallelism lives across requests and inside
// the vector store's batched fetches.
type RecommendationService struct {
	provider    catalog.Provider
	engagements engagement.Store
	vectors     vectorstore.Store
	publisher   messaging.EventPublisher

	retriever   *CandidateRetriever
	userVectors *UserVectorBuilder
	ranker      *BlendedRanker
	coldStart   *ColdStartDiversifier
	diversity   *SeriesDiversitySelector
	sessions    *SessionManager
	metrics     *Metrics

	cfg    *config.Config
	logger *logrus.Logger
}

func NewRecommendationService(
	provider catalog.Provider,
	engagements engagement.Store,
	vectors vectorstore.Store,
	publisher messaging.EventPublisher,
	sessions *SessionManager,
	metrics *Metrics,
	cfg *config.Config,
	logger *logrus.Logger,
) *RecommendationService {
	similarity := NewSimilarityResolver(logger, metrics)
	return &RecommendationService{
		provider:    provider,
		engagements: engagements,
		vectors:     vectors,
		publisher:   publisher,
		retriever:   NewCandidateRetriever(provider, cfg.Recommendation, logger, metrics),
		userVectors: NewUserVectorBuilder(cfg.Recommendation.StageB, logger),
		ranker:      NewBlendedRanker(cfg.Recommendation.StageB, similarity, logger),
		coldStart:   NewColdStartDiversifier(cfg.Recommendation.ColdStart),
		diversity:   NewSeriesDiversitySelector(cfg.Recommendation.Diversity),
		sessions:    sessions,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateSession runs the full pipeline and returns the session's first
// page. Cancelling ctx before ranking completes persists nothing.
func (s *RecommendationService) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.SessionResponse, error) {
	started := time.Now()
	now := started.UTC()

	engagements, err := s.loadEngagements(ctx, req)
	if err != nil {
		return nil, err
	}

	// Engaged episodes are permanently excluded from the session.
	excluded := make(map[string]struct{}, len(req.ExcludedIDs)+len(engagements))
	excludedList := make([]string, 0, len(req.ExcludedIDs)+len(engagements))
	addExcluded := func(id string) {
		if id == "" {
			return
		}
		if _, dup := excluded[id]; dup {
			return
		}
		excluded[id] = struct{}{}
		excludedList = append(excludedList, id)
	}
	for _, id := range req.ExcludedIDs {
		addExcluded(id)
	}
	for _, e := range engagements {
		addExcluded(e.EpisodeID)
	}

	engagementEmbeddings, err := s.engagementEmbeddings(ctx, engagements)
	if err != nil {
		return nil, err
	}

	userVector := s.userVectors.Build(engagements, engagementEmbeddings, req.CategoryAnchorVector)

	candidates, similarityByID, queryPath, windowDays, err := s.retrieveCandidates(ctx, userVector, excluded, excludedList, now)
	if err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(candidates, similarityByID, userVector.Vector, engagementEmbeddings, now)

	if userVector.AnchorOnly {
		ranked = s.coldStart.Apply(ranked)
	}
	queue := s.diversity.Select(ranked)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coldStart := userVector.EpisodeCount == 0
	session := s.sessions.Create(queue, excludedList, coldStart, models.SessionDebug{
		UserVectorEpisodeCount: userVector.EpisodeCount,
		CandidatePoolSize:      len(candidates),
		QueryPath:              queryPath,
		FreshnessWindowDays:    windowDays,
	})

	limit := s.pageLimit(req.Limit)
	cards := session.NextPage(limit)
	total, shown, remaining := session.Counts()

	if s.metrics != nil {
		s.metrics.SessionCreated(coldStart)
		s.metrics.PageServed()
		s.metrics.SetActiveSessions(s.sessions.Len())
		s.metrics.ObserveRankingDuration(time.Since(started).Seconds())
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":     session.ID,
		"queue_size":     total,
		"cold_start":     coldStart,
		"query_path":     queryPath,
		"user_vector_n":  userVector.EpisodeCount,
		"candidate_pool": len(candidates),
	}).Info("Session created")

	return &models.SessionResponse{
		SessionID:      session.ID,
		Episodes:       cards,
		TotalInQueue:   total,
		ShownCount:     shown,
		RemainingCount: remaining,
		ColdStart:      coldStart,
		Debug:          session.Debug,
	}, nil
}

// LoadMore reveals the next deterministic slice of the persisted queue.
func (s *RecommendationService) LoadMore(ctx context.Context, req models.LoadMoreRequest) (*models.PageResponse, error) {
	session, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	cards := session.NextPage(s.pageLimit(req.Limit))
	total, shown, remaining := session.Counts()

	if s.metrics != nil {
		s.metrics.PageServed()
	}

	return &models.PageResponse{
		SessionID:      session.ID,
		Episodes:       cards,
		TotalInQueue:   total,
		ShownCount:     shown,
		RemainingCount: remaining,
	}, nil
}

// Engage marks the episode as touched on the session, persists the
// engagement for known users, and emits an event. Broker failures are
// logged, never surfaced.
func (s *RecommendationService) Engage(ctx context.Context, req models.EngageRequest) (*models.EngageResponse, error) {
	session, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	session.Engage(req.EpisodeID)

	e := models.Engagement{
		EpisodeID:    req.EpisodeID,
		Type:         req.Type,
		Timestamp:    time.Now().UTC(),
		EpisodeTitle: req.EpisodeTitle,
		SeriesName:   req.SeriesName,
	}
	if err := s.engagements.RecordEngagement(ctx, req.UserID, e); err != nil {
		return nil, fmt.Errorf("failed to persist engagement: %w", err)
	}

	if req.UserID != "" && s.publisher != nil {
		event := models.EngagementEvent{
			UserID:       req.UserID,
			EpisodeID:    req.EpisodeID,
			Type:         req.Type,
			EpisodeTitle: req.EpisodeTitle,
			SeriesName:   req.SeriesName,
			Timestamp:    e.Timestamp,
		}
		if err := s.publisher.PublishEngagement(ctx, event); err != nil {
			s.logger.WithError(err).WithField("episode_id", req.EpisodeID).
				Warn("Failed to publish engagement event")
		}
	}

	if s.metrics != nil {
		s.metrics.EngagementRecorded(req.Type)
	}

	return &models.EngageResponse{EngagedCount: session.EngagedCount()}, nil
}

func (s *RecommendationService) loadEngagements(ctx context.Context, req models.CreateSessionRequest) ([]models.Engagement, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.EngagementRead)
	defer cancel()

	engagements, err := s.engagements.EngagementsForRanking(readCtx, req.UserID, req.Engagements)
	if err != nil {
		return nil, fmt.Errorf("failed to load engagement history: %w", err)
	}
	return engagements, nil
}

// engagementEmbeddings resolves each engaged episode to its stored vector.
// Engagements referencing an episode by content_id are resolved through
// the catalog first; the returned map is keyed by the id the engagement
// used, which is what the user-vector builder looks up.
func (s *RecommendationService) engagementEmbeddings(ctx context.Context, engagements []models.Engagement) (map[string][]float32, error) {
	if len(engagements) == 0 || s.vectors == nil {
		return map[string][]float32{}, nil
	}

	resolved := make(map[string]string, len(engagements)) // engagement id -> episode id
	fetchIDs := make([]string, 0, len(engagements))
	seen := make(map[string]struct{}, len(engagements))

	for _, e := range engagements {
		ep, err := s.provider.GetEpisode(ctx, e.EpisodeID)
		if err != nil {
			if errors.Is(err, models.ErrEpisodeNotFound) {
				s.logger.WithFields(logrus.Fields{
					"episode_id": e.EpisodeID,
					"reason":     "not in catalog",
				}).Debug("Engagement skipped for user vector")
				continue
			}
			return nil, fmt.Errorf("failed to resolve engaged episode: %w", err)
		}
		resolved[e.EpisodeID] = ep.ID
		if _, dup := seen[ep.ID]; !dup {
			seen[ep.ID] = struct{}{}
			fetchIDs = append(fetchIDs, ep.ID)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.VectorQuery)
	defer cancel()

	vectors, err := s.vectors.FetchVectors(fetchCtx, fetchIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch engagement embeddings: %w", err)
	}

	out := make(map[string][]float32, len(resolved))
	for engagementID, episodeID := range resolved {
		if vec, ok := vectors[episodeID]; ok {
			out[engagementID] = vec
		}
	}
	return out, nil
}

// retrieveCandidates picks the execution path: one filtered ANN query when
// a query vector and a vector store both exist, otherwise an in-memory
// catalog scan with neutral or cosine similarity downstream.
func (s *RecommendationService) retrieveCandidates(
	ctx context.Context,
	userVector UserVector,
	excluded map[string]struct{},
	excludedList []string,
	now time.Time,
) (candidates []models.Episode, similarityByID map[string]float64, queryPath string, windowDays int, err error) {
	if s.vectors == nil || len(userVector.Vector) == 0 {
		pool, err := s.retriever.Retrieve(ctx, excluded, now)
		if err != nil {
			return nil, nil, "", 0, err
		}
		return pool.Episodes, nil, queryPathInMemory, pool.FreshnessWindowDays, nil
	}

	stageA := s.cfg.Recommendation.StageA
	window := stageA.FreshnessWindowDays

	matches, err := s.queryVectors(ctx, userVector.Vector, excludedList, window, now)
	if err != nil {
		return nil, nil, "", 0, err
	}

	for _, next := range freshnessLadder {
		if next <= window {
			continue
		}
		if len(matches) >= stageA.CandidatePoolSize/2 {
			break
		}
		s.logger.WithFields(logrus.Fields{
			"matched":     len(matches),
			"window_days": window,
			"widened_to":  next,
		}).Info("Widening freshness window")
		if s.metrics != nil {
			s.metrics.FreshnessWidened()
		}
		window = next
		matches, err = s.queryVectors(ctx, userVector.Vector, excludedList, window, now)
		if err != nil {
			return nil, nil, "", 0, err
		}
	}

	similarityByID = make(map[string]float64, len(matches))
	matchIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		similarityByID[m.EpisodeID] = m.Score
		if m.ContentID != "" {
			similarityByID[m.ContentID] = m.Score
		}
		matchIDs = append(matchIDs, m.EpisodeID)
	}

	if len(matchIDs) == 0 {
		return nil, similarityByID, queryPathANN, window, nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.ProviderBatch)
	defer cancel()

	episodes, err := s.provider.GetEpisodes(batchCtx, catalog.Query{EpisodeIDs: matchIDs})
	if err != nil {
		return nil, nil, "", 0, fmt.Errorf("failed to load candidate episodes: %w", err)
	}

	// The pushdown filter matches on point ids derived from episode ids;
	// exclusions expressed as content ids are only enforceable here.
	kept := make([]models.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if _, skip := excluded[ep.ID]; skip {
			continue
		}
		if ep.ContentID != "" {
			if _, skip := excluded[ep.ContentID]; skip {
				continue
			}
		}
		kept = append(kept, ep)
	}

	// The ANN filter already enforced the gates; what remains is the pool
	// cap, by Stage A's quality order.
	pool := CandidatePool{Episodes: kept, FreshnessWindowDays: window}
	if len(pool.Episodes) > stageA.CandidatePoolSize {
		pool.Episodes = s.topByQuality(pool.Episodes, stageA.CandidatePoolSize)
	}

	return pool.Episodes, similarityByID, queryPathANN, window, nil
}

func (s *RecommendationService) queryVectors(ctx context.Context, vector []float32, excludedList []string, windowDays int, now time.Time) ([]vectorstore.QueryMatch, error) {
	stageA := s.cfg.Recommendation.StageA

	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.VectorQuery)
	defer cancel()

	matches, err := s.vectors.Query(queryCtx, vector, vectorstore.QueryFilter{
		CredibilityFloor: stageA.CredibilityFloor,
		CombinedFloor:    stageA.CombinedFloor,
		PublishedAfter:   now.AddDate(0, 0, -windowDays).Unix(),
		ExcludedIDs:      excludedList,
	}, s.cfg.Recommendation.QueryTopK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	return matches, nil
}

func (s *RecommendationService) topByQuality(episodes []models.Episode, n int) []models.Episode {
	sorted := make([]models.Episode, len(episodes))
	copy(sorted, episodes)
	sortByQuality(sorted, s.cfg.Recommendation.StageB.CredibilityMultiplier)
	return sorted[:n]
}

func (s *RecommendationService) pageLimit(requested int) int {
	if requested <= 0 {
		return s.cfg.Session.FirstPageSize
	}
	if requested > s.cfg.Session.MaxPageSize {
		return s.cfg.Session.MaxPageSize
	}
	return requested
}
