package vectorstore

import (
	"context"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// MemoryStore is an exact-scan vector index held in process memory. It
// applies the same filter semantics as the Qdrant-backed store and exists
// for single-node deployments and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]memoryPoint
}

type memoryPoint struct {
	Point
	vector64 []float64
	norm     float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]memoryPoint)}
}

func (s *MemoryStore) EnsureReady(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		v64 := toFloat64(p.Vector)
		s.points[p.EpisodeID] = memoryPoint{
			Point:    p,
			vector64: v64,
			norm:     floats.Norm(v64, 2),
		}
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, filter QueryFilter, topK int) ([]QueryMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	query64 := toFloat64(vector)
	queryNorm := floats.Norm(query64, 2)
	if queryNorm == 0 {
		return nil, nil
	}

	excluded := make(map[string]struct{}, len(filter.ExcludedIDs))
	for _, id := range filter.ExcludedIDs {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	matches := make([]QueryMatch, 0, len(s.points))
	for id, p := range s.points {
		if _, skip := excluded[id]; skip {
			continue
		}
		if p.Credibility < filter.CredibilityFloor {
			continue
		}
		if p.Credibility+p.Insight < filter.CombinedFloor {
			continue
		}
		if filter.PublishedAfter > 0 && p.PublishedUnix < filter.PublishedAfter {
			continue
		}
		if len(p.vector64) != len(query64) || p.norm == 0 {
			continue
		}
		matches = append(matches, QueryMatch{
			EpisodeID: id,
			ContentID: p.ContentID,
			Score:     floats.Dot(query64, p.vector64) / (queryNorm * p.norm),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) FetchVectors(ctx context.Context, episodeIDs []string) (map[string][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]float32, len(episodeIDs))
	for _, id := range episodeIDs {
		p, ok := s.points[id]
		if !ok {
			continue
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		out[id] = vec
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
