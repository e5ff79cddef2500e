package engagement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/earshot-fm/earshot/pkg/models"
)

// MemoryStore keeps engagement history in process memory. It backs local
// development and tests; production deployments use PostgresStore.
type MemoryStore struct {
	mu        sync.RWMutex
	byUser    map[string][]models.Engagement
	maxStored int
}

func NewMemoryStore(maxStored int) *MemoryStore {
	if maxStored <= 0 {
		maxStored = 500
	}
	return &MemoryStore{
		byUser:    make(map[string][]models.Engagement),
		maxStored: maxStored,
	}
}

func (s *MemoryStore) EngagementsForRanking(ctx context.Context, userID string, requestEngagements []models.Engagement) ([]models.Engagement, error) {
	if userID == "" {
		return requestEngagements, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byUser[userID]
	out := make([]models.Engagement, len(stored))
	copy(out, stored)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > s.maxStored {
		out = out[:s.maxStored]
	}
	return out, nil
}

func (s *MemoryStore) RecordEngagement(ctx context.Context, userID string, e models.Engagement) error {
	if userID == "" {
		return nil
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = append(s.byUser[userID], e)
	return nil
}

func (s *MemoryStore) DeleteEngagement(ctx context.Context, userID string, engagementID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.byUser[userID]
	for i, e := range stored {
		if e.ID == engagementID {
			s.byUser[userID] = append(stored[:i], stored[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DeleteAllEngagements(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
	return nil
}
