package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// Session is one precomputed recommendation queue. The queue, debug
// snapshot, and CreatedAt never change after creation; pages and
// engagements only grow the tracking sets.
type Session struct {
	ID        string
	Queue     []models.ScoredEpisode
	ColdStart bool
	Debug     models.SessionDebug
	CreatedAt time.Time

	mu           sync.Mutex
	shownIndices map[int]struct{}
	engagedIDs   map[string]struct{}
	excludedIDs  map[string]struct{}
	lastAccess   time.Time
}

// NextPage emits up to limit unseen, unengaged queue entries and marks
// them shown. Concurrent calls on one session serialize on the session
// mutex; without it two callers could be handed the same slot.
func (s *Session) NextPage(limit int) []models.EpisodeCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	var cards []models.EpisodeCard
	for i, se := range s.Queue {
		if len(cards) == limit {
			break
		}
		if _, shown := s.shownIndices[i]; shown {
			continue
		}
		if s.isEngaged(se.Episode) {
			continue
		}
		s.shownIndices[i] = struct{}{}
		cards = append(cards, models.NewEpisodeCard(se, i+1))
	}
	return cards
}

// Engage marks an episode as touched. It joins both the engaged and
// excluded sets so it can never be re-emitted by a later page.
func (s *Session) Engage(episodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	s.engagedIDs[episodeID] = struct{}{}
	s.excludedIDs[episodeID] = struct{}{}
}

// EngagedCount returns how many distinct episodes were engaged.
func (s *Session) EngagedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engagedIDs)
}

// Counts reports (total, shown, remaining) under the session mutex.
func (s *Session) Counts() (total, shown, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total = len(s.Queue)
	shown = len(s.shownIndices)

	for i, se := range s.Queue {
		if _, wasShown := s.shownIndices[i]; wasShown {
			continue
		}
		if s.isEngaged(se.Episode) {
			continue
		}
		remaining++
	}
	return total, shown, remaining
}

// isEngaged must be called with the session mutex held.
func (s *Session) isEngaged(ep models.Episode) bool {
	if _, ok := s.engagedIDs[ep.ID]; ok {
		return true
	}
	if ep.ContentID != "" {
		if _, ok := s.engagedIDs[ep.ContentID]; ok {
			return true
		}
	}
	return false
}

// SessionManager owns the process-wide session table. The table is
// read-mostly: lookups take the read lock, create and evict take the write
// lock, and all per-session mutation happens under the session's own
// mutex.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      config.SessionConfig
	logger   *logrus.Logger
}

func NewSessionManager(cfg config.SessionConfig, logger *logrus.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   logger,
	}
}

// Create mints a session around a finished queue and registers it,
// evicting expired and oldest-idle sessions to stay under the cap.
func (m *SessionManager) Create(queue []models.ScoredEpisode, excludedIDs []string, coldStart bool, debug models.SessionDebug) *Session {
	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		Queue:        queue,
		ColdStart:    coldStart,
		Debug:        debug,
		CreatedAt:    now,
		shownIndices: make(map[int]struct{}),
		engagedIDs:   make(map[string]struct{}),
		excludedIDs:  make(map[string]struct{}, len(excludedIDs)),
		lastAccess:   now,
	}
	for _, id := range excludedIDs {
		session.excludedIDs[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked(now)
	m.sessions[session.ID] = session
	return session
}

// Get returns the session or models.ErrSessionNotFound. Expired sessions
// are indistinguishable from never-existing ones.
func (m *SessionManager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if m.cfg.TTL > 0 && time.Since(session.CreatedAt) > m.cfg.TTL {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// Len reports the current session count.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// evictLocked drops expired sessions, then oldest-idle sessions until one
// slot is free under the cap. Caller holds the write lock.
func (m *SessionManager) evictLocked(now time.Time) {
	if m.cfg.TTL > 0 {
		for id, s := range m.sessions {
			if now.Sub(s.CreatedAt) > m.cfg.TTL {
				delete(m.sessions, id)
			}
		}
	}

	if m.cfg.MaxSessions <= 0 {
		return
	}

	for len(m.sessions) >= m.cfg.MaxSessions {
		oldestID := ""
		var oldestAccess time.Time
		for id, s := range m.sessions {
			s.mu.Lock()
			access := s.lastAccess
			s.mu.Unlock()
			if oldestID == "" || access.Before(oldestAccess) {
				oldestID = id
				oldestAccess = access
			}
		}
		if oldestID == "" {
			return
		}
		delete(m.sessions, oldestID)
		m.logger.WithField("session_id", oldestID).Info("Evicted oldest idle session")
	}
}

// ExcludedSnapshot copies the session's exclusion set, used when a caller
// needs it outside the session mutex.
func (s *Session) ExcludedSnapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{}, len(s.excludedIDs))
	for id := range s.excludedIDs {
		out[id] = struct{}{}
	}
	return out
}
