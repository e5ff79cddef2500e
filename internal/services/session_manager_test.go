package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{
		TTL:           24 * time.Hour,
		MaxSessions:   10000,
		FirstPageSize: 10,
		MaxPageSize:   20,
	}
}

func queueOf(n int) []models.ScoredEpisode {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	queue := make([]models.ScoredEpisode, n)
	for i := range queue {
		queue[i] = models.ScoredEpisode{
			Episode: makeEpisode(fmt.Sprintf("ep-%d", i), 3, 3, now),
			Final:   1.0 - float64(i)*0.01,
		}
	}
	return queue
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	m := NewSessionManager(sessionConfig(), logrus.New())

	session := m.Create(queueOf(5), []string{"ep-x"}, true, models.SessionDebug{QueryPath: "in_memory"})
	require.NotEmpty(t, session.ID)

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSession_PaginationNeverRepeats(t *testing.T) {
	m := NewSessionManager(sessionConfig(), logrus.New())
	session := m.Create(queueOf(25), nil, false, models.SessionDebug{})

	first := session.NextPage(10)
	second := session.NextPage(10)
	third := session.NextPage(10)

	assert.Len(t, first, 10)
	assert.Len(t, second, 10)
	assert.Len(t, third, 5)

	seen := map[string]struct{}{}
	for _, page := range [][]models.EpisodeCard{first, second, third} {
		for _, card := range page {
			_, dup := seen[card.ID]
			assert.False(t, dup, "episode %s emitted twice", card.ID)
			seen[card.ID] = struct{}{}
		}
	}

	// Positions are 1-based queue indices and strictly increase.
	assert.Equal(t, 1, first[0].QueuePosition)
	assert.Equal(t, 11, second[0].QueuePosition)

	// Exhausted queue yields empty pages.
	assert.Empty(t, session.NextPage(10))
}

func TestSession_EngageExcludesFromLaterPages(t *testing.T) {
	m := NewSessionManager(sessionConfig(), logrus.New())
	session := m.Create(queueOf(20), nil, false, models.SessionDebug{})

	session.NextPage(10)

	// ep-14 sits at position 15, not yet shown.
	session.Engage("ep-14")

	second := session.NextPage(10)
	for _, card := range second {
		assert.NotEqual(t, "ep-14", card.ID)
	}
	assert.Len(t, second, 9)
	assert.Equal(t, 1, session.EngagedCount())
}

func TestSession_CountsTrackProgress(t *testing.T) {
	m := NewSessionManager(sessionConfig(), logrus.New())
	session := m.Create(queueOf(12), nil, false, models.SessionDebug{})

	total, shown, remaining := session.Counts()
	assert.Equal(t, 12, total)
	assert.Equal(t, 0, shown)
	assert.Equal(t, 12, remaining)

	session.NextPage(10)
	total, shown, remaining = session.Counts()
	assert.Equal(t, 12, total)
	assert.Equal(t, 10, shown)
	assert.Equal(t, 2, remaining)
}

func TestSession_ConcurrentPagesDoNotOverlap(t *testing.T) {
	m := NewSessionManager(sessionConfig(), logrus.New())
	session := m.Create(queueOf(100), nil, false, models.SessionDebug{})

	const workers = 10
	pages := make([][]models.EpisodeCard, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			pages[w] = session.NextPage(10)
		}(w)
	}
	wg.Wait()

	seen := map[string]int{}
	emitted := 0
	for _, page := range pages {
		for _, card := range page {
			seen[card.ID]++
			emitted++
		}
	}
	assert.Equal(t, 100, emitted)
	for id, count := range seen {
		assert.Equal(t, 1, count, "episode %s emitted %d times", id, count)
	}
}

func TestSessionManager_TTLExpiry(t *testing.T) {
	cfg := sessionConfig()
	cfg.TTL = time.Nanosecond
	m := NewSessionManager(cfg, logrus.New())

	session := m.Create(queueOf(3), nil, false, models.SessionDebug{})
	time.Sleep(time.Millisecond)

	_, err := m.Get(session.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSessionManager_CapEvictsOldestIdle(t *testing.T) {
	cfg := sessionConfig()
	cfg.MaxSessions = 3
	m := NewSessionManager(cfg, logrus.New())

	first := m.Create(queueOf(1), nil, false, models.SessionDebug{})
	second := m.Create(queueOf(1), nil, false, models.SessionDebug{})
	third := m.Create(queueOf(1), nil, false, models.SessionDebug{})

	// Touch the first session so the second becomes the oldest idle.
	time.Sleep(time.Millisecond)
	first.NextPage(1)

	fourth := m.Create(queueOf(1), nil, false, models.SessionDebug{})

	assert.Equal(t, 3, m.Len())
	_, err := m.Get(second.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	for _, s := range []*Session{first, third, fourth} {
		_, err := m.Get(s.ID)
		assert.NoError(t, err)
	}
}
