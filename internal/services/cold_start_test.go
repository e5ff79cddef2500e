package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

func categoryEpisode(id, category string, final float64) models.ScoredEpisode {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	ep := makeEpisode(id, 3, 3, now, withCategories(category))
	return models.ScoredEpisode{Episode: ep, Final: final}
}

func TestColdStartDiversifier_MinPerCategory(t *testing.T) {
	d := NewColdStartDiversifier(config.ColdStartConfig{
		Enabled:        true,
		Categories:     []string{"tech", "science", "business"},
		MinPerCategory: 2,
		TopN:           10,
	})

	var ranked []models.ScoredEpisode
	// Business episodes rank far below a wall of tech episodes.
	for i := 0; i < 8; i++ {
		ranked = append(ranked, categoryEpisode(idf("tech", i), "tech", 0.9-float64(i)*0.01))
	}
	for i := 0; i < 3; i++ {
		ranked = append(ranked, categoryEpisode(idf("science", i), "science", 0.5-float64(i)*0.01))
	}
	for i := 0; i < 3; i++ {
		ranked = append(ranked, categoryEpisode(idf("business", i), "business", 0.3-float64(i)*0.01))
	}

	out := d.Apply(ranked)
	require.Len(t, out, len(ranked))

	counts := map[string]int{}
	for _, se := range out[:10] {
		counts[se.Episode.Categories.PrimaryCategory()]++
	}
	assert.GreaterOrEqual(t, counts["tech"], 2)
	assert.GreaterOrEqual(t, counts["science"], 2)
	assert.GreaterOrEqual(t, counts["business"], 2)

	// Within the reshaped head, order is by final score again.
	for i := 1; i < 10; i++ {
		assert.GreaterOrEqual(t, out[i-1].Final, out[i].Final)
	}
}

func TestColdStartDiversifier_FillsFromBestWhenBucketsRunDry(t *testing.T) {
	d := NewColdStartDiversifier(config.ColdStartConfig{
		Enabled:        true,
		Categories:     []string{"tech", "history"},
		MinPerCategory: 2,
		TopN:           6,
	})

	ranked := []models.ScoredEpisode{
		categoryEpisode("tech-0", "tech", 0.9),
		categoryEpisode("other-0", "sports", 0.8),
		categoryEpisode("other-1", "sports", 0.7),
		categoryEpisode("tech-1", "tech", 0.6),
		categoryEpisode("other-2", "sports", 0.5),
		categoryEpisode("other-3", "sports", 0.4),
	}

	// No history episodes exist; the slot fills from the rest by score.
	out := d.Apply(ranked)
	require.Len(t, out, 6)

	ids := make([]string, 6)
	for i, se := range out {
		ids[i] = se.Episode.ID
	}
	assert.ElementsMatch(t, []string{"tech-0", "tech-1", "other-0", "other-1", "other-2", "other-3"}, ids)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Final, out[i].Final)
	}
}

func TestColdStartDiversifier_DisabledIsIdentity(t *testing.T) {
	d := NewColdStartDiversifier(config.ColdStartConfig{Enabled: false})

	ranked := []models.ScoredEpisode{
		categoryEpisode("a", "tech", 0.9),
		categoryEpisode("b", "science", 0.8),
	}

	assert.Equal(t, ranked, d.Apply(ranked))
}

func TestColdStartDiversifier_TailKeepsRankedOrder(t *testing.T) {
	d := NewColdStartDiversifier(config.ColdStartConfig{
		Enabled:        true,
		Categories:     []string{"tech"},
		MinPerCategory: 1,
		TopN:           2,
	})

	ranked := []models.ScoredEpisode{
		categoryEpisode("sports-0", "sports", 0.9),
		categoryEpisode("sports-1", "sports", 0.8),
		categoryEpisode("tech-0", "tech", 0.7),
		categoryEpisode("sports-2", "sports", 0.6),
		categoryEpisode("sports-3", "sports", 0.5),
	}

	out := d.Apply(ranked)
	require.Len(t, out, 5)

	// Head: tech-0 guaranteed, filled with sports-0, re-sorted by score.
	assert.Equal(t, "sports-0", out[0].Episode.ID)
	assert.Equal(t, "tech-0", out[1].Episode.ID)
	// Tail unchanged.
	assert.Equal(t, "sports-1", out[2].Episode.ID)
	assert.Equal(t, "sports-2", out[3].Episode.ID)
	assert.Equal(t, "sports-3", out[4].Episode.ID)
}

func idf(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}
