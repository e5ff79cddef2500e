package services

import (
	"sort"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// ColdStartDiversifier reshapes the head of a ranked list for users whose
// only signal is a category anchor, guaranteeing a minimum presence for
// each target category before quality takes back over. It runs only in the
// anchor-only state and before series diversity.
type ColdStartDiversifier struct {
	cfg config.ColdStartConfig
}

func NewColdStartDiversifier(cfg config.ColdStartConfig) *ColdStartDiversifier {
	return &ColdStartDiversifier{cfg: cfg}
}

// Apply rebuilds the top-N slot: round-robin across the target categories
// draining each bucket in score order until every category contributed
// min_per_category or the slot fills, then fill from the rest by score.
// The selected head is re-sorted by final score among itself; the tail
// keeps its ranked order.
func (d *ColdStartDiversifier) Apply(ranked []models.ScoredEpisode) []models.ScoredEpisode {
	if !d.cfg.Enabled || len(d.cfg.Categories) == 0 || len(ranked) == 0 {
		return ranked
	}

	topN := d.cfg.TopN
	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}

	// Bucket target primaries, preserving ranked (score) order inside each
	// bucket. Everything else competes only in the fill phase.
	targets := make(map[string]bool, len(d.cfg.Categories))
	for _, c := range d.cfg.Categories {
		targets[c] = true
	}

	buckets := make(map[string][]models.ScoredEpisode)
	for _, se := range ranked {
		primary := se.Episode.Categories.PrimaryCategory()
		if targets[primary] {
			buckets[primary] = append(buckets[primary], se)
		}
	}

	selected := make([]models.ScoredEpisode, 0, topN)
	taken := make(map[string]struct{}, topN)

	take := func(se models.ScoredEpisode) {
		selected = append(selected, se)
		taken[se.Episode.ID] = struct{}{}
	}

	perCategory := make(map[string]int, len(d.cfg.Categories))
	for len(selected) < topN {
		progressed := false
		for _, cat := range d.cfg.Categories {
			if len(selected) == topN {
				break
			}
			if perCategory[cat] >= d.cfg.MinPerCategory {
				continue
			}
			bucket := buckets[cat]
			if len(bucket) == 0 {
				continue
			}
			take(bucket[0])
			buckets[cat] = bucket[1:]
			perCategory[cat]++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// Fill the remainder of the slot from everything not yet taken, best
	// score first. The ranked slice is already score ordered.
	for _, se := range ranked {
		if len(selected) == topN {
			break
		}
		if _, dup := taken[se.Episode.ID]; dup {
			continue
		}
		take(se)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Final > selected[j].Final
	})

	out := make([]models.ScoredEpisode, 0, len(ranked))
	out = append(out, selected...)
	for _, se := range ranked {
		if _, dup := taken[se.Episode.ID]; dup {
			continue
		}
		out = append(out, se)
	}
	return out
}
