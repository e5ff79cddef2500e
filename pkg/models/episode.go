package models

import (
	"time"
)

// Episode is the typed catalog record the pipeline operates on. Providers
// convert their raw representation (JSON document, database row) into this
// struct at the boundary; nothing downstream handles raw maps.
type Episode struct {
	ID          string     `json:"id"`
	ContentID   string     `json:"content_id,omitempty"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Scores      Scores     `json:"scores"`
	Series      Series     `json:"series"`
	Categories  Categories `json:"categories"`
	KeyInsight  string     `json:"key_insight,omitempty"`
}

// Scores holds the editorial quality dimensions, each on a 0-4 scale.
// A missing credibility in the source document maps to 0.
type Scores struct {
	Credibility   int `json:"credibility"`
	Insight       int `json:"insight"`
	Information   int `json:"information"`
	Entertainment int `json:"entertainment"`
}

type Series struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Categories groups an episode's taxonomy. Major[0], when present, is the
// primary category used by cold-start diversity.
type Categories struct {
	Major         []string `json:"major,omitempty"`
	Subcategories []string `json:"subcategories,omitempty"`
}

// PrimaryCategory returns Major[0] or the empty string.
func (c Categories) PrimaryCategory() string {
	if len(c.Major) == 0 {
		return ""
	}
	return c.Major[0]
}

// ScoredEpisode is an episode plus the four scalar scores produced by the
// ranking stage. All scores are in [0,1].
type ScoredEpisode struct {
	Episode    Episode `json:"episode"`
	Similarity float64 `json:"similarity_score"`
	Quality    float64 `json:"quality_score"`
	Recency    float64 `json:"recency_score"`
	Final      float64 `json:"final_score"`
}

// Badge thresholds: a badge is awarded when the matching score is >= 3.
// At most two badges are emitted, in the priority order below.
const badgeScoreThreshold = 3

func (e Episode) Badges() []string {
	type candidate struct {
		name  string
		score int
	}
	candidates := []candidate{
		{"high_insight", e.Scores.Insight},
		{"high_credibility", e.Scores.Credibility},
		{"data_rich", e.Scores.Information},
		{"engaging", e.Scores.Entertainment},
	}

	var badges []string
	for _, c := range candidates {
		if c.score >= badgeScoreThreshold {
			badges = append(badges, c.name)
			if len(badges) == 2 {
				break
			}
		}
	}
	return badges
}
