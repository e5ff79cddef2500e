package models

import "time"

// CreateSessionRequest starts a new recommendation session. When UserID is
// set and an engagement store is configured, stored engagements replace the
// request body's list.
type CreateSessionRequest struct {
	Engagements          []Engagement `json:"engagements,omitempty"`
	ExcludedIDs          []string     `json:"excluded_ids,omitempty"`
	UserID               string       `json:"user_id,omitempty"`
	CategoryAnchorVector []float32    `json:"category_anchor_vector,omitempty"`
	Limit                int          `json:"limit,omitempty" validate:"omitempty,min=1,max=20"`
}

type LoadMoreRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=20"`
}

type EngageRequest struct {
	SessionID    string `json:"session_id" validate:"required"`
	EpisodeID    string `json:"episode_id" validate:"required"`
	Type         string `json:"type" validate:"required"`
	UserID       string `json:"user_id,omitempty"`
	EpisodeTitle string `json:"episode_title,omitempty"`
	SeriesName   string `json:"series_name,omitempty"`
}

// EpisodeCard is the wire shape emitted to callers for each queue slot.
type EpisodeCard struct {
	ID              string     `json:"id"`
	ContentID       string     `json:"content_id,omitempty"`
	Title           string     `json:"title"`
	Series          Series     `json:"series"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Scores          Scores     `json:"scores"`
	Badges          []string   `json:"badges,omitempty"`
	KeyInsight      string     `json:"key_insight,omitempty"`
	Categories      Categories `json:"categories"`
	SimilarityScore float64    `json:"similarity_score"`
	QualityScore    float64    `json:"quality_score"`
	RecencyScore    float64    `json:"recency_score"`
	FinalScore      float64    `json:"final_score"`
	QueuePosition   int        `json:"queue_position"`
}

// NewEpisodeCard projects a scored queue entry into the wire shape.
// Position is 1-based.
func NewEpisodeCard(scored ScoredEpisode, position int) EpisodeCard {
	ep := scored.Episode
	return EpisodeCard{
		ID:              ep.ID,
		ContentID:       ep.ContentID,
		Title:           ep.Title,
		Series:          ep.Series,
		PublishedAt:     ep.PublishedAt,
		Scores:          ep.Scores,
		Badges:          ep.Badges(),
		KeyInsight:      ep.KeyInsight,
		Categories:      ep.Categories,
		SimilarityScore: scored.Similarity,
		QualityScore:    scored.Quality,
		RecencyScore:    scored.Recency,
		FinalScore:      scored.Final,
		QueuePosition:   position,
	}
}

// SessionDebug surfaces pipeline internals on the create_session response
// so strategy drift can be diagnosed without log access.
type SessionDebug struct {
	UserVectorEpisodeCount int    `json:"user_vector_episode_count"`
	CandidatePoolSize      int    `json:"candidate_pool_size"`
	QueryPath              string `json:"query_path"` // "ann" or "in_memory"
	FreshnessWindowDays    int    `json:"freshness_window_days"`
}

type SessionResponse struct {
	SessionID      string        `json:"session_id"`
	Episodes       []EpisodeCard `json:"episodes"`
	TotalInQueue   int           `json:"total_in_queue"`
	ShownCount     int           `json:"shown_count"`
	RemainingCount int           `json:"remaining_count"`
	ColdStart      bool          `json:"cold_start"`
	Debug          SessionDebug  `json:"debug"`
}

type PageResponse struct {
	SessionID      string        `json:"session_id"`
	Episodes       []EpisodeCard `json:"episodes"`
	TotalInQueue   int           `json:"total_in_queue"`
	ShownCount     int           `json:"shown_count"`
	RemainingCount int           `json:"remaining_count"`
}

type EngageResponse struct {
	EngagedCount int `json:"engaged_count"`
}
