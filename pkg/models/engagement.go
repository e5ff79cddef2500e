package models

import (
	"time"

	"github.com/google/uuid"
)

// Engagement types recognized by the ranking pipeline. Types outside this
// list are recorded as-is and weighted 1.0 during user-vector construction.
const (
	EngagementClick    = "click"
	EngagementBookmark = "bookmark"
	EngagementListen   = "listen"
	EngagementView     = "view"
)

// Engagement is a recorded user interaction with an episode. EpisodeID may
// resolve through an episode's content_id when the primary id misses.
type Engagement struct {
	ID           uuid.UUID `json:"id,omitempty"`
	EpisodeID    string    `json:"episode_id" validate:"required"`
	Type         string    `json:"type" validate:"required"`
	Timestamp    time.Time `json:"timestamp"`
	EpisodeTitle string    `json:"episode_title,omitempty"`
	SeriesName   string    `json:"series_name,omitempty"`
}

// EngagementEvent is the payload published to the message bus when an
// engagement is recorded for a known user.
type EngagementEvent struct {
	UserID       string    `json:"user_id"`
	EpisodeID    string    `json:"episode_id"`
	Type         string    `json:"type"`
	EpisodeTitle string    `json:"episode_title,omitempty"`
	SeriesName   string    `json:"series_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
