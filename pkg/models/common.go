package models

import "errors"

var (
	// ErrSessionNotFound distinguishes a missing/expired session from an
	// internal failure; handlers map it to 404.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEpisodeNotFound is returned by episode providers when neither the
	// id nor the content id matches a catalog entry.
	ErrEpisodeNotFound = errors.New("episode not found")
)
