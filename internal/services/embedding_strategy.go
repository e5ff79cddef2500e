package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/internal/vectorstore"
	"github.com/earshot-fm/earshot/pkg/models"
)

// EmbeddingStrategy defines how an episode is rendered into embedding input
// text. The strategy version is part of the vector-store namespace: bumping
// it invalidates every vector generated under the old formula, so any change
// to EmbedText must come with a new StrategyVersion.
type EmbeddingStrategy struct {
	cfg config.EmbeddingConfig
}

func NewEmbeddingStrategy(cfg config.EmbeddingConfig) *EmbeddingStrategy {
	return &EmbeddingStrategy{cfg: cfg}
}

func (s *EmbeddingStrategy) StrategyVersion() string { return s.cfg.StrategyVersion }
func (s *EmbeddingStrategy) Model() string           { return s.cfg.Model }
func (s *EmbeddingStrategy) Dimensions() int         { return s.cfg.Dimensions }

// Namespace returns the (algorithm, strategy, dataset) triple this strategy
// writes and reads under.
func (s *EmbeddingStrategy) Namespace() vectorstore.Namespace {
	return vectorstore.Namespace{
		AlgorithmVersion: s.cfg.AlgorithmVersion,
		StrategyVersion:  s.cfg.StrategyVersion,
		DatasetVersion:   s.cfg.DatasetVersion,
	}
}

// EmbedText renders the canonical embedding input: "{title}. {key_insight}"
// with no truncation. When both fields are empty, the episode id (or a fixed
// placeholder) stands in so the episode still gets a stable, if
// uninformative, vector.
func (s *EmbeddingStrategy) EmbedText(episode models.Episode) string {
	title := canonicalText(episode.Title)
	insight := canonicalText(episode.KeyInsight)

	switch {
	case title != "" && insight != "":
		return fmt.Sprintf("%s. %s", title, insight)
	case title != "":
		return title
	case insight != "":
		return insight
	case episode.ID != "":
		return episode.ID
	default:
		return "untitled episode"
	}
}

// canonicalText NFC-normalizes and collapses runs of whitespace so that
// cosmetic edits to a title do not produce a different embedding input.
func canonicalText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}
