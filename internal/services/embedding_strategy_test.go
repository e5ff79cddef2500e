package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/internal/vectorstore"
	"github.com/earshot-fm/earshot/pkg/models"
)

func testStrategy() *EmbeddingStrategy {
	return NewEmbeddingStrategy(config.EmbeddingConfig{
		AlgorithmVersion: "v2",
		StrategyVersion:  "title-insight-1",
		DatasetVersion:   "1",
		Model:            "text-embedding-3-small",
		Dimensions:       1536,
	})
}

func TestEmbeddingStrategy_EmbedText(t *testing.T) {
	s := testStrategy()

	t.Run("title and insight", func(t *testing.T) {
		text := s.EmbedText(models.Episode{
			Title:      "The Quiet Revolution in Battery Chemistry",
			KeyInsight: "Sodium-ion cells now match LFP on cost per cycle",
		})
		assert.Equal(t, "The Quiet Revolution in Battery Chemistry. Sodium-ion cells now match LFP on cost per cycle", text)
	})

	t.Run("title only", func(t *testing.T) {
		text := s.EmbedText(models.Episode{Title: "Solo Title"})
		assert.Equal(t, "Solo Title", text)
	})

	t.Run("insight only", func(t *testing.T) {
		text := s.EmbedText(models.Episode{KeyInsight: "just the insight"})
		assert.Equal(t, "just the insight", text)
	})

	t.Run("whitespace collapses", func(t *testing.T) {
		text := s.EmbedText(models.Episode{Title: "  spaced\t\nout   title  "})
		assert.Equal(t, "spaced out title", text)
	})

	t.Run("empty falls back to id", func(t *testing.T) {
		assert.Equal(t, "ep-42", s.EmbedText(models.Episode{ID: "ep-42"}))
	})

	t.Run("fully empty uses placeholder", func(t *testing.T) {
		assert.Equal(t, "untitled episode", s.EmbedText(models.Episode{}))
	})
}

func TestEmbeddingStrategy_Namespace(t *testing.T) {
	s := testStrategy()
	assert.Equal(t, vectorstore.Namespace{
		AlgorithmVersion: "v2",
		StrategyVersion:  "title-insight-1",
		DatasetVersion:   "1",
	}, s.Namespace())
	assert.Equal(t, "v2-title-insight-1-1", s.Namespace().String())
}
