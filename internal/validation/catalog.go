package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// catalogSchema is the shape a file-backed episode catalog must satisfy
// before any record is admitted into the in-memory snapshot. Scores are
// individually optional (missing credibility reads as 0 downstream) but
// must be integers in 0-4 when present.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "title"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "content_id": {"type": "string"},
      "title": {"type": "string"},
      "published_at": {"type": "string"},
      "key_insight": {"type": "string"},
      "scores": {
        "type": "object",
        "properties": {
          "credibility": {"type": ["integer", "null"], "minimum": 0, "maximum": 4},
          "insight": {"type": ["integer", "null"], "minimum": 0, "maximum": 4},
          "information": {"type": ["integer", "null"], "minimum": 0, "maximum": 4},
          "entertainment": {"type": ["integer", "null"], "minimum": 0, "maximum": 4}
        }
      },
      "series": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"}
        }
      },
      "categories": {
        "type": "object",
        "properties": {
          "major": {"type": "array", "items": {"type": "string"}},
          "subcategories": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// CatalogValidator validates raw catalog documents against the episode
// schema before they are decoded into typed records.
type CatalogValidator struct {
	schema *gojsonschema.Schema
}

func NewCatalogValidator() (*CatalogValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}
	return &CatalogValidator{schema: schema}, nil
}

// ValidateCatalog checks a raw catalog JSON document. All violations are
// aggregated into one error so a bad file is fixable in one pass.
func (v *CatalogValidator) ValidateCatalog(data []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("catalog document invalid: %s", strings.Join(violations, "; "))
}
