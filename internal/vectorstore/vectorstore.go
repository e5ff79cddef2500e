package vectorstore

import "context"

// Namespace identifies a vector partition by the
// (algorithm_version, strategy_version, dataset_version) triple. Vectors
// written under one triple are never read under another; bumping any
// component of the triple starts an empty partition.
type Namespace struct {
	AlgorithmVersion string
	StrategyVersion  string
	DatasetVersion   string
}

// String renders the triple as a collection-safe identifier.
func (n Namespace) String() string {
	return n.AlgorithmVersion + "-" + n.StrategyVersion + "-" + n.DatasetVersion
}

// Point is one episode vector plus the payload fields the retrieval filter
// pushes down.
type Point struct {
	EpisodeID     string
	ContentID     string
	Vector        []float32
	Credibility   int
	Insight       int
	PublishedUnix int64
	SeriesID      string
}

// QueryFilter restricts a similarity query to candidate-eligible episodes.
// Zero values disable the corresponding constraint.
type QueryFilter struct {
	// CredibilityFloor keeps episodes with credibility >= floor.
	CredibilityFloor int
	// CombinedFloor keeps episodes with credibility+insight >= floor.
	CombinedFloor int
	// PublishedAfter keeps episodes with published_unix >= this value.
	// Zero means no freshness constraint.
	PublishedAfter int64
	// ExcludedIDs drops episodes by id. Implementations may cap how many
	// exclusions they push down and post-filter the remainder.
	ExcludedIDs []string
}

// QueryMatch is one similarity hit. ContentID is carried so callers can
// resolve matches for episodes that were indexed under an alternate id.
type QueryMatch struct {
	EpisodeID string
	ContentID string
	Score     float64
}

// Store indexes episode embeddings inside one namespace and answers
// filtered similarity queries over them.
type Store interface {
	// EnsureReady prepares the namespace for reads and writes, creating
	// backing structures if needed.
	EnsureReady(ctx context.Context) error

	// Upsert writes or replaces points.
	Upsert(ctx context.Context, points []Point) error

	// Query returns up to topK matches by cosine similarity against the
	// query vector, honoring the filter, best first.
	Query(ctx context.Context, vector []float32, filter QueryFilter, topK int) ([]QueryMatch, error)

	// FetchVectors loads stored vectors by episode id. Unknown ids are
	// simply absent from the result.
	FetchVectors(ctx context.Context, episodeIDs []string) (map[string][]float32, error)

	// Count reports how many points the namespace holds.
	Count(ctx context.Context) (int, error)
}
