package engagement

import (
	"context"

	"github.com/google/uuid"

	"github.com/earshot-fm/earshot/pkg/models"
)

// Store persists user engagement history. All methods treat an empty userID
// as "anonymous": reads fall back to the request body and writes are no-ops.
type Store interface {
	// EngagementsForRanking returns the engagements the user-vector builder
	// should see: stored history (newest-first, capped) when userID is set,
	// the request engagements verbatim otherwise.
	EngagementsForRanking(ctx context.Context, userID string, requestEngagements []models.Engagement) ([]models.Engagement, error)

	// RecordEngagement persists one interaction. No-op without a userID.
	RecordEngagement(ctx context.Context, userID string, e models.Engagement) error

	// DeleteEngagement removes one engagement row; reports whether a row
	// was actually deleted.
	DeleteEngagement(ctx context.Context, userID string, engagementID uuid.UUID) (bool, error)

	// DeleteAllEngagements wipes a user's history.
	DeleteAllEngagements(ctx context.Context, userID string) error
}
