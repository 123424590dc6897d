// Package bus is the per-project progress pub/sub channel. Delivery is
// best-effort and unbuffered over time: a subscriber connecting mid-pipeline
// sees only subsequent frames, and the repository remains the status
// authority.
package bus

import (
	"context"

	"github.com/google/uuid"

	"github.com/tellatale/engine/pkg/models"
)

// Bus is the progress pub/sub interface. Publish must never block the
// caller meaningfully; delivery failures are logged, not raised.
type Bus interface {
	Publish(ctx context.Context, projectID uuid.UUID, frame models.ProgressFrame)
	// Subscribe opens a frame stream for one project. The returned cancel
	// function leaves the channel group and releases resources.
	Subscribe(ctx context.Context, projectID uuid.UUID) (<-chan models.ProgressFrame, func(), error)
	Ping(ctx context.Context) error
}

// ChannelName is the pub/sub channel for one project's frames.
func ChannelName(projectID uuid.UUID) string {
	return "story_" + projectID.String()
}
