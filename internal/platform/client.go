package platform

import (
	"context"
	"errors"
)

// Common errors surfaced by platform implementations. The engine treats
// both transient and permanent failures as a failed dispatch without
// retry; the distinction is kept for log messages only.
var (
	ErrRateLimited   = errors.New("rate limited by platform")
	ErrInvalidTarget = errors.New("target user or post not available")
)

// Client posts automated replies on a connected social account. Both calls
// may block on network round-trips and must be kept off the matching path.
type Client interface {
	SendComment(ctx context.Context, postID, text string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
}
