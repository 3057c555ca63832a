package repository

import (
	"context"
	"time"
)

// PollCursor tracks the last successful poll per (connection, resource_ref).
// A missing cursor means the resource has never been polled; callers pick
// their own starting point.
type PollCursor interface {
	Get(ctx context.Context, connectionID, resourceRef string) (time.Time, bool, error)
	Set(ctx context.Context, connectionID, resourceRef string, at time.Time) error
}
