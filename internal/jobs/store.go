package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/acidbase/abgassist/internal/common"
)

// Store is key-value persistence for job records. Writes to the same id
// are sequential by construction (Submit writes pending, exactly one worker
// writes the terminal state), so implementations need no locking beyond
// last-writer-wins.
type Store interface {
	// Put inserts or replaces the record under job.ID.
	Put(ctx context.Context, job Job) error
	// Get returns the record for id, or common.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Job, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Job, error)
	Close() error
}

// ErrJobNotFound is what Get wraps when no record exists for the id.
var ErrJobNotFound = common.NewAppError("JOB_NOT_FOUND", "no job with that id", common.ErrNotFound)
