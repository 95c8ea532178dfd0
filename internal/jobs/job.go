package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/acidbase/abgassist/constants"
)

// Job is one asynchronous unit of submitted work. Created pending by
// Submit, written exactly once more by the worker with a terminal status;
// never mutated after that.
type Job struct {
	ID         uuid.UUID           `json:"id"`
	Kind       constants.JobKind   `json:"kind"`
	Status     constants.JobStatus `json:"status"`
	Data       json.RawMessage     `json:"data,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// newPending builds the initial record for a submission. Data holds the
// submitted payload until the worker replaces it with the result.
func newPending(kind constants.JobKind, payload json.RawMessage) Job {
	return Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    constants.JobStatusPending,
		Data:      payload,
		CreatedAt: time.Now().UTC(),
	}
}

// complete returns the terminal success record for j.
func (j Job) complete(result json.RawMessage) Job {
	now := time.Now().UTC()
	j.Status = constants.JobStatusComplete
	j.Data = result
	j.Error = ""
	j.FinishedAt = &now
	return j
}

// failed returns the terminal failure record for j. The submitted payload
// is dropped; pollers get the status and a human-readable reason.
func (j Job) failed(reason string) Job {
	now := time.Now().UTC()
	j.Status = constants.JobStatusFailed
	j.Data = nil
	j.Error = reason
	j.FinishedAt = &now
	return j
}
