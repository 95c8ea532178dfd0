package constants

// JobStatus is the canonical status for stored jobs.
type JobStatus string

// Stable values (store these exact strings).
const (
	JobStatusPending  JobStatus = "pending"  // accepted, background work not finished
	JobStatusComplete JobStatus = "complete" // terminal success, data present
	JobStatusFailed   JobStatus = "failed"   // terminal failure, error message present
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// JobKind distinguishes the two background workloads sharing the poll endpoint.
type JobKind string

const (
	JobKindAnalysis JobKind = "analysis" // interpret entered blood-gas values
	JobKindOCR      JobKind = "ocr"      // read values off a report image
)
