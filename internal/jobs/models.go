package jobs

import "time"

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one ledger row.
type Record struct {
	ID           string
	SourceURL    string
	ManifestURL  string
	Status       Status
	Requested    int
	Produced     int
	Skipped      int
	Rejected     int
	FailedStage  string
	ErrorClass   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Elapsed returns the time between the run's start and its last update.
func (r Record) Elapsed() time.Duration {
	if r.CreatedAt.IsZero() || r.UpdatedAt.Before(r.CreatedAt) {
		return 0
	}
	return r.UpdatedAt.Sub(r.CreatedAt)
}
