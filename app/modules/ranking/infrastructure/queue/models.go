package rankingqueue

import "time"

const (
	// QueueName is the dedicated river queue for ranking jobs.
	QueueName = "ranking"

	activitySweepKind = "ranking_activity_sweep"
)

// ActivitySweepJob asks a worker to look for players below their tier's
// monthly minimum. A zero AsOf means the time the job runs.
type ActivitySweepJob struct {
	AsOf      time.Time `json:"as_of,omitzero"`
	Requested string    `json:"requested,omitempty"`
}

// Kind returns the job type identifier for River
func (ActivitySweepJob) Kind() string { return activitySweepKind }

// JobInfo describes one sweep job for operators.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
