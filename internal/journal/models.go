package journal

import "time"

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Outcome classifies one attempt against a remote service.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeExhausted Outcome = "exhausted"
)

// Summary holds the per-run counters written when a run finishes.
type Summary struct {
	Acquired      int
	Published     int
	PublishFailed int
	Posted        int
	Exhausted     int
	Pruned        int
}

// Run is one journaled pipeline invocation.
type Run struct {
	ID         string
	Command    string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    Summary
	Error      string
}

// Duration returns the wall time of a finished run, or 0 while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Attempt is one call made on behalf of a record.
type Attempt struct {
	ID        int64
	RunID     string
	RecordID  int64
	Stage     string
	Channel   string
	Attempt   int
	Outcome   Outcome
	Error     string
	URL       string
	CreatedAt time.Time
}
