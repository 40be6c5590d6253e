package publish

import (
	"slices"
	"time"
)

// Status of a publish job. Terminal states are never left again.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusError }

// Step indexes the per-step log and error groups of a job, in pipeline
// execution order.
type Step int

const (
	StepRender Step = iota
	StepWrite
	StepPublish
	stepCount
)

var stepNames = [...]string{"render", "write", "publish"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// Eviction reasons reported in metrics and JobEvicted events.
const (
	EvictExpired   = "expired"
	EvictRetention = "retention"
)

// job is the internal record. Every field is guarded by the orchestrator
// mutex; pipeline goroutines mutate jobs only through orchestrator
// helpers.
type job struct {
	id         string
	websiteID  string
	status     Status
	message    string
	url        string
	logs       [][]string
	errors     [][]string
	createdAt  time.Time
	expiresAt  time.Time
	observedAt time.Time // first poll that saw a terminal status
}

// JobSnapshot is the poll response: an isolated deep copy of the job
// state at one instant.
type JobSnapshot struct {
	JobID   string     `json:"jobId"`
	Status  Status     `json:"status"`
	Message string     `json:"message,omitempty"`
	URL     string     `json:"url,omitempty"`
	Logs    [][]string `json:"logs"`
	Errors  [][]string `json:"errors"`
}

func (j *job) snapshot() JobSnapshot {
	return JobSnapshot{
		JobID:   j.id,
		Status:  j.status,
		Message: j.message,
		URL:     j.url,
		Logs:    copyGroups(j.logs),
		Errors:  copyGroups(j.errors),
	}
}

func copyGroups(groups [][]string) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = slices.Clone(g)
	}
	return out
}
