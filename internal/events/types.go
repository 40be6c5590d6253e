package events

import "time"

// DocumentChanged is emitted by the state container after each committed
// dispatch. SSE consumers use it to push incremental refresh hints to editors.
//
// It is an in-process orchestration event and is not written to internal/eventstore.
type DocumentChanged struct {
	WebsiteID  string
	Collection string
	Revision   uint64
	ChangedAt  time.Time
}

// JobEvent is implemented by all publish job lifecycle events, allowing a
// single interface subscription to observe the whole lifecycle.
type JobEvent interface {
	PublishJobID() string
}

// JobStarted is emitted when a publish job has been accepted and its
// pipeline goroutine spawned.
type JobStarted struct {
	JobID     string
	WebsiteID string
	StorageID string
	HostingID string
	StartedAt time.Time
}

func (e JobStarted) PublishJobID() string { return e.JobID }

// JobCompleted is emitted when a publish job reaches terminal success.
type JobCompleted struct {
	JobID       string
	WebsiteID   string
	URL         string
	Duration    time.Duration
	CompletedAt time.Time
}

func (e JobCompleted) PublishJobID() string { return e.JobID }

// JobFailed is emitted when a publish job reaches terminal error.
// Step names the pipeline step that failed.
type JobFailed struct {
	JobID     string
	WebsiteID string
	Step      string
	Message   string
	FailedAt  time.Time
}

func (e JobFailed) PublishJobID() string { return e.JobID }

// JobEvicted is emitted when a job is removed from the job table, either
// because its expiry deadline passed or because the retention window after
// terminal observation elapsed.
type JobEvicted struct {
	JobID     string
	Reason    string // "expired" or "retention"
	EvictedAt time.Time
}

func (e JobEvicted) PublishJobID() string { return e.JobID }
