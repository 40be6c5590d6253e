// Package eventstore provides the append-only publish job event log and
// the read models reconstructed from it.
package eventstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

const (
	jobStatusRunning = "in_progress"
	jobStatusSuccess = "success"
	jobStatusError   = "error"
	jobStatusEvicted = "evicted"
)

// JobSummary is a read model summarizing a publish job, reconstructed
// from its persisted events. Unlike the orchestrator's job table it
// survives eviction.
type JobSummary struct {
	JobID        string        `json:"jobId"`
	WebsiteID    string        `json:"websiteId,omitempty"`
	StorageID    string        `json:"storageId,omitempty"`
	HostingID    string        `json:"hostingId,omitempty"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	URL          string        `json:"url,omitempty"`
	ErrorStep    string        `json:"errorStep,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	EvictReason  string        `json:"evictReason,omitempty"`
}

// JobHistoryProjection maintains an in-memory view of publish history,
// reconstructed from events stored in the event store.
type JobHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	jobs     map[string]*JobSummary // jobID -> summary
	history  []*JobSummary          // ordered by start time, newest first
	maxSize  int
	lastSync time.Time
}

// NewJobHistoryProjection creates a new projection backed by the given store.
func NewJobHistoryProjection(store Store, maxHistorySize int) *JobHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &JobHistoryProjection{
		store:   store,
		jobs:    make(map[string]*JobSummary),
		history: make([]*JobSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// This is typically called at startup.
func (p *JobHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs = make(map[string]*JobSummary)
	p.history = make([]*JobSummary, 0, p.maxSize)

	for _, event := range events {
		p.applyEventLocked(event)
	}

	p.sortHistoryLocked()

	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any running jobs.
	p.pruneJobsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
// This is used for real-time updates when events are emitted.
func (p *JobHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *JobHistoryProjection) applyEventLocked(event Event) {
	jobID := event.JobID()
	if jobID == "" {
		return
	}

	summary, exists := p.jobs[jobID]
	if !exists {
		summary = &JobSummary{
			JobID:     jobID,
			Status:    jobStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.jobs[jobID] = summary
	}

	switch event.Type() {
	case TypePublishStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = jobStatusRunning
		var payload struct {
			WebsiteID string `json:"website_id"`
			StorageID string `json:"storage_id"`
			HostingID string `json:"hosting_id"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.WebsiteID = payload.WebsiteID
			summary.StorageID = payload.StorageID
			summary.HostingID = payload.HostingID
		}

	case TypePublishSucceeded:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Status = jobStatusSuccess
		summary.Duration = now.Sub(summary.StartedAt)
		var payload struct {
			WebsiteID  string `json:"website_id"`
			URL        string `json:"url"`
			DurationMS int64  `json:"duration_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.WebsiteID != "" {
				summary.WebsiteID = payload.WebsiteID
			}
			summary.URL = payload.URL
			// The pipeline-measured duration is more precise than the
			// second-resolution event timestamps.
			if payload.DurationMS > 0 {
				summary.Duration = time.Duration(payload.DurationMS) * time.Millisecond
			}
		}
		p.addToHistoryLocked(summary)

	case TypePublishFailed:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = jobStatusError
		var payload struct {
			WebsiteID string `json:"website_id"`
			Step      string `json:"step"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.WebsiteID != "" {
				summary.WebsiteID = payload.WebsiteID
			}
			summary.ErrorStep = payload.Step
			summary.ErrorMessage = payload.Error
		}
		p.addToHistoryLocked(summary)

	case TypeJobEvicted:
		var payload struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.EvictReason = payload.Reason
		}
		// An expired job that never reached a terminal status will not
		// complete anymore; close it out as evicted.
		if summary.Status == jobStatusRunning {
			now := event.Timestamp()
			summary.CompletedAt = &now
			summary.Status = jobStatusEvicted
			p.addToHistoryLocked(summary)
		}
	}
}

// addToHistoryLocked adds a finished job to history if not already present.
func (p *JobHistoryProjection) addToHistoryLocked(summary *JobSummary) {
	for _, h := range p.history {
		if h.JobID == summary.JobID {
			return
		}
	}

	p.history = append([]*JobSummary{summary}, p.history...)

	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any running jobs.
	p.pruneJobsLocked()
}

// pruneJobsLocked removes finished jobs not present in the bounded history.
// It keeps any jobs that are still marked as running.
// Caller must hold p.mu (write lock).
func (p *JobHistoryProjection) pruneJobsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		if h != nil {
			keep[h.JobID] = struct{}{}
		}
	}

	for id, summary := range p.jobs {
		if summary != nil && summary.Status == jobStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.jobs, id)
		}
	}
}

// sortHistoryLocked sorts history by start time, newest first.
func (p *JobHistoryProjection) sortHistoryLocked() {
	// Simple insertion sort (history is usually small)
	for i := 1; i < len(p.history); i++ {
		for j := i; j > 0 && p.history[j].StartedAt.After(p.history[j-1].StartedAt); j-- {
			p.history[j], p.history[j-1] = p.history[j-1], p.history[j]
		}
	}
}

// GetHistory returns the publish history, newest first.
func (p *JobHistoryProjection) GetHistory() []*JobSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*JobSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetJob returns the summary for a specific publish job.
func (p *JobHistoryProjection) GetJob(jobID string) (*JobSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.jobs[jobID]
	if !exists {
		return nil, false
	}

	cp := *summary
	return &cp, true
}

// GetActiveJobs returns all currently running jobs, newest first. Multiple
// publish jobs may run concurrently.
func (p *JobHistoryProjection) GetActiveJobs() []*JobSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var active []*JobSummary
	for _, summary := range p.jobs {
		if summary.Status == jobStatusRunning {
			cp := *summary
			active = append(active, &cp)
		}
	}
	slices.SortFunc(active, func(a, b *JobSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return active
}

// GetLastCompleted returns the most recently finished job (any outcome).
func (p *JobHistoryProjection) GetLastCompleted() *JobSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}

	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last synchronized.
func (p *JobHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
