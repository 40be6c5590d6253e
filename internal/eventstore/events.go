package eventstore

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Event type names as persisted in the store.
const (
	TypePublishStarted   = "PublishStarted"
	TypePublishSucceeded = "PublishSucceeded"
	TypePublishFailed    = "PublishFailed"
	TypeJobEvicted       = "JobEvicted"
)

// PublishStarted is appended when a publish job has been accepted and its
// pipeline begins.
type PublishStarted struct {
	BaseEvent
	WebsiteID string `json:"website_id"`
	StorageID string `json:"storage_id"`
	HostingID string `json:"hosting_id"`
}

// NewPublishStarted creates a PublishStarted event.
func NewPublishStarted(jobID, websiteID, storageID, hostingID string) (*PublishStarted, error) {
	payload, err := json.Marshal(map[string]any{
		"website_id": websiteID,
		"storage_id": storageID,
		"hosting_id": hostingID,
	})
	if err != nil {
		return nil, ferrors.EventStoreError("marshal PublishStarted payload").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}

	return &PublishStarted{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypePublishStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		WebsiteID: websiteID,
		StorageID: storageID,
		HostingID: hostingID,
	}, nil
}

// PublishSucceeded is appended when a publish job reaches terminal success.
type PublishSucceeded struct {
	BaseEvent
	WebsiteID string        `json:"website_id"`
	URL       string        `json:"url"`
	Duration  time.Duration `json:"duration_ms"`
}

// NewPublishSucceeded creates a PublishSucceeded event.
func NewPublishSucceeded(jobID, websiteID, url string, duration time.Duration) (*PublishSucceeded, error) {
	payload, err := json.Marshal(map[string]any{
		"website_id":  websiteID,
		"url":         url,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, ferrors.EventStoreError("marshal PublishSucceeded payload").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}

	return &PublishSucceeded{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypePublishSucceeded,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		WebsiteID: websiteID,
		URL:       url,
		Duration:  duration,
	}, nil
}

// PublishFailed is appended when a publish job reaches terminal error.
type PublishFailed struct {
	BaseEvent
	WebsiteID string `json:"website_id"`
	Step      string `json:"step"`
	Error     string `json:"error"`
}

// NewPublishFailed creates a PublishFailed event. Step names the pipeline
// step the failure was captured in.
func NewPublishFailed(jobID, websiteID, step, errorMsg string) (*PublishFailed, error) {
	payload, err := json.Marshal(map[string]any{
		"website_id": websiteID,
		"step":       step,
		"error":      errorMsg,
	})
	if err != nil {
		return nil, ferrors.EventStoreError("marshal PublishFailed payload").
			WithCause(err).
			WithContext("job_id", jobID).
			WithContext("step", step).
			Build()
	}

	return &PublishFailed{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypePublishFailed,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		WebsiteID: websiteID,
		Step:      step,
		Error:     errorMsg,
	}, nil
}

// JobEvicted is appended when a job is removed from the in-memory job
// table, either on expiry or after the post-terminal retention window.
type JobEvicted struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewJobEvicted creates a JobEvicted event.
func NewJobEvicted(jobID, reason string) (*JobEvicted, error) {
	payload, err := json.Marshal(map[string]any{
		"reason": reason,
	})
	if err != nil {
		return nil, ferrors.EventStoreError("marshal JobEvicted payload").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}

	return &JobEvicted{
		BaseEvent: BaseEvent{
			EventJobID:     jobID,
			EventType:      TypeJobEvicted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Reason: reason,
	}, nil
}
