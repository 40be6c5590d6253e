package daemon

import (
	"context"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
)

// EventEmitter persists publish lifecycle events and keeps the job
// history projection current. It is the canonical sink between the
// orchestrator and the event store.
type EventEmitter struct {
	store      eventstore.Store
	projection *eventstore.JobHistoryProjection
}

var _ publish.Emitter = (*EventEmitter)(nil)

// NewEventEmitter wires a store and its projection into one emitter.
func NewEventEmitter(store eventstore.Store, projection *eventstore.JobHistoryProjection) *EventEmitter {
	return &EventEmitter{store: store, projection: projection}
}

// emit appends the event and applies it to the projection. The append is
// the source of truth; a projection left behind is rebuilt on restart.
func (e *EventEmitter) emit(ctx context.Context, event eventstore.Event) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Append(ctx, event.JobID(), event.Type(), event.Payload(), event.Metadata()); err != nil {
		return err
	}
	if e.projection != nil {
		e.projection.Apply(event)
	}
	return nil
}

func (e *EventEmitter) EmitJobStarted(ctx context.Context, evt events.JobStarted) error {
	event, err := eventstore.NewPublishStarted(evt.JobID, evt.WebsiteID, evt.StorageID, evt.HostingID)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

func (e *EventEmitter) EmitJobCompleted(ctx context.Context, evt events.JobCompleted) error {
	event, err := eventstore.NewPublishSucceeded(evt.JobID, evt.WebsiteID, evt.URL, evt.Duration)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

func (e *EventEmitter) EmitJobFailed(ctx context.Context, evt events.JobFailed) error {
	event, err := eventstore.NewPublishFailed(evt.JobID, evt.WebsiteID, evt.Step, evt.Message)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

func (e *EventEmitter) EmitJobEvicted(ctx context.Context, evt events.JobEvicted) error {
	event, err := eventstore.NewJobEvicted(evt.JobID, evt.Reason)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}
