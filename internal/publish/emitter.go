package publish

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
)

// Emitter receives publish job lifecycle events. Emission failures are
// logged by the orchestrator and never influence job state.
type Emitter interface {
	EmitJobStarted(ctx context.Context, evt events.JobStarted) error
	EmitJobCompleted(ctx context.Context, evt events.JobCompleted) error
	EmitJobFailed(ctx context.Context, evt events.JobFailed) error
	EmitJobEvicted(ctx context.Context, evt events.JobEvicted) error
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) EmitJobStarted(context.Context, events.JobStarted) error     { return nil }
func (NopEmitter) EmitJobCompleted(context.Context, events.JobCompleted) error { return nil }
func (NopEmitter) EmitJobFailed(context.Context, events.JobFailed) error       { return nil }
func (NopEmitter) EmitJobEvicted(context.Context, events.JobEvicted) error     { return nil }

// MultiEmitter fans each event out to every member. All members are
// invoked even when earlier ones fail; the errors are joined.
type MultiEmitter []Emitter

func (m MultiEmitter) EmitJobStarted(ctx context.Context, evt events.JobStarted) error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.EmitJobStarted(ctx, evt))
	}
	return errors.Join(errs...)
}

func (m MultiEmitter) EmitJobCompleted(ctx context.Context, evt events.JobCompleted) error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.EmitJobCompleted(ctx, evt))
	}
	return errors.Join(errs...)
}

func (m MultiEmitter) EmitJobFailed(ctx context.Context, evt events.JobFailed) error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.EmitJobFailed(ctx, evt))
	}
	return errors.Join(errs...)
}

func (m MultiEmitter) EmitJobEvicted(ctx context.Context, evt events.JobEvicted) error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.EmitJobEvicted(ctx, evt))
	}
	return errors.Join(errs...)
}

// DefaultEmitTimeout bounds how long a bus publish may block the emitting
// pipeline on slow subscribers.
const DefaultEmitTimeout = 500 * time.Millisecond

// BusEmitter publishes job events onto the in-process bus for SSE and
// other live consumers.
type BusEmitter struct {
	bus     *events.Bus
	timeout time.Duration
}

func NewBusEmitter(bus *events.Bus, timeout time.Duration) *BusEmitter {
	if timeout <= 0 {
		timeout = DefaultEmitTimeout
	}
	return &BusEmitter{bus: bus, timeout: timeout}
}

func (b *BusEmitter) publish(ctx context.Context, evt any) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.bus.Publish(ctx, evt)
}

func (b *BusEmitter) EmitJobStarted(ctx context.Context, evt events.JobStarted) error {
	return b.publish(ctx, evt)
}

func (b *BusEmitter) EmitJobCompleted(ctx context.Context, evt events.JobCompleted) error {
	return b.publish(ctx, evt)
}

func (b *BusEmitter) EmitJobFailed(ctx context.Context, evt events.JobFailed) error {
	return b.publish(ctx, evt)
}

func (b *BusEmitter) EmitJobEvicted(ctx context.Context, evt events.JobEvicted) error {
	return b.publish(ctx, evt)
}
