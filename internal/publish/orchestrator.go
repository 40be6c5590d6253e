// Package publish runs publish jobs: render the document, write the
// rendered files through the storage backend, hand them to the hosting
// backend, and expose poll-only job state until eviction. Each accepted
// request runs in its own goroutine; callers follow progress purely by
// polling.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Defaults for job lifetime management.
const (
	DefaultJobTTL        = 30 * time.Minute
	DefaultRetention     = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// emitTimeout bounds a single lifecycle event emission.
const emitTimeout = 5 * time.Second

// Request carries everything one publish run needs. The backends arrive
// already resolved so the orchestrator stays independent of the registry.
type Request struct {
	WebsiteID string
	Document  site.Document
	Session   *session.Session
	Storage   backend.StorageProvider
	Hosting   backend.HostingProvider
}

func (r Request) validate() error {
	if r.WebsiteID == "" {
		return ferrors.ValidationError("websiteId is required").Build()
	}
	if r.Storage == nil {
		return ferrors.ValidationError("storage backend is required").Build()
	}
	if r.Hosting == nil {
		return ferrors.ValidationError("hosting backend is required").Build()
	}
	return nil
}

// Config configures an Orchestrator. Renderer is required; everything
// else has working defaults.
type Config struct {
	Renderer      render.Renderer
	Emitter       Emitter
	Recorder      metrics.Recorder
	Logger        *slog.Logger
	JobTTL        time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
}

// Orchestrator owns the job table and runs one pipeline goroutine per
// accepted publish request. Jobs live until the eviction sweep or an
// expired poll removes them; there is no cancel operation.
type Orchestrator struct {
	renderer  render.Renderer
	emitter   Emitter
	recorder  metrics.Recorder
	logger    *slog.Logger
	ttl       time.Duration
	retention time.Duration

	scheduler gocron.Scheduler

	mu   sync.RWMutex
	jobs map[string]*job

	wg  sync.WaitGroup
	now func() time.Time
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Renderer == nil {
		return nil, ferrors.ConfigError("publish orchestrator requires a renderer").Build()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = NopEmitter{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = DefaultJobTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	o := &Orchestrator{
		renderer:  cfg.Renderer,
		emitter:   cfg.Emitter,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		ttl:       cfg.JobTTL,
		retention: cfg.Retention,
		jobs:      make(map[string]*job),
		now:       time.Now,
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "create eviction scheduler").Build()
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(o.sweep),
		gocron.WithName("publish-eviction-sweep"),
	); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "schedule eviction sweep").Build()
	}
	o.scheduler = scheduler

	return o, nil
}

// Start begins the periodic eviction sweep.
func (o *Orchestrator) Start() {
	o.scheduler.Start()
}

// Stop shuts the sweeper down and waits for running pipelines to finish
// or the context to expire.
func (o *Orchestrator) Stop(ctx context.Context) error {
	shutdownErr := o.scheduler.Shutdown()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ferrors.WrapError(ctx.Err(), ferrors.CategoryDaemon, "wait for publish pipelines").Build()
	}

	if shutdownErr != nil {
		return ferrors.WrapError(shutdownErr, ferrors.CategoryDaemon, "shut down eviction scheduler").Build()
	}
	return nil
}

// StartJob accepts a publish request: it records the job and spawns the
// pipeline goroutine, returning the job id immediately for polling.
func (o *Orchestrator) StartJob(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryRuntime, "publish request canceled").Build()
	}
	if err := req.validate(); err != nil {
		return "", err
	}

	now := o.now()
	j := &job{
		id:        uuid.NewString(),
		websiteID: req.WebsiteID,
		status:    StatusInProgress,
		logs:      make([][]string, stepCount),
		errors:    make([][]string, stepCount),
		createdAt: now,
		expiresAt: now.Add(o.ttl),
	}

	o.mu.Lock()
	o.jobs[j.id] = j
	o.recorder.SetActiveJobs(o.inProgressLocked())
	o.mu.Unlock()

	o.logger.Info("publish job accepted",
		logfields.JobID(j.id),
		logfields.WebsiteID(req.WebsiteID),
		logfields.StorageID(req.Storage.ID()),
		logfields.HostingID(req.Hosting.ID()))

	o.wg.Add(1)
	go o.run(j.id, j.expiresAt, req)

	return j.id, nil
}

// Poll returns an isolated snapshot of the job. Unknown and expired ids
// return a not_found error; the first poll that observes a terminal
// status starts the retention clock. Polling never mutates the snapshot
// a caller sees.
func (o *Orchestrator) Poll(jobID string) (JobSnapshot, error) {
	now := o.now()

	o.mu.Lock()
	j, ok := o.jobs[jobID]
	expired := ok && now.After(j.expiresAt)
	if expired {
		delete(o.jobs, jobID)
		o.recorder.SetActiveJobs(o.inProgressLocked())
	}
	var snap JobSnapshot
	if ok && !expired {
		if j.status.Terminal() && j.observedAt.IsZero() {
			j.observedAt = now
		}
		snap = j.snapshot()
	}
	o.mu.Unlock()

	if expired {
		o.afterEvict(jobID, EvictExpired)
	}
	if !ok || expired {
		return JobSnapshot{}, ferrors.NotFoundError("publish job not found").
			WithContext("job_id", jobID).
			Build()
	}
	return snap, nil
}

// Len returns the number of jobs currently held, terminal ones included.
func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.jobs)
}

// run executes the pipeline for one job. The job expiry also bounds the
// pipeline; there is no cancel operation.
func (o *Orchestrator) run(jobID string, deadline time.Time, req Request) {
	defer o.wg.Done()

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	started := o.now()
	o.emit(jobID, "JobStarted", func(ctx context.Context) error {
		return o.emitter.EmitJobStarted(ctx, events.JobStarted{
			JobID:     jobID,
			WebsiteID: req.WebsiteID,
			StorageID: req.Storage.ID(),
			HostingID: req.Hosting.ID(),
			StartedAt: started,
		})
	})

	files, err := o.renderStep(ctx, jobID, req)
	if err != nil {
		o.fail(jobID, StepRender, err, o.now().Sub(started))
		return
	}
	if err := o.writeStep(ctx, jobID, req, files); err != nil {
		o.fail(jobID, StepWrite, err, o.now().Sub(started))
		return
	}
	data, err := o.publishStep(ctx, jobID, req, files)
	if err != nil {
		o.fail(jobID, StepPublish, err, o.now().Sub(started))
		return
	}

	o.succeed(jobID, req, data, o.now().Sub(started))
}

func (o *Orchestrator) renderStep(ctx context.Context, jobID string, req Request) ([]site.File, error) {
	start := o.now()
	o.appendLog(jobID, StepRender, "rendering document")
	files, err := o.renderer.Render(ctx, req.Document)
	o.observeStep(StepRender, start, err)
	if err != nil {
		return nil, err
	}
	o.appendLog(jobID, StepRender, fmt.Sprintf("rendered %d files", len(files)))
	return files, nil
}

func (o *Orchestrator) writeStep(ctx context.Context, jobID string, req Request, files []site.File) error {
	start := o.now()
	o.appendLog(jobID, StepWrite, fmt.Sprintf("writing %d files to %s", len(files), req.Storage.ID()))
	paths, err := req.Storage.WriteFiles(ctx, req.Session, req.WebsiteID, files, o.statusFunc(jobID, StepWrite))
	o.observeStep(StepWrite, start, err)
	if err != nil {
		return err
	}
	o.appendLog(jobID, StepWrite, fmt.Sprintf("stored %d files", len(paths)))
	return nil
}

func (o *Orchestrator) publishStep(ctx context.Context, jobID string, req Request, files []site.File) (backend.JobData, error) {
	start := o.now()
	o.appendLog(jobID, StepPublish, fmt.Sprintf("publishing via %s", req.Hosting.ID()))
	data, err := req.Hosting.Publish(ctx, req.Session, req.WebsiteID, req.Document.Site, files, o.statusFunc(jobID, StepPublish))
	o.observeStep(StepPublish, start, err)
	return data, err
}

// statusFunc adapts provider progress callbacks into the job's step log.
func (o *Orchestrator) statusFunc(jobID string, step Step) backend.StatusFunc {
	return func(message string) {
		o.appendLog(jobID, step, message)
	}
}

func (o *Orchestrator) observeStep(step Step, start time.Time, err error) {
	o.recorder.ObserveStepDuration(step.String(), o.now().Sub(start))
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	o.recorder.IncStepResult(step.String(), result)
}

// appendLog adds a log line to a step group. Lines arriving after the
// job turned terminal or was evicted are dropped so polled terminal
// snapshots never change.
func (o *Orchestrator) appendLog(jobID string, step Step, line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok || j.status.Terminal() {
		return
	}
	j.logs[step] = append(j.logs[step], line)
}

func (o *Orchestrator) fail(jobID string, step Step, err error, duration time.Duration) {
	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok || j.status.Terminal() {
		o.mu.Unlock()
		return
	}
	j.errors[step] = append(j.errors[step], err.Error())
	j.status = StatusError
	j.message = fmt.Sprintf("%s step failed: %s", step, errMessage(err))
	websiteID := j.websiteID
	o.recorder.SetActiveJobs(o.inProgressLocked())
	o.mu.Unlock()

	o.recorder.IncPublishOutcome(string(StatusError))
	o.recorder.ObservePublishDuration(duration)
	o.logger.Error("publish job failed",
		logfields.JobID(jobID),
		logfields.Step(step.String()),
		logfields.Error(err))

	o.emit(jobID, "JobFailed", func(ctx context.Context) error {
		return o.emitter.EmitJobFailed(ctx, events.JobFailed{
			JobID:     jobID,
			WebsiteID: websiteID,
			Step:      step.String(),
			Message:   errMessage(err),
			FailedAt:  o.now(),
		})
	})
}

func (o *Orchestrator) succeed(jobID string, req Request, data backend.JobData, duration time.Duration) {
	url := o.websiteURL(req, data)
	message := data.Message
	if message == "" {
		message = "website published"
	}

	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok || j.status.Terminal() {
		o.mu.Unlock()
		return
	}
	j.status = StatusSuccess
	j.message = message
	j.url = url
	websiteID := j.websiteID
	o.recorder.SetActiveJobs(o.inProgressLocked())
	o.mu.Unlock()

	o.recorder.IncPublishOutcome(string(StatusSuccess))
	o.recorder.ObservePublishDuration(duration)
	o.logger.Info("publish job succeeded",
		logfields.JobID(jobID),
		logfields.WebsiteID(websiteID),
		logfields.URL(url),
		logfields.DurationMS(float64(duration.Milliseconds())))

	o.emit(jobID, "JobCompleted", func(ctx context.Context) error {
		return o.emitter.EmitJobCompleted(ctx, events.JobCompleted{
			JobID:       jobID,
			WebsiteID:   websiteID,
			URL:         url,
			Duration:    duration,
			CompletedAt: o.now(),
		})
	})
}

// websiteURL asks hosting for the canonical site URL and falls back to
// whatever the publish call reported.
func (o *Orchestrator) websiteURL(req Request, data backend.JobData) string {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	url, err := req.Hosting.WebsiteURL(ctx, req.Session, req.WebsiteID)
	if err != nil || url == "" {
		return data.URL
	}
	return url
}

// sweep evicts jobs past their expiry deadline and terminal jobs whose
// retention window has elapsed since first observation.
func (o *Orchestrator) sweep() {
	now := o.now()

	type eviction struct{ id, reason string }
	var evicted []eviction

	o.mu.Lock()
	for id, j := range o.jobs {
		switch {
		case now.After(j.expiresAt):
			delete(o.jobs, id)
			evicted = append(evicted, eviction{id, EvictExpired})
		case j.status.Terminal() && !j.observedAt.IsZero() && now.Sub(j.observedAt) >= o.retention:
			delete(o.jobs, id)
			evicted = append(evicted, eviction{id, EvictRetention})
		}
	}
	if len(evicted) > 0 {
		o.recorder.SetActiveJobs(o.inProgressLocked())
	}
	o.mu.Unlock()

	for _, e := range evicted {
		o.afterEvict(e.id, e.reason)
	}
}

func (o *Orchestrator) afterEvict(jobID, reason string) {
	o.recorder.IncJobEvicted(reason)
	o.logger.Info("publish job evicted",
		logfields.JobID(jobID),
		slog.String("reason", reason))

	o.emit(jobID, "JobEvicted", func(ctx context.Context) error {
		return o.emitter.EmitJobEvicted(ctx, events.JobEvicted{
			JobID:     jobID,
			Reason:    reason,
			EvictedAt: o.now(),
		})
	})
}

func (o *Orchestrator) emit(jobID, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		o.logger.Warn("failed to emit job event",
			logfields.JobID(jobID),
			slog.String("event", name),
			logfields.Error(err))
	}
}

func (o *Orchestrator) inProgressLocked() int {
	n := 0
	for _, j := range o.jobs {
		if !j.status.Terminal() {
			n++
		}
	}
	return n
}

func errMessage(err error) string {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.Message()
	}
	return err.Error()
}
