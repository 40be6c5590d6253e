// Package daemon composes the sitebuilder runtime: backends built from
// configuration, the website service, the publish orchestrator with its
// event sinks, and the HTTP server, started and stopped as one unit.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
	"git.home.luguber.info/inful/sitebuilder/internal/server"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/website"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

const sessionSweepInterval = 15 * time.Minute

// Options carries the pieces the daemon cannot derive from the
// configuration tree itself.
type Options struct {
	// ConfigPath enables hot reloading when set.
	ConfigPath string

	// LogLevel, when set, is adjusted on configuration reloads.
	LogLevel *slog.LevelVar

	Logger *slog.Logger
}

// Daemon owns every runtime component and their start/stop ordering.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	status    atomic.Value
	startTime time.Time

	sessions *session.Manager
	registry *backend.Registry
	bus      *events.Bus
	websites *website.Service

	store    eventstore.Store
	history  *eventstore.JobHistoryProjection
	notifier *notify.Notifier

	orchestrator *publish.Orchestrator
	server       *server.Server
	watcher      *config.Watcher

	logLevel *slog.LevelVar

	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
	errCh   chan error
}

// New builds the full component graph from the configuration. Nothing
// starts running until Start.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("daemon requires a configuration").Build()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(0),
		bus:      events.NewBus(),
		logLevel: opts.LogLevel,
		stop:     make(chan struct{}),
		errCh:    make(chan error, 1),
	}
	d.status.Store(StatusStopped)

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	d.registry = registry
	d.websites = website.NewService(registry, d.bus, logger)

	store, err := eventstore.NewSQLiteStore(cfg.EventStore.Path)
	if err != nil {
		return nil, err
	}
	d.store = store
	d.history = eventstore.NewJobHistoryProjection(store, 100)
	if err := d.history.Rebuild(context.Background()); err != nil {
		// Non-fatal: the history starts empty and refills as jobs run.
		logger.Warn("job history rebuild failed", logfields.Error(err))
	}

	emitters := publish.MultiEmitter{NewEventEmitter(store, d.history)}
	if cfg.Notify.Enabled {
		notifier, err := notify.New(notify.Config{
			URL:           cfg.Notify.URL,
			SubjectPrefix: cfg.Notify.SubjectPrefix,
			Stream:        cfg.Notify.Stream,
		}, logger)
		if err != nil {
			return nil, err
		}
		d.notifier = notifier
		emitters = append(emitters, notifier)
	}
	emitters = append(emitters, publish.NewBusEmitter(d.bus, publish.DefaultEmitTimeout))

	promReg := prometheus.NewRegistry()

	orchestrator, err := publish.New(publish.Config{
		Renderer:      render.NewHTMLRenderer(logger),
		Emitter:       emitters,
		Recorder:      metrics.NewPrometheusRecorder(promReg),
		Logger:        logger,
		JobTTL:        cfg.Publish.JobTTLDuration(),
		Retention:     cfg.Publish.RetentionDuration(),
		SweepInterval: cfg.Publish.SweepIntervalDuration(),
	})
	if err != nil {
		return nil, err
	}
	d.orchestrator = orchestrator

	srv, err := server.New(server.Config{
		Addr:           cfg.Server.Address(),
		RequestTimeout: cfg.Server.RequestTimeoutDuration(),
		Sessions:       d.sessions,
		Registry:       registry,
		Websites:       d.websites,
		Orchestrator:   orchestrator,
		Bus:            d.bus,
		History:        d.history,
		Events:         store,
		MetricsHandler: metrics.HTTPHandler(promReg),
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	d.server = srv

	if opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(opts.ConfigPath, d.applyConfig, logger)
		if err != nil {
			return nil, err
		}
		d.watcher = watcher
	}

	return d, nil
}

// GetStatus returns the current lifecycle state.
func (d *Daemon) GetStatus() Status {
	s, _ := d.status.Load().(Status)
	return s
}

// Err delivers a fatal server error. The channel never closes; a daemon
// that shuts down cleanly sends nothing.
func (d *Daemon) Err() <-chan error { return d.errCh }

// Start brings the components up and returns once the daemon is serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.GetStatus() != StatusStopped {
		return ferrors.DaemonError("daemon is not stopped").
			WithContext("status", string(d.GetStatus())).
			Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	d.orchestrator.Start()

	d.wg.Add(1)
	go d.sweepSessions()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Start(); err != nil && !isServerClosed(err) {
			d.logger.Error("http server failed", logfields.Error(err))
			select {
			case d.errCh <- err:
			default:
			}
		}
	}()

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.logger.Error("config watcher failed to start", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	d.logger.Info("daemon started",
		slog.String("addr", d.cfg.Server.Address()),
		slog.Int("storage_backends", len(d.cfg.Storage)),
		slog.Int("hosting_backends", len(d.cfg.Hosting)),
		slog.Bool("notify", d.cfg.Notify.Enabled))
	return nil
}

// Stop shuts the components down in reverse order: no new requests,
// then drain running publish jobs, then close the sinks.
func (d *Daemon) Stop(ctx context.Context) error {
	status := d.GetStatus()
	if status == StatusStopped || status == StatusStopping {
		return nil
	}
	d.status.Store(StatusStopping)
	d.logger.Info("stopping daemon")

	d.stopped.Do(func() { close(d.stop) })

	if d.watcher != nil {
		d.watcher.Stop()
	}

	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Error("http server shutdown failed", logfields.Error(err))
	}

	if err := d.orchestrator.Stop(ctx); err != nil {
		d.logger.Error("publish orchestrator stop failed", logfields.Error(err))
	}

	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			d.logger.Warn("notifier close failed", logfields.Error(err))
		}
	}
	if err := d.store.Close(); err != nil {
		d.logger.Error("event store close failed", logfields.Error(err))
	}
	d.bus.Close()

	d.wg.Wait()

	d.status.Store(StatusStopped)
	d.logger.Info("daemon stopped",
		slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

// applyConfig runs on configuration reloads. Backends, listeners and
// the event store are fixed for the process lifetime; only the logging
// level follows the file.
func (d *Daemon) applyConfig(next *config.Config) {
	if d.logLevel == nil {
		return
	}
	level := next.Logging.SlogLevel()
	if level != d.logLevel.Level() {
		d.logLevel.Set(level)
		d.logger.Info("log level updated", slog.String("level", level.String()))
	}
}

func (d *Daemon) sweepSessions() {
	defer d.wg.Done()
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			if n := d.sessions.Sweep(); n > 0 {
				d.logger.Debug("sessions swept", slog.Int("expired", n))
			}
		}
	}
}

func isServerClosed(err error) bool { return errors.Is(err, http.ErrServerClosed) }
