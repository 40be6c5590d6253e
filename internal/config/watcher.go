package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

const defaultDebounce = 2 * time.Second

// Watcher reloads the configuration file when it changes on disk and
// hands the freshly loaded Config to a callback. Editors tend to fire
// several events per save, so reloads are debounced. A file that no
// longer loads keeps the previous configuration in effect.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	stop    chan struct{}
	pending chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher prepares a watcher for configPath. onChange runs on the
// watcher goroutine with a validated configuration.
func NewWatcher(configPath string, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, ferrors.ConfigError("config watcher requires a change callback").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.ConfigError("resolve configuration path").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "create file watcher").Build()
	}

	return &Watcher{
		path:     absPath,
		onChange: onChange,
		logger:   logger,
		watcher:  fsw,
		debounce: defaultDebounce,
		stop:     make(chan struct{}),
		pending:  make(chan struct{}, 1),
	}, nil
}

// Start watches the directory holding the configuration file. Watching
// the directory instead of the file keeps the watch alive across the
// rename-replace cycle editors and configuration management tools use.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "watch configuration directory").
			WithContext("path", dir).
			Build()
	}

	w.logger.Info("configuration watcher started", logfields.Path(w.path))

	w.wg.Add(2)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop ends watching and waits for the loops to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("close file watcher", logfields.Error(err))
		}
	})
	w.wg.Wait()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				w.trigger()
			case event.Op.Has(fsnotify.Remove):
				w.logger.Warn("configuration file removed", logfields.Path(w.path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	defer w.wg.Done()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.pending:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("configuration reload failed",
			logfields.Path(w.path),
			logfields.Error(err))
		return
	}
	w.logger.Info("configuration reloaded", logfields.Path(w.path))
	w.onChange(cfg)
}
