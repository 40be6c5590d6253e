package daemon

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1"},
		Storage: []config.StorageBackend{
			{ID: "fs", Type: "fs", Root: filepath.Join(dir, "sites")},
		},
		Hosting: []config.HostingBackend{
			{ID: "preview", Type: "dir", Dir: filepath.Join(dir, "public")},
		},
		EventStore: config.EventStoreConfig{Path: filepath.Join(dir, "events.db")},
	}
	return cfg
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestDaemonLifecycle(t *testing.T) {
	d, err := New(testConfig(t), Options{Logger: discardLogger()})
	require.NoError(t, err)
	require.Equal(t, StatusStopped, d.GetStatus())

	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	require.Equal(t, StatusRunning, d.GetStatus())

	err = d.Start(ctx)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryDaemon))

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))
	require.Equal(t, StatusStopped, d.GetStatus())

	// Stopping twice is a no-op.
	require.NoError(t, d.Stop(stopCtx))
}

func TestBuildRegistryFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: []config.StorageBackend{
			{ID: "local", Type: "fs", Root: filepath.Join(dir, "sites")},
			{ID: "repo", Type: "git", Dir: filepath.Join(dir, "repo")},
		},
		Hosting: []config.HostingBackend{
			{ID: "preview", Type: "dir", Dir: filepath.Join(dir, "public")},
			{ID: "deploy", Type: "api", Endpoint: "http://127.0.0.1:9/api"},
		},
	}

	registry, err := buildRegistry(cfg, discardLogger())
	require.NoError(t, err)

	for _, id := range []string{"local", "repo", "preview", "deploy"} {
		b, err := registry.Get(id)
		require.NoError(t, err)
		require.Equal(t, id, b.ID())
	}
	require.Len(t, registry.List(backend.TypeStorage), 2)
	require.Len(t, registry.List(backend.TypeHosting), 2)
}

func TestBuildRegistryUnknownType(t *testing.T) {
	_, err := buildStorage(config.StorageBackend{ID: "x", Type: "ftp"}, discardLogger())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = buildHosting(config.HostingBackend{ID: "y", Type: "s3"}, discardLogger())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestApplyConfigUpdatesLogLevel(t *testing.T) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	d, err := New(testConfig(t), Options{Logger: discardLogger(), LogLevel: level})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	next := testConfig(t)
	next.Logging.Level = "debug"
	d.applyConfig(next)
	require.Equal(t, slog.LevelDebug, level.Level())

	next.Logging.Level = "warn"
	d.applyConfig(next)
	require.Equal(t, slog.LevelWarn, level.Level())
}
