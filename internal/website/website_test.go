package website

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/backend/providers"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/state"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()

	storage, err := providers.NewFSStorage(providers.FSStorageConfig{Root: root, Logger: logger})
	require.NoError(t, err)

	registry := backend.NewRegistry(logger)
	require.NoError(t, registry.Register(storage))

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	return NewService(registry, bus, logger), root
}

func testSession() *session.Session {
	return &session.Session{ID: "s1"}
}

func writeDocument(t *testing.T, root, websiteID string, doc site.Document) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	dir := filepath.Join(root, websiteID)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, providers.DocumentFileName), data, 0o644))
}

func TestOpenMissingDocumentStartsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	container, err := svc.Open(context.Background(), testSession(), "fresh", "")
	require.NoError(t, err)

	doc := container.Snapshot()
	require.Empty(t, doc.Pages)
	require.Empty(t, doc.Elements)
}

func TestOpenReadsStoredDocument(t *testing.T) {
	svc, root := newTestService(t)
	writeDocument(t, root, "blog", site.Document{
		Pages: []site.Page{{ID: "p1", Name: "Home", Slug: "index"}},
		Site:  site.Settings{Name: "My blog"},
	})

	container, err := svc.Open(context.Background(), testSession(), "blog", "")
	require.NoError(t, err)

	doc := container.Snapshot()
	require.Len(t, doc.Pages, 1)
	require.Equal(t, "Home", doc.Pages[0].Name)
	require.Equal(t, "My blog", doc.Site.Name)
}

func TestOpenRequiresWebsiteID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Open(context.Background(), testSession(), "", "")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestOpenReturnsCachedContainer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Open(ctx, testSession(), "site-1", "")
	require.NoError(t, err)

	create := &state.CreatePage{Page: site.Page{Name: "About"}}
	require.NoError(t, first.Dispatch(create))

	second, err := svc.Open(ctx, testSession(), "site-1", "")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Len(t, second.Snapshot().Pages, 1)
}

func TestOpenCorruptDocumentFails(t *testing.T) {
	svc, root := newTestService(t)
	dir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, providers.DocumentFileName), []byte("{not json"), 0o644))

	_, err := svc.Open(context.Background(), testSession(), "broken", "")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryStorage))
}

func TestGetNotOpen(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get("never-opened")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestSaveRoundTrip(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()
	sess := testSession()

	container, err := svc.Open(ctx, sess, "shop", "")
	require.NoError(t, err)

	create := &state.CreatePage{Page: site.Page{Name: "Catalog", Slug: "catalog"}}
	require.NoError(t, container.Dispatch(create))
	require.NoError(t, container.Dispatch(&state.PatchSite{Partial: json.RawMessage(`{"name":"Shop"}`)}))

	require.NoError(t, svc.Save(ctx, sess, "shop", ""))

	data, err := os.ReadFile(filepath.Join(root, "shop", providers.DocumentFileName))
	require.NoError(t, err)
	var stored site.Document
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored.Pages, 1)
	require.Equal(t, "Catalog", stored.Pages[0].Name)
	require.Equal(t, "Shop", stored.Site.Name)

	// A fresh service sees the saved state.
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	reloaded := NewService(mustRegistry(t, root), bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	container2, err := reloaded.Open(ctx, sess, "shop", "")
	require.NoError(t, err)
	require.Equal(t, "Catalog", container2.Snapshot().Pages[0].Name)
}

func mustRegistry(t *testing.T, root string) *backend.Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := providers.NewFSStorage(providers.FSStorageConfig{Root: root, Logger: logger})
	require.NoError(t, err)
	registry := backend.NewRegistry(logger)
	require.NoError(t, registry.Register(storage))
	return registry
}

func TestSaveRequiresOpenWebsite(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Save(context.Background(), testSession(), "not-open", "")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestCloseDropsContainer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testSession(), "temp", "")
	require.NoError(t, err)
	require.Contains(t, svc.OpenWebsites(), "temp")

	svc.Close("temp")
	_, err = svc.Get("temp")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	require.Empty(t, svc.OpenWebsites())
}
