package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/backend/providers"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/website"
)

type fakeHosting struct {
	id      string
	siteURL string
}

func (f *fakeHosting) ID() string          { return f.id }
func (f *fakeHosting) DisplayName() string { return "Fake deploy" }
func (f *fakeHosting) Type() backend.Type  { return backend.TypeHosting }

func (f *fakeHosting) AuthorizeURL(context.Context, *session.Session) (string, error) {
	return "", nil
}
func (f *fakeHosting) IsLoggedIn(context.Context, *session.Session) bool { return true }
func (f *fakeHosting) Logout(context.Context, *session.Session) error    { return nil }

func (f *fakeHosting) UserData(context.Context, *session.Session) (backend.User, error) {
	return backend.User{Name: "Deployer"}, nil
}

func (f *fakeHosting) Init(context.Context, *session.Session, string) error { return nil }

func (f *fakeHosting) Publish(_ context.Context, _ *session.Session, _ string, _ site.Settings, files []site.File, status backend.StatusFunc) (backend.JobData, error) {
	if status != nil {
		status("uploading bundle")
	}
	return backend.JobData{Message: "deployed"}, nil
}

func (f *fakeHosting) WebsiteURL(context.Context, *session.Session, string) (string, error) {
	return f.siteURL, nil
}

type testEnv struct {
	t        *testing.T
	srv      *Server
	ts       *httptest.Server
	client   *http.Client
	websites *website.Service
	bus      *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storage, err := providers.NewFSStorage(providers.FSStorageConfig{Root: t.TempDir(), Logger: logger})
	require.NoError(t, err)

	registry := backend.NewRegistry(logger)
	require.NoError(t, registry.Register(storage))
	require.NoError(t, registry.Register(&fakeHosting{id: "deploy", siteURL: "https://site.example"}))

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	websites := website.NewService(registry, bus, logger)

	orch, err := publish.New(publish.Config{
		Renderer: render.NewHTMLRenderer(logger),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Stop(ctx)
	})

	srv, err := New(Config{
		Addr:           "127.0.0.1:0",
		RequestTimeout: 5 * time.Second,
		Sessions:       session.NewManager(0),
		Registry:       registry,
		Websites:       websites,
		Orchestrator:   orch,
		Bus:            bus,
		Logger:         logger,
	})
	require.NoError(t, err)
	srv.sseKeepalive = 100 * time.Millisecond

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		t:        t,
		srv:      srv,
		ts:       ts,
		client:   &http.Client{Jar: jar},
		websites: websites,
		bus:      bus,
	}
}

func (e *testEnv) do(method, path string, body any) (*http.Response, map[string]any) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func (e *testEnv) openWebsite(websiteID string) {
	e.t.Helper()
	resp, _ := e.do(http.MethodPost, "/api/v1/website/"+websiteID+"/open", nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.MethodGet, "/api/v1/backend", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c.Value
		}
	}
	require.NotEmpty(t, cookie)

	// The jar replays the cookie, so no new session is minted.
	resp2, _ := env.do(http.MethodGet, "/api/v1/backend", nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	for _, c := range resp2.Cookies() {
		require.NotEqual(t, SessionCookie, c.Name)
	}
}

func TestOpenAndDocumentRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodPost, "/api/v1/website/home/open", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "home", body["websiteId"])
	require.Contains(t, body, "document")

	resp, _ = env.do(http.MethodGet, "/api/v1/website/home/document", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDocumentRequiresOpenWebsite(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(http.MethodGet, "/api/v1/website/closed/document", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", body["code"])
}

func TestPageLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.openWebsite("site-1")
	base := "/api/v1/website/site-1/pages"

	resp, created := env.do(http.MethodPost, base, map[string]any{"name": "Home"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "Home", created["name"])
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp, patched := env.do(http.MethodPatch, base+"/"+id, map[string]any{"name": "Landing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Landing", patched["name"])
	require.Equal(t, id, patched["id"])

	resp, listed := env.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pages, _ := listed["pages"].([]any)
	require.Len(t, pages, 1)

	resp, _ = env.do(http.MethodPost, base+"/"+id+"/move", map[string]any{"toIndex": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodDelete, base+"/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, listed = env.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pages, _ = listed["pages"].([]any)
	require.Empty(t, pages)
}

func TestEntityErrorContract(t *testing.T) {
	env := newTestEnv(t)
	env.openWebsite("site-err")
	base := "/api/v1/website/site-err/pages"

	resp, body := env.do(http.MethodPatch, base+"/ghost", map[string]any{"name": "X"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", body["code"])

	resp, _ = env.do(http.MethodDelete, base+"/ghost", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, env.ts.URL+base, bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	raw, err := env.client.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)

	// Client-chosen page ids are allowed; duplicates conflict.
	resp, _ = env.do(http.MethodPost, base, map[string]any{"id": "p1", "name": "A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = env.do(http.MethodPost, base, map[string]any{"id": "p1", "name": "B"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "already_exists", body["code"])
}

func TestElementAndStyleRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.openWebsite("site-el")

	resp, el := env.do(http.MethodPost, "/api/v1/website/site-el/elements",
		map[string]any{"type": "text", "content": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, el["id"])

	resp, _ = env.do(http.MethodPost, "/api/v1/website/site-el/styles",
		map[string]any{"selectors": []string{".hero"}, "declarations": map[string]string{"color": "red"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, listed := env.do(http.MethodGet, "/api/v1/website/site-el/elements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	elements, _ := listed["elements"].([]any)
	require.Len(t, elements, 1)
}

func TestPatchSiteSingleton(t *testing.T) {
	env := newTestEnv(t)
	env.openWebsite("site-s")

	resp, body := env.do(http.MethodPatch, "/api/v1/website/site-s/site",
		map[string]any{"name": "My site"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "My site", body["name"])

	resp, _ = env.do(http.MethodPatch, "/api/v1/website/site-s/ui",
		map[string]any{"currentPageId": "p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPanicRecovery(t *testing.T) {
	env := newTestEnv(t)
	env.srv.router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	resp, body := env.do(http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "internal server error", body["error"])
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
