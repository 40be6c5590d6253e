package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func newDeployServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "Jordan", "email": "jordan@example.com"})
	})
	mux.HandleFunc("POST /sites/w1/deploy", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var bundle struct {
			Settings site.Settings `json:"settings"`
			Files    []site.File   `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil || len(bundle.Files) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://w1.sites.example", "message": "deployed"})
	})
	mux.HandleFunc("GET /sites/w1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://w1.sites.example"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAPIHostingForTest(t *testing.T, endpoint string) *APIHosting {
	t.Helper()
	h, err := NewAPIHosting(APIHostingConfig{Endpoint: endpoint, ConsoleURL: "https://console.example"})
	require.NoError(t, err)
	return h
}

func TestAPIHostingLoginPerSession(t *testing.T) {
	srv := newDeployServer(t)
	h := newAPIHostingForTest(t, srv.URL)
	ctx := context.Background()

	s1 := &session.Session{ID: "s1"}
	s2 := &session.Session{ID: "s2"}

	err := h.LoginWithToken(ctx, s1, "bad-token")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))
	require.False(t, h.IsLoggedIn(ctx, s1))

	require.NoError(t, h.LoginWithToken(ctx, s1, "good-token"))
	require.True(t, h.IsLoggedIn(ctx, s1))
	require.False(t, h.IsLoggedIn(ctx, s2))

	u, err := h.UserData(ctx, s1)
	require.NoError(t, err)
	require.Equal(t, "Jordan", u.Name)

	require.NoError(t, h.Logout(ctx, s1))
	require.False(t, h.IsLoggedIn(ctx, s1))

	_, err = h.UserData(ctx, s1)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))
}

func TestAPIHostingRejectsEmptyToken(t *testing.T) {
	srv := newDeployServer(t)
	h := newAPIHostingForTest(t, srv.URL)

	err := h.LoginWithToken(context.Background(), &session.Session{ID: "s1"}, "")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestAPIHostingPublish(t *testing.T) {
	srv := newDeployServer(t)
	h := newAPIHostingForTest(t, srv.URL)
	ctx := context.Background()
	sess := &session.Session{ID: "s1"}

	// Publishing without a login never reaches the wire.
	_, err := h.Publish(ctx, sess, "w1", site.Settings{}, []site.File{{Path: "index.html"}}, nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))

	require.NoError(t, h.LoginWithToken(ctx, sess, "good-token"))

	var progress []string
	data, err := h.Publish(ctx, sess, "w1", site.Settings{Name: "W1"}, []site.File{
		{Path: "index.html", Content: []byte("<html></html>")},
	}, func(msg string) { progress = append(progress, msg) })
	require.NoError(t, err)
	require.Equal(t, "https://w1.sites.example", data.URL)
	require.Equal(t, "deployed", data.Message)
	require.NotEmpty(t, progress)

	u, err := h.WebsiteURL(ctx, sess, "w1")
	require.NoError(t, err)
	require.Equal(t, "https://w1.sites.example", u)
}

func TestAPIHostingAuthorizeURL(t *testing.T) {
	srv := newDeployServer(t)
	h := newAPIHostingForTest(t, srv.URL)

	u, err := h.AuthorizeURL(context.Background(), &session.Session{ID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "https://console.example", u)
}

func TestAPIHostingBreakerOpensOnServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	h := newAPIHostingForTest(t, srv.URL)
	ctx := context.Background()
	sess := &session.Session{ID: "s1"}

	// Each failed verification counts against the breaker.
	for range 5 {
		err := h.LoginWithToken(ctx, sess, "any-token")
		require.Error(t, err)
		require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
	}

	// The breaker is open now and fails fast.
	err := h.LoginWithToken(ctx, sess, "any-token")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryHosting))
}
