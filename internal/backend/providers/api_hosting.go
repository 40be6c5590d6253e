package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// maxAPIResponseBytes caps how much of a remote response body is read.
const maxAPIResponseBytes = 1 << 20

// APIHostingConfig configures hosting through a remote deploy service.
type APIHostingConfig struct {
	ID          string
	DisplayName string

	// Endpoint is the base URL of the deploy service. Expected routes:
	// GET /user, POST /sites/{id}/deploy, GET /sites/{id}.
	Endpoint string

	// ConsoleURL is where a browser obtains an access token; returned by
	// AuthorizeURL.
	ConsoleURL string

	Client *http.Client
	Logger *slog.Logger
}

// APIHosting publishes by POSTing the rendered bundle to a remote deploy
// service. Tokens are held per session; remote calls go through a circuit
// breaker so a dead endpoint fails fast.
type APIHosting struct {
	id          string
	displayName string
	endpoint    *url.URL
	consoleURL  string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger

	mu     sync.RWMutex
	tokens map[string]string
}

var (
	_ backend.HostingProvider    = (*APIHosting)(nil)
	_ backend.TokenAuthenticator = (*APIHosting)(nil)
)

// NewAPIHosting validates the endpoint and builds the backend.
func NewAPIHosting(cfg APIHostingConfig) (*APIHosting, error) {
	if cfg.Endpoint == "" {
		return nil, ferrors.ConfigError("api hosting requires an endpoint").Build()
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, ferrors.ConfigError("api hosting endpoint must be an absolute url").
			WithContext("url", cfg.Endpoint).
			Build()
	}
	id := cfg.ID
	if id == "" {
		id = "api"
	}
	name := cfg.DisplayName
	if name == "" {
		name = "Deploy service"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &APIHosting{
		id:          id,
		displayName: name,
		endpoint:    endpoint,
		consoleURL:  cfg.ConsoleURL,
		client:      client,
		logger:      logger,
		tokens:      make(map[string]string),
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hosting-" + id,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("hosting circuit breaker state changed",
				logfields.Name(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return a, nil
}

func (a *APIHosting) ID() string          { return a.id }
func (a *APIHosting) DisplayName() string { return a.displayName }
func (a *APIHosting) Type() backend.Type  { return backend.TypeHosting }

func (a *APIHosting) AuthorizeURL(ctx context.Context, sess *session.Session) (string, error) {
	return a.consoleURL, nil
}

func (a *APIHosting) IsLoggedIn(ctx context.Context, sess *session.Session) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.tokens[sess.Key()]
	return ok
}

func (a *APIHosting) Logout(ctx context.Context, sess *session.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tokens, sess.Key())
	return nil
}

// LoginWithToken verifies the token against the remote service and stores
// it for the session.
func (a *APIHosting) LoginWithToken(ctx context.Context, sess *session.Session, token string) error {
	if token == "" {
		return ferrors.ValidationError("token is required").Build()
	}
	res, err := a.call(ctx, http.MethodGet, token, nil, "user")
	if err != nil {
		return err
	}
	switch {
	case res.status == http.StatusOK:
	case res.status == http.StatusUnauthorized || res.status == http.StatusForbidden:
		return ferrors.AuthError("token rejected by deploy service").
			WithContext("backend_id", a.id).
			Build()
	default:
		return remoteErr(res, "verify token")
	}

	a.mu.Lock()
	a.tokens[sess.Key()] = token
	a.mu.Unlock()
	a.logger.Info("session logged in to deploy service",
		logfields.BackendID(a.id),
		logfields.SessionID(sess.Key()))
	return nil
}

func (a *APIHosting) UserData(ctx context.Context, sess *session.Session) (backend.User, error) {
	token, ok := a.token(sess)
	if !ok {
		return backend.User{}, notLoggedIn(a.id)
	}
	res, err := a.call(ctx, http.MethodGet, token, nil, "user")
	if err != nil {
		return backend.User{}, err
	}
	if res.status == http.StatusUnauthorized {
		return backend.User{}, notLoggedIn(a.id)
	}
	if res.status != http.StatusOK {
		return backend.User{}, remoteErr(res, "fetch user")
	}
	var u backend.User
	if err := json.Unmarshal(res.body, &u); err != nil {
		return backend.User{}, ferrors.WrapError(err, ferrors.CategoryHosting, "decode user").Build()
	}
	return u, nil
}

func (a *APIHosting) Init(ctx context.Context, sess *session.Session, websiteID string) error {
	if _, ok := a.token(sess); !ok {
		return notLoggedIn(a.id)
	}
	return nil
}

type deployBundle struct {
	Settings site.Settings `json:"settings"`
	Files    []site.File   `json:"files"`
}

// Publish uploads the bundle to the deploy service.
func (a *APIHosting) Publish(ctx context.Context, sess *session.Session, websiteID string, settings site.Settings, files []site.File, status backend.StatusFunc) (backend.JobData, error) {
	if status == nil {
		status = func(string) {}
	}
	token, ok := a.token(sess)
	if !ok {
		return backend.JobData{}, notLoggedIn(a.id)
	}

	payload, err := json.Marshal(deployBundle{Settings: settings, Files: files})
	if err != nil {
		return backend.JobData{}, ferrors.WrapError(err, ferrors.CategoryHosting, "encode bundle").Build()
	}

	status(fmt.Sprintf("uploading %d files", len(files)))
	res, err := a.call(ctx, http.MethodPost, token, payload, "sites", websiteID, "deploy")
	if err != nil {
		return backend.JobData{}, err
	}
	switch {
	case res.status == http.StatusOK || res.status == http.StatusCreated:
	case res.status == http.StatusUnauthorized:
		return backend.JobData{}, notLoggedIn(a.id)
	default:
		return backend.JobData{}, remoteErr(res, "deploy")
	}

	var data backend.JobData
	if err := json.Unmarshal(res.body, &data); err != nil {
		return backend.JobData{}, ferrors.WrapError(err, ferrors.CategoryHosting, "decode deploy response").Build()
	}
	if data.Message == "" {
		data.Message = fmt.Sprintf("deployed %d files", len(files))
	}
	status("deploy accepted")
	return data, nil
}

// WebsiteURL asks the service where the site is served; unknown sites
// return "".
func (a *APIHosting) WebsiteURL(ctx context.Context, sess *session.Session, websiteID string) (string, error) {
	token, ok := a.token(sess)
	if !ok {
		return "", notLoggedIn(a.id)
	}
	res, err := a.call(ctx, http.MethodGet, token, nil, "sites", websiteID)
	if err != nil {
		return "", err
	}
	if res.status == http.StatusNotFound {
		return "", nil
	}
	if res.status != http.StatusOK {
		return "", remoteErr(res, "fetch website url")
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(res.body, &out); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryHosting, "decode website url").Build()
	}
	return out.URL, nil
}

func (a *APIHosting) token(sess *session.Session) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tokens[sess.Key()]
	return t, ok
}

type apiResult struct {
	status int
	body   []byte
}

// call performs one request through the circuit breaker. Responses below
// 500 count as breaker successes; their status is mapped by the caller.
func (a *APIHosting) call(ctx context.Context, method, token string, payload []byte, parts ...string) (apiResult, error) {
	target := a.endpoint.JoinPath(parts...).String()

	out, err := a.breaker.Execute(func() (any, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s %s: status %d", method, target, resp.StatusCode)
		}
		return apiResult{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apiResult{}, ferrors.WrapError(err, ferrors.CategoryHosting, "deploy service unavailable").
				WithContext("url", target).
				Build()
		}
		return apiResult{}, ferrors.WrapError(err, ferrors.CategoryNetwork, "call deploy service").
			WithContext("url", target).
			Build()
	}
	return out.(apiResult), nil
}

func notLoggedIn(backendID string) error {
	return ferrors.AuthError("not logged in").
		WithContext("backend_id", backendID).
		Build()
}

func remoteErr(res apiResult, op string) error {
	msg := op + " failed"
	snippet := string(res.body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return ferrors.NewError(ferrors.CategoryHosting, msg).
		WithContext("status", res.status).
		WithContext("body", snippet).
		Build()
}
