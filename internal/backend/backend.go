// Package backend defines the storage and hosting backend interfaces and
// the registry that resolves which backend serves a request. Backends are
// registered once at process start; login state is session-scoped and lives
// inside each backend, keyed by session id.
package backend

import (
	"context"

	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Type tags a backend as storage or hosting. A backend serves exactly one
// capability; implementations offering both register twice under distinct
// ids.
type Type string

const (
	TypeStorage Type = "storage"
	TypeHosting Type = "hosting"
)

// Valid reports whether t is a known backend type.
func (t Type) Valid() bool { return t == TypeStorage || t == TypeHosting }

// StatusFunc receives progress messages during long provider operations.
// Providers call it best-effort; a nil StatusFunc must be tolerated by
// callers constructing one, so providers always receive a non-nil func.
type StatusFunc func(message string)

// User describes the account a session is logged in as.
type User struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// JobData is what a hosting backend reports back from a publish: where the
// site ended up and a human-readable outcome.
type JobData struct {
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Descriptor is the outward-facing description of a backend for one
// session. It never exposes session internals.
type Descriptor struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Type         Type   `json:"type"`
	IsLoggedIn   bool   `json:"isLoggedIn"`
	AuthorizeURL string `json:"authorizeUrl,omitempty"`
}

// Backend is the capability-independent surface every backend implements.
// All blocking operations take a context; login state is per session.
type Backend interface {
	ID() string
	DisplayName() string
	Type() Type

	// AuthorizeURL returns where a browser starts this backend's auth
	// flow, or "" when the backend has none.
	AuthorizeURL(ctx context.Context, sess *session.Session) (string, error)
	IsLoggedIn(ctx context.Context, sess *session.Session) bool
	Logout(ctx context.Context, sess *session.Session) error

	// UserData returns the logged-in account; AuthError when the session
	// is not logged in.
	UserData(ctx context.Context, sess *session.Session) (User, error)

	// Init prepares backend-side state for a website, first use only.
	Init(ctx context.Context, sess *session.Session, websiteID string) error
}

// TokenAuthenticator is implemented by backends whose auth flow ends with
// the client handing over a token. The token is stored per session.
type TokenAuthenticator interface {
	LoginWithToken(ctx context.Context, sess *session.Session, token string) error
}

// StorageProvider is a backend that stores website files.
type StorageProvider interface {
	Backend

	ListWebsites(ctx context.Context, sess *session.Session) ([]site.WebsiteMeta, error)
	ReadFile(ctx context.Context, sess *session.Session, websiteID, path string) (site.File, error)

	// WriteFiles stores the batch and returns the paths written, in input
	// order.
	WriteFiles(ctx context.Context, sess *session.Session, websiteID string, files []site.File, status StatusFunc) ([]string, error)
	DeleteFiles(ctx context.Context, sess *session.Session, websiteID string, paths []string) error

	ListDir(ctx context.Context, sess *session.Session, websiteID, path string) ([]site.FileInfo, error)
	CreateDir(ctx context.Context, sess *session.Session, websiteID, path string) error
	DeleteDir(ctx context.Context, sess *session.Session, websiteID, path string) error

	SiteMeta(ctx context.Context, sess *session.Session, websiteID string) (site.WebsiteMeta, error)
}

// HostingProvider is a backend that makes a rendered site reachable.
type HostingProvider interface {
	Backend

	Publish(ctx context.Context, sess *session.Session, websiteID string, settings site.Settings, files []site.File, status StatusFunc) (JobData, error)

	// WebsiteURL returns where the published site is served, or "" when
	// the backend cannot know it.
	WebsiteURL(ctx context.Context, sess *session.Session, websiteID string) (string, error)
}
