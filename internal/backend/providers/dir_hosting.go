package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// DirHostingConfig configures hosting into a locally served directory.
type DirHostingConfig struct {
	ID          string
	DisplayName string

	// Dir is where published sites land, one subdirectory per website.
	Dir string

	// BaseURL is the public prefix sites are served under.
	BaseURL string

	Logger *slog.Logger
}

// DirHosting publishes by copying the rendered files into a served
// directory. Like fs storage it has no auth flow.
type DirHosting struct {
	id          string
	displayName string
	dir         string
	baseURL     string
	logger      *slog.Logger
}

var _ backend.HostingProvider = (*DirHosting)(nil)

// NewDirHosting creates the backend and its target directory.
func NewDirHosting(cfg DirHostingConfig) (*DirHosting, error) {
	if cfg.Dir == "" {
		return nil, ferrors.ConfigError("dir hosting requires a target directory").Build()
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHosting, "create hosting dir").
			WithContext("path", cfg.Dir).
			Build()
	}
	id := cfg.ID
	if id == "" {
		id = "dir"
	}
	name := cfg.DisplayName
	if name == "" {
		name = "Local hosting"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DirHosting{id: id, displayName: name, dir: cfg.Dir, baseURL: cfg.BaseURL, logger: logger}, nil
}

func (d *DirHosting) ID() string          { return d.id }
func (d *DirHosting) DisplayName() string { return d.displayName }
func (d *DirHosting) Type() backend.Type  { return backend.TypeHosting }

func (d *DirHosting) AuthorizeURL(ctx context.Context, sess *session.Session) (string, error) {
	return "", nil
}

func (d *DirHosting) IsLoggedIn(ctx context.Context, sess *session.Session) bool { return true }

func (d *DirHosting) Logout(ctx context.Context, sess *session.Session) error { return nil }

func (d *DirHosting) UserData(ctx context.Context, sess *session.Session) (backend.User, error) {
	return backend.User{Name: "Local user"}, nil
}

func (d *DirHosting) Init(ctx context.Context, sess *session.Session, websiteID string) error {
	dir, err := websiteDir(d.dir, websiteID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return hostingErr(err, "init website", websiteID)
	}
	return nil
}

// Publish copies the files into the served directory.
func (d *DirHosting) Publish(ctx context.Context, sess *session.Session, websiteID string, settings site.Settings, files []site.File, status backend.StatusFunc) (backend.JobData, error) {
	if status == nil {
		status = func(string) {}
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return backend.JobData{}, ferrors.WrapError(err, ferrors.CategoryHosting, "publish canceled").
				WithContext("website_id", websiteID).
				Build()
		}
		full, err := confine(d.dir, websiteID, file.Path)
		if err != nil {
			return backend.JobData{}, err
		}
		if err := writeFileAtomic(full, file.Content); err != nil {
			return backend.JobData{}, hostingErr(err, "publish file", websiteID)
		}
		status("published " + file.Path)
	}

	siteURL, err := d.WebsiteURL(ctx, sess, websiteID)
	if err != nil {
		siteURL = ""
	}
	d.logger.Info("site published to directory",
		logfields.WebsiteID(websiteID),
		logfields.FileCount(len(files)),
		logfields.URL(siteURL))
	return backend.JobData{
		URL:     siteURL,
		Message: fmt.Sprintf("published %d files", len(files)),
	}, nil
}

// WebsiteURL joins the configured base URL with the website id; "" when no
// base URL is configured.
func (d *DirHosting) WebsiteURL(ctx context.Context, sess *session.Session, websiteID string) (string, error) {
	if d.baseURL == "" {
		return "", nil
	}
	u, err := url.JoinPath(d.baseURL, websiteID)
	if err != nil {
		return "", hostingErr(err, "build website url", websiteID)
	}
	return u + "/", nil
}

func hostingErr(err error, op, websiteID string) error {
	b := ferrors.WrapError(err, ferrors.CategoryHosting, op)
	if websiteID != "" {
		b = b.WithContext("website_id", websiteID)
	}
	return b.Build()
}
