// Package providers ships the built-in storage and hosting backends: local
// filesystem and git-repository storage, and directory and remote-API
// hosting. All of them keep login state per session where they have any.
package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// DocumentFileName is the file a website's document is stored under.
const DocumentFileName = "website.json"

// FSStorageConfig configures a local filesystem storage backend.
type FSStorageConfig struct {
	ID          string
	DisplayName string
	Root        string
	Logger      *slog.Logger
}

// FSStorage stores website files under Root/<websiteID>/. It has no auth
// flow: every session is logged in.
type FSStorage struct {
	id          string
	displayName string
	root        string
	logger      *slog.Logger
}

var _ backend.StorageProvider = (*FSStorage)(nil)

// NewFSStorage creates the backend and its root directory.
func NewFSStorage(cfg FSStorageConfig) (*FSStorage, error) {
	if cfg.Root == "" {
		return nil, ferrors.ConfigError("fs storage requires a root directory").Build()
	}
	if err := os.MkdirAll(cfg.Root, 0750); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStorage, "create storage root").
			WithContext("path", cfg.Root).
			Build()
	}
	id := cfg.ID
	if id == "" {
		id = "fs"
	}
	name := cfg.DisplayName
	if name == "" {
		name = "Local files"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStorage{id: id, displayName: name, root: cfg.Root, logger: logger}, nil
}

func (f *FSStorage) ID() string          { return f.id }
func (f *FSStorage) DisplayName() string { return f.displayName }
func (f *FSStorage) Type() backend.Type  { return backend.TypeStorage }

func (f *FSStorage) AuthorizeURL(ctx context.Context, sess *session.Session) (string, error) {
	return "", nil
}

func (f *FSStorage) IsLoggedIn(ctx context.Context, sess *session.Session) bool { return true }

func (f *FSStorage) Logout(ctx context.Context, sess *session.Session) error { return nil }

func (f *FSStorage) UserData(ctx context.Context, sess *session.Session) (backend.User, error) {
	return backend.User{Name: "Local user"}, nil
}

// Init creates the website directory.
func (f *FSStorage) Init(ctx context.Context, sess *session.Session, websiteID string) error {
	dir, err := f.websiteDir(websiteID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return storageErr(err, "init website", websiteID)
	}
	return nil
}

// ListWebsites lists the website directories under the root, sorted by id.
func (f *FSStorage) ListWebsites(ctx context.Context, sess *session.Session) ([]site.WebsiteMeta, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, storageErr(err, "list websites", "")
	}
	var out []site.WebsiteMeta
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		meta, err := f.SiteMeta(ctx, sess, e.Name())
		if err != nil {
			f.logger.Warn("skipping unreadable website dir",
				logfields.WebsiteID(e.Name()),
				logfields.Error(err))
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WebsiteID < out[j].WebsiteID })
	return out, nil
}

func (f *FSStorage) ReadFile(ctx context.Context, sess *session.Session, websiteID, path string) (site.File, error) {
	full, err := f.resolve(websiteID, path)
	if err != nil {
		return site.File{}, err
	}
	// #nosec G304 -- full is confined to the storage root by resolve
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return site.File{}, ferrors.NotFoundError("file not found").
				WithContext("website_id", websiteID).
				WithContext("path", path).
				Build()
		}
		return site.File{}, storageErr(err, "read file", websiteID)
	}
	return site.File{Path: path, Content: data}, nil
}

// WriteFiles writes each file atomically (temp file then rename) and
// reports progress through status.
func (f *FSStorage) WriteFiles(ctx context.Context, sess *session.Session, websiteID string, files []site.File, status backend.StatusFunc) ([]string, error) {
	if status == nil {
		status = func(string) {}
	}
	written := make([]string, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return written, ferrors.WrapError(err, ferrors.CategoryStorage, "write canceled").
				WithContext("website_id", websiteID).
				Build()
		}
		full, err := f.resolve(websiteID, file.Path)
		if err != nil {
			return written, err
		}
		if err := writeFileAtomic(full, file.Content); err != nil {
			return written, storageErr(err, "write file", websiteID)
		}
		written = append(written, file.Path)
		status("wrote " + file.Path)
	}
	f.logger.Debug("files written",
		logfields.WebsiteID(websiteID),
		logfields.FileCount(len(written)))
	return written, nil
}

// DeleteFiles removes the given paths; paths that are already gone are
// skipped.
func (f *FSStorage) DeleteFiles(ctx context.Context, sess *session.Session, websiteID string, paths []string) error {
	for _, p := range paths {
		full, err := f.resolve(websiteID, p)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return storageErr(err, "delete file", websiteID)
		}
	}
	return nil
}

func (f *FSStorage) ListDir(ctx context.Context, sess *session.Session, websiteID, path string) ([]site.FileInfo, error) {
	full, err := f.resolve(websiteID, path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NotFoundError("directory not found").
				WithContext("website_id", websiteID).
				WithContext("path", path).
				Build()
		}
		return nil, storageErr(err, "list dir", websiteID)
	}
	out := make([]site.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info := site.FileInfo{Path: filepath.ToSlash(filepath.Join(path, e.Name()))}
		if fi, err := e.Info(); err == nil {
			info.Size = fi.Size()
			info.ModTime = fi.ModTime()
		}
		out = append(out, info)
	}
	return out, nil
}

func (f *FSStorage) CreateDir(ctx context.Context, sess *session.Session, websiteID, path string) error {
	full, err := f.resolve(websiteID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0750); err != nil {
		return storageErr(err, "create dir", websiteID)
	}
	return nil
}

func (f *FSStorage) DeleteDir(ctx context.Context, sess *session.Session, websiteID, path string) error {
	full, err := f.resolve(websiteID, path)
	if err != nil {
		return err
	}
	if filepath.Clean(full) == filepath.Clean(filepath.Join(f.root, websiteID)) {
		return ferrors.ValidationError("refusing to delete website root").
			WithContext("website_id", websiteID).
			Build()
	}
	if err := os.RemoveAll(full); err != nil {
		return storageErr(err, "delete dir", websiteID)
	}
	return nil
}

// SiteMeta reads the website's name out of its stored document, when one
// exists.
func (f *FSStorage) SiteMeta(ctx context.Context, sess *session.Session, websiteID string) (site.WebsiteMeta, error) {
	dir, err := f.websiteDir(websiteID)
	if err != nil {
		return site.WebsiteMeta{}, err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return site.WebsiteMeta{}, ferrors.NotFoundError("website not found").
				WithContext("website_id", websiteID).
				Build()
		}
		return site.WebsiteMeta{}, storageErr(err, "stat website", websiteID)
	}
	meta := site.WebsiteMeta{WebsiteID: websiteID, UpdatedAt: fi.ModTime()}

	docPath := filepath.Join(dir, DocumentFileName)
	// #nosec G304 -- docPath is confined to the storage root
	if data, err := os.ReadFile(docPath); err == nil {
		var doc struct {
			Site struct {
				Name string `json:"name"`
			} `json:"site"`
		}
		if json.Unmarshal(data, &doc) == nil {
			meta.Name = doc.Site.Name
		}
		if dfi, err := os.Stat(docPath); err == nil {
			meta.UpdatedAt = dfi.ModTime()
		}
	}
	return meta, nil
}

func (f *FSStorage) websiteDir(websiteID string) (string, error) {
	return websiteDir(f.root, websiteID)
}

func (f *FSStorage) resolve(websiteID, path string) (string, error) {
	return confine(f.root, websiteID, path)
}

// websiteDir validates the website id and returns its directory under root.
func websiteDir(root, websiteID string) (string, error) {
	if websiteID == "" || strings.ContainsAny(websiteID, "/\\") || websiteID == "." || websiteID == ".." {
		return "", ferrors.ValidationError("invalid website id").
			WithContext("website_id", websiteID).
			Build()
	}
	return filepath.Join(root, websiteID), nil
}

// confine joins path onto the website directory so it cannot escape it.
func confine(root, websiteID, path string) (string, error) {
	dir, err := websiteDir(root, websiteID)
	if err != nil {
		return "", err
	}
	cleaned := filepath.Clean("/" + filepath.FromSlash(path))
	return filepath.Join(dir, cleaned), nil
}

func storageErr(err error, op, websiteID string) error {
	b := ferrors.WrapError(err, ferrors.CategoryStorage, op)
	if websiteID != "" {
		b = b.WithContext("website_id", websiteID)
	}
	return b.Build()
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
