package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func newFSForTest(t *testing.T) *FSStorage {
	t.Helper()
	fs, err := NewFSStorage(FSStorageConfig{Root: t.TempDir()})
	require.NoError(t, err)
	return fs
}

func TestFSWriteReadRoundtrip(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	var progress []string
	files := []site.File{
		{Path: "index.html", Content: []byte("<html></html>")},
		{Path: "assets/logo.svg", Content: []byte("<svg/>")},
	}
	written, err := fs.WriteFiles(ctx, sess, "w1", files, func(msg string) {
		progress = append(progress, msg)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"index.html", "assets/logo.svg"}, written)
	require.Len(t, progress, 2)

	got, err := fs.ReadFile(ctx, sess, "w1", "assets/logo.svg")
	require.NoError(t, err)
	require.Equal(t, []byte("<svg/>"), got.Content)
}

func TestFSReadMissingIsNotFound(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}

	_, err := fs.ReadFile(context.Background(), sess, "w1", "nope.html")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestFSPathConfinement(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	// Seed a file in another website.
	_, err := fs.WriteFiles(ctx, sess, "w2", []site.File{{Path: "secret.txt", Content: []byte("x")}}, nil)
	require.NoError(t, err)

	// Escaping paths are confined inside the website dir, so the read
	// misses rather than crossing into w2.
	_, err = fs.ReadFile(ctx, sess, "w1", "../w2/secret.txt")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	// Website ids with separators are rejected outright.
	_, err = fs.ReadFile(ctx, sess, "../w2", "secret.txt")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestFSListWebsitesReadsMeta(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	_, err := fs.WriteFiles(ctx, sess, "beta", []site.File{
		{Path: DocumentFileName, Content: []byte(`{"site":{"name":"Beta Site"}}`)},
	}, nil)
	require.NoError(t, err)
	_, err = fs.WriteFiles(ctx, sess, "alpha", []site.File{
		{Path: "index.html", Content: []byte("ok")},
	}, nil)
	require.NoError(t, err)

	// A dot-directory must not show up as a website.
	require.NoError(t, os.MkdirAll(filepath.Join(fs.root, ".git"), 0750))

	metas, err := fs.ListWebsites(ctx, sess)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, "alpha", metas[0].WebsiteID)
	require.Equal(t, "beta", metas[1].WebsiteID)
	require.Equal(t, "Beta Site", metas[1].Name)
	require.Empty(t, metas[0].Name)
}

func TestFSDeleteFilesSkipsMissing(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	_, err := fs.WriteFiles(ctx, sess, "w1", []site.File{{Path: "a.txt", Content: []byte("a")}}, nil)
	require.NoError(t, err)

	require.NoError(t, fs.DeleteFiles(ctx, sess, "w1", []string{"a.txt", "already-gone.txt"}))

	_, err = fs.ReadFile(ctx, sess, "w1", "a.txt")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestFSListDir(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	_, err := fs.WriteFiles(ctx, sess, "w1", []site.File{
		{Path: "assets/a.png", Content: []byte("aa")},
		{Path: "assets/b.png", Content: []byte("bbbb")},
		{Path: "assets/sub/c.png", Content: []byte("c")},
	}, nil)
	require.NoError(t, err)

	infos, err := fs.ListDir(ctx, sess, "w1", "assets")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "assets/a.png", infos[0].Path)
	require.Equal(t, int64(2), infos[0].Size)

	_, err = fs.ListDir(ctx, sess, "w1", "missing")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestFSDeleteDir(t *testing.T) {
	fs := newFSForTest(t)
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	_, err := fs.WriteFiles(ctx, sess, "w1", []site.File{{Path: "assets/a.png", Content: []byte("a")}}, nil)
	require.NoError(t, err)

	// The website root itself is protected.
	err = fs.DeleteDir(ctx, sess, "w1", ".")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	require.NoError(t, fs.DeleteDir(ctx, sess, "w1", "assets"))
	_, err = fs.ListDir(ctx, sess, "w1", "assets")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestFSSiteMetaMissingWebsite(t *testing.T) {
	fs := newFSForTest(t)

	_, err := fs.SiteMeta(context.Background(), &session.Session{ID: "s1"}, "ghost")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}
