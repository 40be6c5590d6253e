package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func TestDirHostingPublish(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDirHosting(DirHostingConfig{Dir: dir, BaseURL: "https://sites.example"})
	require.NoError(t, err)

	sess := &session.Session{ID: "s1"}
	var progress []string
	data, err := h.Publish(context.Background(), sess, "w1", site.Settings{Name: "W1"}, []site.File{
		{Path: "index.html", Content: []byte("<html></html>")},
		{Path: "css/site.css", Content: []byte("body{}")},
	}, func(msg string) { progress = append(progress, msg) })
	require.NoError(t, err)

	require.Equal(t, "https://sites.example/w1/", data.URL)
	require.Equal(t, "published 2 files", data.Message)
	require.Len(t, progress, 2)

	got, err := os.ReadFile(filepath.Join(dir, "w1", "css", "site.css"))
	require.NoError(t, err)
	require.Equal(t, []byte("body{}"), got)
}

func TestDirHostingWebsiteURLWithoutBase(t *testing.T) {
	h, err := NewDirHosting(DirHostingConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	u, err := h.WebsiteURL(context.Background(), &session.Session{ID: "s1"}, "w1")
	require.NoError(t, err)
	require.Empty(t, u)
}

func TestDirHostingAlwaysLoggedIn(t *testing.T) {
	h, err := NewDirHosting(DirHostingConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	require.True(t, h.IsLoggedIn(context.Background(), nil))
	require.NoError(t, h.Logout(context.Background(), nil))
}
