package render

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func demoDocument() site.Document {
	return site.Document{
		Pages: []site.Page{
			{ID: "p1", Name: "Home", Elements: []string{"e1", "e2"}},
			{ID: "p2", Name: "About Us", Elements: []string{"e3"}},
		},
		Elements: []site.Element{
			{ID: "e1", Type: site.ElementTypeText, Tag: "h1", Content: "Welcome"},
			{ID: "e2", Type: site.ElementTypeImage, Attributes: map[string]string{"src": "assets/cat.png", "alt": "cat"}},
			{ID: "e3", Type: site.ElementTypeMarkdown, Content: "## About us\n\nWe build sites."},
		},
		Assets: []site.Asset{
			{ID: "a1", Src: "assets/cat.png", Mime: "image/png"},
		},
		Styles: []site.StyleRule{
			{ID: "s1", Selectors: []string{"body"}, Declarations: map[string]string{"margin": "0"}},
		},
		Fonts: []site.Font{
			{ID: "f1", Family: "Open Sans", Variants: []string{"400"}, Provider: site.FontProviderGoogle},
		},
		Site: site.Settings{Name: "Demo Site", Lang: "de", Description: "A demo"},
	}
}

func fileByPath(t *testing.T, files []site.File, path string) site.File {
	t.Helper()
	for _, f := range files {
		if f.Path == path {
			return f
		}
	}
	t.Fatalf("no file %q in output", path)
	return site.File{}
}

func TestRenderProducesFullFileSet(t *testing.T) {
	files, err := NewHTMLRenderer(nil).Render(context.Background(), demoDocument())
	require.NoError(t, err)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	require.Equal(t, []string{"index.html", "about-us.html", "styles.css", "manifest.json"}, paths)

	index := string(fileByPath(t, files, "index.html").Content)
	require.Contains(t, index, `<html lang="de">`)
	require.Contains(t, index, "<title>Home - Demo Site</title>")
	require.Contains(t, index, `<meta name="description" content="A demo">`)
	require.Contains(t, index, "<h1>Welcome</h1>")
	require.Contains(t, index, `<img alt="cat" src="assets/cat.png">`)
	require.Contains(t, index, `<link rel="stylesheet" href="styles.css">`)

	css := string(fileByPath(t, files, "styles.css").Content)
	require.Equal(t, "body {\n  margin: 0;\n}\n", css)
}

func TestRenderMarkdownElement(t *testing.T) {
	files, err := NewHTMLRenderer(nil).Render(context.Background(), demoDocument())
	require.NoError(t, err)

	about := string(fileByPath(t, files, "about-us.html").Content)
	require.Contains(t, about, "<h2>About us</h2>")
	require.Contains(t, about, "<p>We build sites.</p>")
}

func TestRenderGoogleFontLink(t *testing.T) {
	files, err := NewHTMLRenderer(nil).Render(context.Background(), demoDocument())
	require.NoError(t, err)

	index := string(fileByPath(t, files, "index.html").Content)
	require.Contains(t, index, "https://fonts.googleapis.com/css2?family=Open+Sans:wght@400&amp;display=swap")
}

func TestRenderEscapesContentAndAttributes(t *testing.T) {
	doc := site.Document{
		Pages: []site.Page{{ID: "p1", Name: "Home", Elements: []string{"e1"}}},
		Elements: []site.Element{
			{
				ID:         "e1",
				Type:       site.ElementTypeText,
				Content:    `<script>alert("x")</script>`,
				Attributes: map[string]string{"data-note": `"><script>`},
			},
		},
	}

	files, err := NewHTMLRenderer(nil).Render(context.Background(), doc)
	require.NoError(t, err)

	index := string(fileByPath(t, files, "index.html").Content)
	require.NotContains(t, index, "<script>")
	require.Contains(t, index, "&lt;script&gt;")
	require.Contains(t, index, `data-note="&#34;&gt;&lt;script&gt;"`)
}

func TestRenderSkipsMissingAndCyclicReferences(t *testing.T) {
	doc := site.Document{
		Pages: []site.Page{{ID: "p1", Name: "Home", Elements: []string{"a", "ghost"}}},
		Elements: []site.Element{
			{ID: "a", Type: site.ElementTypeContainer, Children: []string{"b"}},
			{ID: "b", Type: site.ElementTypeContainer, Children: []string{"a"}},
		},
	}

	files, err := NewHTMLRenderer(nil).Render(context.Background(), doc)
	require.NoError(t, err)

	index := string(fileByPath(t, files, "index.html").Content)
	require.Equal(t, 2, strings.Count(index, "<div>"))
	require.Equal(t, 2, strings.Count(index, "</div>"))
}

func TestRenderPathCollisionsGetSuffixes(t *testing.T) {
	doc := site.Document{
		Pages: []site.Page{
			{ID: "p1", Name: "Home"},
			{ID: "p2", Name: "Contact"},
			{ID: "p3", Name: "Contact"},
			{ID: "p4", Name: "Index"},
			{ID: "p5", Name: "???"},
		},
	}

	paths := pagePaths(doc.Pages)
	require.Equal(t, []string{"index.html", "contact.html", "contact-2.html", "index-2.html", "page-5.html"}, paths)
}

func TestRenderEmptyDocumentFails(t *testing.T) {
	_, err := NewHTMLRenderer(nil).Render(context.Background(), site.Document{})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRender))
}

func TestRenderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTMLRenderer(nil).Render(ctx, demoDocument())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRender))
}

func TestRenderManifest(t *testing.T) {
	files, err := NewHTMLRenderer(nil).Render(context.Background(), demoDocument())
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(fileByPath(t, files, "manifest.json").Content, &m))

	require.Equal(t, "Demo Site", m.Name)
	require.Equal(t, "de", m.Lang)
	require.Equal(t, "sitebuilder", m.Generator)
	require.Len(t, m.Pages, 2)
	require.Equal(t, ManifestPage{ID: "p1", Name: "Home", Path: "index.html"}, m.Pages[0])
	require.Equal(t, ManifestPage{ID: "p2", Name: "About Us", Path: "about-us.html"}, m.Pages[1])
	require.Equal(t, []string{"assets/cat.png"}, m.Assets)
	require.Equal(t, []string{"Open Sans"}, m.Fonts)
}

func TestRenderDeterministic(t *testing.T) {
	r := NewHTMLRenderer(nil)
	first, err := r.Render(context.Background(), demoDocument())
	require.NoError(t, err)
	second, err := r.Render(context.Background(), demoDocument())
	require.NoError(t, err)
	require.Equal(t, first, second)
}
