// Package render turns a website document into the static files that get
// written to storage and handed to hosting. The shipped renderer produces
// one HTML file per page, a stylesheet built from the style rule
// collection, and a JSON site manifest. Rendering is deterministic: the
// same document always produces byte-identical files.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Well-known output paths.
const (
	IndexName      = "index.html"
	StylesheetName = "styles.css"
	ManifestName   = "manifest.json"
)

// Renderer abstracts how a document becomes publishable files. The publish
// pipeline only depends on this interface, so tests and alternative
// renderers (remote render service, theme engines) can be swapped in
// without touching orchestration.
type Renderer interface {
	Render(ctx context.Context, doc site.Document) ([]site.File, error)
}

// HTMLRenderer is the built-in Renderer.
type HTMLRenderer struct {
	md     goldmark.Markdown
	logger *slog.Logger
}

func NewHTMLRenderer(logger *slog.Logger) *HTMLRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLRenderer{
		md:     goldmark.New(),
		logger: logger,
	}
}

// Render produces the full output file set: pages in collection order
// (first page at index.html), then the stylesheet, then the manifest.
func (r *HTMLRenderer) Render(ctx context.Context, doc site.Document) ([]site.File, error) {
	if len(doc.Pages) == 0 {
		return nil, ferrors.RenderError("document has no pages").Build()
	}

	elements := doc.ElementIndex()
	paths := pagePaths(doc.Pages)

	files := make([]site.File, 0, len(doc.Pages)+2)
	var refs []string
	seen := make(map[string]bool)
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRender, "render canceled").Build()
		}
		content := r.renderPage(doc, elements, page)
		files = append(files, site.File{Path: paths[i], Content: content})
		r.logger.Debug("rendered page",
			logfields.EntityID(page.ID),
			logfields.Path(paths[i]))

		for _, ref := range ExtractAssetRefs(content) {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}

	files = append(files, site.File{Path: StylesheetName, Content: []byte(Stylesheet(doc.Styles))})

	manifest, err := buildManifest(doc, paths)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "encode site manifest").Build()
	}
	files = append(files, site.File{Path: ManifestName, Content: manifest})

	r.warnUnknownAssets(doc, refs)
	return files, nil
}

// pagePaths assigns one output path per page. The first page becomes
// index.html; the rest derive from their slug, falling back to the
// slugified name, then to a positional name. Collisions get a numeric
// suffix so no page silently overwrites another.
func pagePaths(pages []site.Page) []string {
	paths := make([]string, len(pages))
	used := make(map[string]bool, len(pages))
	for i, page := range pages {
		var path string
		if i == 0 {
			path = IndexName
		} else {
			slug := Slugify(page.Slug)
			if slug == "" {
				slug = Slugify(page.Name)
			}
			if slug == "" {
				slug = fmt.Sprintf("page-%d", i+1)
			}
			path = slug + ".html"
		}

		base := strings.TrimSuffix(path, ".html")
		for n := 2; used[path]; n++ {
			path = fmt.Sprintf("%s-%d.html", base, n)
		}
		used[path] = true
		paths[i] = path
	}
	return paths
}

// Manifest is the machine-readable site summary written next to the
// rendered pages.
type Manifest struct {
	Name      string         `json:"name,omitempty"`
	Lang      string         `json:"lang,omitempty"`
	Generator string         `json:"generator"`
	Pages     []ManifestPage `json:"pages"`
	Assets    []string       `json:"assets,omitempty"`
	Fonts     []string       `json:"fonts,omitempty"`
}

type ManifestPage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

func buildManifest(doc site.Document, paths []string) ([]byte, error) {
	m := Manifest{
		Name:      doc.Site.Name,
		Lang:      doc.Site.Lang,
		Generator: "sitebuilder",
		Pages:     make([]ManifestPage, len(doc.Pages)),
	}
	for i, p := range doc.Pages {
		m.Pages[i] = ManifestPage{ID: p.ID, Name: p.Name, Path: paths[i]}
	}
	for _, a := range doc.Assets {
		m.Assets = append(m.Assets, a.Src)
	}
	for _, f := range doc.Fonts {
		m.Fonts = append(m.Fonts, f.Family)
	}

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// warnUnknownAssets flags local references in the rendered output that
// match no asset entity. That usually means an element still points at a
// deleted asset.
func (r *HTMLRenderer) warnUnknownAssets(doc site.Document, refs []string) {
	known := make(map[string]bool, len(doc.Assets)+1)
	for _, a := range doc.Assets {
		known[a.Src] = true
	}
	known[doc.Site.Favicon] = true
	for _, ref := range refs {
		if !known[ref] {
			r.logger.Warn("rendered output references unknown asset", logfields.Path(ref))
		}
	}
}
