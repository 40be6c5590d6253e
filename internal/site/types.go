// Package site defines the website document model: the editable entity
// collections (pages, elements, assets, styles, fonts), the site and UI
// singletons, and the file types exchanged with storage and hosting
// providers.
package site

import (
	"maps"
	"slices"
)

// Page is a top-level page of the website. Elements lists the ids of the
// page's root elements in paint order.
type Page struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Slug     string   `json:"slug,omitempty"`
	Elements []string `json:"elements,omitempty"`
}

func (p Page) EntityID() string            { return p.ID }
func (p Page) WithEntityID(id string) Page { p.ID = id; return p }

func (p Page) Clone() Page {
	c := p
	c.Elements = slices.Clone(p.Elements)
	return c
}

// Element is one node of the flat element collection. Nesting is expressed
// through Children ids rather than embedded values so that sibling edits
// keep unrelated subtrees untouched.
type Element struct {
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type"`
	Tag        string            `json:"tag,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Classes    []string          `json:"classes,omitempty"`
	Style      map[string]string `json:"style,omitempty"`
	Content    string            `json:"content,omitempty"`
	Children   []string          `json:"children,omitempty"`
}

// Element types understood by the shipped renderer. The collection accepts
// any type string; unknown types render as opaque containers.
const (
	ElementTypeContainer = "container"
	ElementTypeText      = "text"
	ElementTypeMarkdown  = "markdown"
	ElementTypeImage     = "image"
	ElementTypeLink      = "link"
)

func (e Element) EntityID() string               { return e.ID }
func (e Element) WithEntityID(id string) Element { e.ID = id; return e }

func (e Element) Clone() Element {
	c := e
	c.Attributes = maps.Clone(e.Attributes)
	c.Classes = slices.Clone(e.Classes)
	c.Style = maps.Clone(e.Style)
	c.Children = slices.Clone(e.Children)
	return c
}

// Asset is an uploaded media reference.
type Asset struct {
	ID     string `json:"id,omitempty"`
	Src    string `json:"src"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Mime   string `json:"mime,omitempty"`
}

func (a Asset) EntityID() string             { return a.ID }
func (a Asset) WithEntityID(id string) Asset { a.ID = id; return a }
func (a Asset) Clone() Asset                 { return a }

// StyleRule is one rule of the site stylesheet.
type StyleRule struct {
	ID           string            `json:"id,omitempty"`
	Selectors    []string          `json:"selectors"`
	Declarations map[string]string `json:"declarations"`
	Media        string            `json:"media,omitempty"`
}

func (r StyleRule) EntityID() string                 { return r.ID }
func (r StyleRule) WithEntityID(id string) StyleRule { r.ID = id; return r }

func (r StyleRule) Clone() StyleRule {
	c := r
	c.Selectors = slices.Clone(r.Selectors)
	c.Declarations = maps.Clone(r.Declarations)
	return c
}

// FontProviderGoogle marks fonts loaded from the Google Fonts service.
// Fonts with any other provider are assumed to be declared by style rules.
const FontProviderGoogle = "google"

// Font is a font family used by the site.
type Font struct {
	ID       string   `json:"id,omitempty"`
	Family   string   `json:"family"`
	Variants []string `json:"variants,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

func (f Font) EntityID() string            { return f.ID }
func (f Font) WithEntityID(id string) Font { f.ID = id; return f }

func (f Font) Clone() Font {
	c := f
	c.Variants = slices.Clone(f.Variants)
	return c
}

// Settings is the site-wide settings singleton.
type Settings struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Lang        string            `json:"lang,omitempty"`
	Favicon     string            `json:"favicon,omitempty"`
	Head        string            `json:"head,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

func (s Settings) Clone() Settings {
	c := s
	c.Meta = maps.Clone(s.Meta)
	return c
}

// UIState is the editor UI singleton. It is part of the document so editors
// can restore their view, but it never affects rendering.
type UIState struct {
	CurrentPageID string   `json:"currentPageId,omitempty"`
	SelectedIDs   []string `json:"selectedIds,omitempty"`
	Zoom          float64  `json:"zoom,omitempty"`
	PreviewMode   bool     `json:"previewMode,omitempty"`
}

func (u UIState) Clone() UIState {
	c := u
	c.SelectedIDs = slices.Clone(u.SelectedIDs)
	return c
}
