package site

import "time"

// Document is one immutable snapshot of a website. The slices are shared
// with the state container that produced them and must not be mutated;
// edits go through the container, which publishes a fresh snapshot.
type Document struct {
	Pages    []Page      `json:"pages"`
	Elements []Element   `json:"elements"`
	Assets   []Asset     `json:"assets"`
	Styles   []StyleRule `json:"styles"`
	Fonts    []Font      `json:"fonts"`
	Site     Settings    `json:"site"`
	UI       UIState     `json:"ui"`
}

// PageByID returns the page with the given id and whether it exists.
func (d Document) PageByID(id string) (Page, bool) {
	for _, p := range d.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}

// ElementIndex builds an id lookup over the element collection.
func (d Document) ElementIndex() map[string]Element {
	idx := make(map[string]Element, len(d.Elements))
	for _, e := range d.Elements {
		idx[e.ID] = e
	}
	return idx
}

// File is a produced or stored website file.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// FileInfo describes a stored file without its content.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime,omitzero"`
}

// WebsiteMeta is the per-website metadata kept next to the document.
type WebsiteMeta struct {
	WebsiteID string    `json:"websiteId"`
	Name      string    `json:"name,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}
