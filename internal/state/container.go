// Package state holds the document state container: one mutable owner per
// open website composing the entity stores and singletons behind immutable
// snapshots. All edits go through Dispatch; readers take Snapshot and never
// see a half-applied change.
package state

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/store"
)

// Collection names as they appear in change events and the HTTP API.
const (
	CollectionPages    = "pages"
	CollectionElements = "elements"
	CollectionAssets   = "assets"
	CollectionStyles   = "styles"
	CollectionFonts    = "fonts"
	CollectionSite     = "site"
	CollectionUI       = "ui"
)

// Config configures a container.
type Config struct {
	WebsiteID string
	Bus       *events.Bus
	Logger    *slog.Logger
}

// Container owns the document of one website. It composes the five entity
// stores and the two singletons, serializes mutations through Dispatch, and
// publishes a change event per committed mutation.
type Container struct {
	websiteID string
	logger    *slog.Logger
	bus       *events.Bus

	// dispatchMu serializes Dispatch and Load. Dispatching from inside a
	// store or singleton listener deadlocks.
	dispatchMu sync.Mutex

	pages    *store.Store[site.Page]
	elements *store.Store[site.Element]
	assets   *store.Store[site.Asset]
	styles   *store.Store[site.StyleRule]
	fonts    *store.Store[site.Font]

	site *Singleton[site.Settings]
	ui   *Singleton[site.UIState]

	revision atomic.Uint64
	loading  atomic.Bool
}

// NewContainer returns an empty container for the given website.
func NewContainer(cfg Config) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		websiteID: cfg.WebsiteID,
		logger:    logger,
		bus:       cfg.Bus,
		pages:     store.New[site.Page](store.Config{Collection: CollectionPages, AllowClientIDs: true}),
		elements:  store.New[site.Element](store.Config{Collection: CollectionElements}),
		assets:    store.New[site.Asset](store.Config{Collection: CollectionAssets}),
		styles:    store.New[site.StyleRule](store.Config{Collection: CollectionStyles}),
		fonts:     store.New[site.Font](store.Config{Collection: CollectionFonts}),
		site:      NewSingleton(CollectionSite, site.Settings{}),
		ui:        NewSingleton(CollectionUI, site.UIState{}),
	}

	forwardStore(c, c.pages, CollectionPages)
	forwardStore(c, c.elements, CollectionElements)
	forwardStore(c, c.assets, CollectionAssets)
	forwardStore(c, c.styles, CollectionStyles)
	forwardStore(c, c.fonts, CollectionFonts)
	forwardSingleton(c, c.site, CollectionSite)
	forwardSingleton(c, c.ui, CollectionUI)

	return c
}

func forwardStore[T store.Entity[T]](c *Container, s *store.Store[T], collection string) {
	s.Subscribe(func(prev, next []T) { c.changed(collection) })
}

func forwardSingleton[T Cloneable[T]](c *Container, s *Singleton[T], collection string) {
	s.Subscribe(func(prev, next T) { c.changed(collection) })
}

// WebsiteID returns the website this container belongs to.
func (c *Container) WebsiteID() string { return c.websiteID }

// Revision increases by one per committed mutation across all collections.
func (c *Container) Revision() uint64 { return c.revision.Load() }

// Snapshot composes the current document. The returned slices are the
// stores' shared snapshots: two calls with no intervening mutation return
// the same slice headers, and a mutation replaces only the affected
// collection's slice. Callers must not modify the slices.
func (c *Container) Snapshot() site.Document {
	return site.Document{
		Pages:    c.pages.List(),
		Elements: c.elements.List(),
		Assets:   c.assets.List(),
		Styles:   c.styles.List(),
		Fonts:    c.fonts.List(),
		Site:     c.site.Get(),
		UI:       c.ui.Get(),
	}
}

// Dispatch applies exactly one mutation. The affected collection's
// subscribers run before Dispatch returns, and one dispatch fully completes
// before the next is accepted. Errors from the underlying store come back
// unchanged, so store.IsNotFound and friends work on the result.
func (c *Container) Dispatch(action Action) error {
	if action == nil {
		return errNilAction
	}
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	return action.apply(c)
}

// Load replaces the whole document, typically after reading website files
// from storage. Loading is hydration, not editing: no change events fire
// and the revision stays where it was.
func (c *Container) Load(doc site.Document) error {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.loading.Store(true)
	defer c.loading.Store(false)

	if err := c.pages.Replace(doc.Pages); err != nil {
		return err
	}
	if err := c.elements.Replace(doc.Elements); err != nil {
		return err
	}
	if err := c.assets.Replace(doc.Assets); err != nil {
		return err
	}
	if err := c.styles.Replace(doc.Styles); err != nil {
		return err
	}
	if err := c.fonts.Replace(doc.Fonts); err != nil {
		return err
	}
	c.site.Set(doc.Site)
	c.ui.Set(doc.UI)
	return nil
}

// GetPage returns one page by id.
func (c *Container) GetPage(id string) (site.Page, error) { return c.pages.Get(id) }

// GetElement returns one element by id.
func (c *Container) GetElement(id string) (site.Element, error) { return c.elements.Get(id) }

// GetAsset returns one asset by id.
func (c *Container) GetAsset(id string) (site.Asset, error) { return c.assets.Get(id) }

// GetStyle returns one style rule by id.
func (c *Container) GetStyle(id string) (site.StyleRule, error) { return c.styles.Get(id) }

// GetFont returns one font by id.
func (c *Container) GetFont(id string) (site.Font, error) { return c.fonts.Get(id) }

// changePublishTimeout bounds how long a dispatch waits on slow event
// subscribers before the change event is dropped.
const changePublishTimeout = 500 * time.Millisecond

func (c *Container) changed(collection string) {
	if c.loading.Load() {
		return
	}
	rev := c.revision.Add(1)
	c.logger.Debug("document changed",
		logfields.WebsiteID(c.websiteID),
		logfields.Collection(collection),
		logfields.Revision(rev))
	if c.bus == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), changePublishTimeout)
	defer cancel()
	err := c.bus.Publish(ctx, events.DocumentChanged{
		WebsiteID:  c.websiteID,
		Collection: collection,
		Revision:   rev,
		ChangedAt:  time.Now(),
	})
	if err != nil {
		c.logger.Warn("change event dropped",
			logfields.WebsiteID(c.websiteID),
			logfields.Collection(collection),
			logfields.Error(err))
	}
}
