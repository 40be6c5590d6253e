// Package website manages open website documents. The service loads
// website.json from a storage backend into a state container, keeps one
// container per open website, and writes snapshots back on save.
package website

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/backend/providers"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/state"
)

// Service opens, caches and saves website documents. An open website is a
// live state container; its in-memory document is the current truth and is
// never silently reloaded from storage.
type Service struct {
	registry *backend.Registry
	bus      *events.Bus
	logger   *slog.Logger

	mu         sync.Mutex
	containers map[string]*state.Container
}

// NewService wires the document service to the backend registry and the
// event bus that containers publish change events on.
func NewService(registry *backend.Registry, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:   registry,
		bus:        bus,
		logger:     logger,
		containers: make(map[string]*state.Container),
	}
}

// Open returns the container for websiteID, loading it from storage on
// first use. A missing document file starts an empty website rather than
// failing, so opening is also how new websites come to exist. An already
// open website is returned as-is without touching storage.
func (s *Service) Open(ctx context.Context, sess *session.Session, websiteID, storageID string) (*state.Container, error) {
	if websiteID == "" {
		return nil, ferrors.ValidationError("websiteId is required").Build()
	}

	s.mu.Lock()
	if c, ok := s.containers[websiteID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	provider, err := s.registry.ResolveStorage(ctx, sess, storageID)
	if err != nil {
		return nil, err
	}

	doc, err := s.readDocument(ctx, sess, provider, websiteID)
	if err != nil {
		return nil, err
	}

	container := state.NewContainer(state.Config{
		WebsiteID: websiteID,
		Bus:       s.bus,
		Logger:    s.logger,
	})
	if err := container.Load(doc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.containers[websiteID]; ok {
		// A concurrent open won the race; its container already carries edits.
		return existing, nil
	}
	s.containers[websiteID] = container
	s.logger.Info("website opened",
		logfields.WebsiteID(websiteID),
		logfields.StorageID(provider.ID()))
	return container, nil
}

// Get returns the already open container for websiteID.
func (s *Service) Get(websiteID string) (*state.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	container, ok := s.containers[websiteID]
	if !ok {
		return nil, ferrors.NotFoundError("website is not open").
			WithContext("website_id", websiteID).
			Build()
	}
	return container, nil
}

// Save writes the current document snapshot to the website's document file
// through the resolved storage provider.
func (s *Service) Save(ctx context.Context, sess *session.Session, websiteID, storageID string) error {
	container, err := s.Get(websiteID)
	if err != nil {
		return err
	}

	provider, err := s.registry.ResolveStorage(ctx, sess, storageID)
	if err != nil {
		return err
	}

	doc := container.Snapshot()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ferrors.InternalError("encode website document").
			WithCause(err).
			WithContext("website_id", websiteID).
			Build()
	}
	data = append(data, '\n')

	files := []site.File{{Path: providers.DocumentFileName, Content: data}}
	if _, err := provider.WriteFiles(ctx, sess, websiteID, files, nil); err != nil {
		return err
	}

	s.logger.Info("website saved",
		logfields.WebsiteID(websiteID),
		logfields.StorageID(provider.ID()),
		logfields.Revision(container.Revision()))
	return nil
}

// Close drops the open container for websiteID. Unsaved edits are lost;
// callers save first when they want them kept.
func (s *Service) Close(websiteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[websiteID]; ok {
		delete(s.containers, websiteID)
		s.logger.Info("website closed", logfields.WebsiteID(websiteID))
	}
}

// Open website ids, unordered.
func (s *Service) OpenWebsites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.containers))
	for id := range s.containers {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) readDocument(ctx context.Context, sess *session.Session, provider backend.StorageProvider, websiteID string) (site.Document, error) {
	file, err := provider.ReadFile(ctx, sess, websiteID, providers.DocumentFileName)
	if err != nil {
		if ferrors.HasCategory(err, ferrors.CategoryNotFound) {
			// First open of a new website.
			return site.Document{}, nil
		}
		return site.Document{}, err
	}

	var doc site.Document
	if err := json.Unmarshal(file.Content, &doc); err != nil {
		return site.Document{}, ferrors.StorageError("decode stored website document").
			WithCause(err).
			WithContext("website_id", websiteID).
			WithContext("path", providers.DocumentFileName).
			Build()
	}
	return doc, nil
}
