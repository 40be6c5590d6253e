package backend

import (
	"context"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
)

// Registry holds the registered backends per type, in registration order.
// Registration happens at process start; after that the registry is
// read-only, so resolution takes no locks beyond a read lock.
type Registry struct {
	mu     sync.RWMutex
	byType map[Type][]Backend
	byID   map[string]Backend
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byType: make(map[Type][]Backend),
		byID:   make(map[string]Backend),
		logger: logger,
	}
}

// Register adds a backend. Ids are global across types; registering a
// duplicate id or an invalid type is a configuration error.
func (r *Registry) Register(b Backend) error {
	if b == nil {
		return ferrors.ConfigError("cannot register nil backend").Build()
	}
	t := b.Type()
	if !t.Valid() {
		return ferrors.ConfigError("unknown backend type").
			WithContext("backend_id", b.ID()).
			WithContext("backend_type", string(t)).
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[b.ID()]; exists {
		return ferrors.ConfigError("backend id already registered").
			WithContext("backend_id", b.ID()).
			Build()
	}
	r.byID[b.ID()] = b
	r.byType[t] = append(r.byType[t], b)

	r.logger.Debug("backend registered",
		logfields.BackendID(b.ID()),
		logfields.BackendType(string(t)))
	return nil
}

// Get returns the backend with the given id regardless of type.
func (r *Registry) Get(id string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, ferrors.NotFoundError("backend not found").
			WithContext("backend_id", id).
			Build()
	}
	return b, nil
}

// List returns the backends of one type in registration order. The
// returned slice is a copy.
func (r *Registry) List(t Type) []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, len(r.byType[t]))
	copy(out, r.byType[t])
	return out
}

// Resolve picks the backend of type t that serves a request:
//
//  1. explicitID names a backend of type t, or not_found;
//  2. otherwise the first backend of t the session is logged in to;
//  3. otherwise the first registered backend of t.
//
// An empty pool is a backend error.
func (r *Registry) Resolve(ctx context.Context, t Type, sess *session.Session, explicitID string) (Backend, error) {
	r.mu.RLock()
	pool := r.byType[t]
	r.mu.RUnlock()

	if explicitID != "" {
		for _, b := range pool {
			if b.ID() == explicitID {
				return b, nil
			}
		}
		return nil, ferrors.NotFoundError("backend not found").
			WithContext("backend_id", explicitID).
			WithContext("backend_type", string(t)).
			Build()
	}

	if len(pool) == 0 {
		return nil, ferrors.BackendError("no backend registered").
			WithContext("backend_type", string(t)).
			Build()
	}

	for _, b := range pool {
		if b.IsLoggedIn(ctx, sess) {
			return b, nil
		}
	}
	return pool[0], nil
}

// ResolveStorage resolves a storage backend and asserts its capability.
func (r *Registry) ResolveStorage(ctx context.Context, sess *session.Session, explicitID string) (StorageProvider, error) {
	b, err := r.Resolve(ctx, TypeStorage, sess, explicitID)
	if err != nil {
		return nil, err
	}
	sp, ok := b.(StorageProvider)
	if !ok {
		return nil, ferrors.BackendError("backend registered as storage lacks the storage capability").
			WithContext("backend_id", b.ID()).
			Build()
	}
	return sp, nil
}

// ResolveHosting resolves a hosting backend and asserts its capability.
func (r *Registry) ResolveHosting(ctx context.Context, sess *session.Session, explicitID string) (HostingProvider, error) {
	b, err := r.Resolve(ctx, TypeHosting, sess, explicitID)
	if err != nil {
		return nil, err
	}
	hp, ok := b.(HostingProvider)
	if !ok {
		return nil, ferrors.BackendError("backend registered as hosting lacks the hosting capability").
			WithContext("backend_id", b.ID()).
			Build()
	}
	return hp, nil
}

// Describe builds the outward-facing descriptor of one backend for one
// session.
func (r *Registry) Describe(ctx context.Context, sess *session.Session, b Backend) Descriptor {
	d := Descriptor{
		ID:          b.ID(),
		DisplayName: b.DisplayName(),
		Type:        b.Type(),
		IsLoggedIn:  b.IsLoggedIn(ctx, sess),
	}
	url, err := b.AuthorizeURL(ctx, sess)
	if err != nil {
		r.logger.Warn("authorize url lookup failed",
			logfields.BackendID(b.ID()),
			logfields.Error(err))
		return d
	}
	d.AuthorizeURL = url
	return d
}

// DescribeAll describes every backend, storage first, in registration
// order.
func (r *Registry) DescribeAll(ctx context.Context, sess *session.Session) []Descriptor {
	var out []Descriptor
	for _, t := range []Type{TypeStorage, TypeHosting} {
		for _, b := range r.List(t) {
			out = append(out, r.Describe(ctx, sess, b))
		}
	}
	return out
}
