package daemon

import (
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/backend/providers"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// buildRegistry instantiates every configured backend and registers it.
// The type strings were validated with the configuration, so an unknown
// type here means the two packages drifted apart.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*backend.Registry, error) {
	registry := backend.NewRegistry(logger)

	for _, sc := range cfg.Storage {
		b, err := buildStorage(sc, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(b); err != nil {
			return nil, err
		}
	}
	for _, hc := range cfg.Hosting {
		b, err := buildHosting(hc, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(b); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildStorage(sc config.StorageBackend, logger *slog.Logger) (backend.Backend, error) {
	switch sc.Type {
	case "fs":
		return providers.NewFSStorage(providers.FSStorageConfig{
			ID:          sc.ID,
			DisplayName: sc.DisplayName,
			Root:        sc.Root,
			Logger:      logger,
		})
	case "git":
		return providers.NewGitStorage(providers.GitStorageConfig{
			ID:          sc.ID,
			DisplayName: sc.DisplayName,
			Dir:         sc.Dir,
			RemoteURL:   sc.RemoteURL,
			Branch:      sc.Branch,
			Token:       sc.Token,
			AuthorName:  sc.AuthorName,
			AuthorEmail: sc.AuthorEmail,
			Logger:      logger,
		})
	default:
		return nil, ferrors.ConfigError("unknown storage backend type").
			WithContext("backend_id", sc.ID).
			WithContext("backend_type", sc.Type).
			Build()
	}
}

func buildHosting(hc config.HostingBackend, logger *slog.Logger) (backend.Backend, error) {
	switch hc.Type {
	case "dir":
		return providers.NewDirHosting(providers.DirHostingConfig{
			ID:          hc.ID,
			DisplayName: hc.DisplayName,
			Dir:         hc.Dir,
			BaseURL:     hc.BaseURL,
			Logger:      logger,
		})
	case "api":
		return providers.NewAPIHosting(providers.APIHostingConfig{
			ID:          hc.ID,
			DisplayName: hc.DisplayName,
			Endpoint:    hc.Endpoint,
			ConsoleURL:  hc.ConsoleURL,
			Logger:      logger,
		})
	default:
		return nil, ferrors.ConfigError("unknown hosting backend type").
			WithContext("backend_id", hc.ID).
			WithContext("backend_type", hc.Type).
			Build()
	}
}
