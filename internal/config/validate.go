package config

import (
	"time"

	"github.com/go-playground/validator/v10"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

var validate = validator.New()

// Validate checks struct tags plus the rules tags cannot express:
// per-type required backend fields, backend id uniqueness, and duration
// parseability.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ferrors.ValidationError("invalid configuration").
			WithCause(err).
			Build()
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	return c.validateDurations()
}

func (c *Config) validateBackends() error {
	seen := make(map[string]bool)
	claim := func(id string) error {
		if seen[id] {
			return ferrors.ValidationError("duplicate backend id").
				WithContext("id", id).
				Build()
		}
		seen[id] = true
		return nil
	}

	for _, s := range c.Storage {
		if err := claim(s.ID); err != nil {
			return err
		}
		switch s.Type {
		case "fs":
			if s.Root == "" {
				return ferrors.ValidationError("fs storage requires a root directory").
					WithContext("id", s.ID).
					Build()
			}
		case "git":
			if s.Dir == "" {
				return ferrors.ValidationError("git storage requires a working tree directory").
					WithContext("id", s.ID).
					Build()
			}
		}
	}

	for _, h := range c.Hosting {
		if err := claim(h.ID); err != nil {
			return err
		}
		switch h.Type {
		case "dir":
			if h.Dir == "" {
				return ferrors.ValidationError("dir hosting requires a target directory").
					WithContext("id", h.ID).
					Build()
			}
		case "api":
			if h.Endpoint == "" {
				return ferrors.ValidationError("api hosting requires an endpoint").
					WithContext("id", h.ID).
					Build()
			}
		}
	}
	return nil
}

func (c *Config) validateDurations() error {
	fields := []struct {
		name  string
		value string
	}{
		{"server.request_timeout", c.Server.RequestTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"publish.job_ttl", c.Publish.JobTTL},
		{"publish.retention", c.Publish.Retention},
		{"publish.sweep_interval", c.Publish.SweepInterval},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return ferrors.ValidationError("invalid duration").
				WithCause(err).
				WithContext("field", f.name).
				WithContext("value", f.value).
				Build()
		}
		if d <= 0 {
			return ferrors.ValidationError("duration must be positive").
				WithContext("field", f.name).
				WithContext("value", f.value).
				Build()
		}
	}
	return nil
}
