// Package config loads the sitebuilder configuration: a YAML file with
// ${ENV} expansion after .env loading, defaults applied in Load, and
// struct-tag validation. Durations are configured as strings in Go
// duration syntax ("30m", "90s") and parsed where they are consumed.
package config

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Config is the full daemon configuration tree.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    []StorageBackend `yaml:"storage" validate:"dive"`
	Hosting    []HostingBackend `yaml:"hosting" validate:"dive"`
	Publish    PublishConfig    `yaml:"publish"`
	Notify     NotifyConfig     `yaml:"notify"`
	EventStore EventStoreConfig `yaml:"eventstore"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host,omitempty"`
	Port            int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	RequestTimeout  string `yaml:"request_timeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

// LoggingConfig configures the slog handler built in cmd.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// SlogLevel maps the configured level onto slog's scale. Anything
// unset or unknown is info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageBackend configures one storage provider instance. Type selects
// the provider; the remaining fields belong to one type each.
type StorageBackend struct {
	ID          string `yaml:"id" validate:"required"`
	Type        string `yaml:"type" validate:"required,oneof=fs git"`
	DisplayName string `yaml:"display_name,omitempty"`

	// fs: website files under Root/<websiteID>/.
	Root string `yaml:"root,omitempty"`

	// git: a working tree, optionally pushed to a remote.
	Dir         string `yaml:"dir,omitempty"`
	RemoteURL   string `yaml:"remote_url,omitempty"`
	Branch      string `yaml:"branch,omitempty"`
	Token       string `yaml:"token,omitempty"`
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
}

// HostingBackend configures one hosting provider instance.
type HostingBackend struct {
	ID          string `yaml:"id" validate:"required"`
	Type        string `yaml:"type" validate:"required,oneof=dir api"`
	DisplayName string `yaml:"display_name,omitempty"`

	// dir: published sites copied under Dir, served below BaseURL.
	Dir     string `yaml:"dir,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	// api: remote deploy service.
	Endpoint   string `yaml:"endpoint,omitempty"`
	ConsoleURL string `yaml:"console_url,omitempty"`
}

// PublishConfig tunes the publish job lifecycle.
type PublishConfig struct {
	JobTTL        string `yaml:"job_ttl,omitempty"`
	Retention     string `yaml:"retention,omitempty"`
	SweepInterval string `yaml:"sweep_interval,omitempty"`
}

// NotifyConfig configures the NATS job notifier. Disabled by default.
type NotifyConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url,omitempty" validate:"required_if=Enabled true"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
	Stream        string `yaml:"stream,omitempty"`
}

// EventStoreConfig locates the sqlite publish event log.
type EventStoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Default duration strings, applied in Load and used as accessor
// fallbacks for configs built in code.
const (
	defaultRequestTimeout  = "60s"
	defaultShutdownTimeout = "15s"
	defaultJobTTL          = "30m"
	defaultRetention       = "5m"
	defaultSweepInterval   = "1m"
)

// Load reads, expands, defaults and validates the configuration file.
// A .env/.env.local file next to the process is loaded first so that
// ${VAR} references in the YAML can point at it.
func Load(configPath string) (*Config, error) {
	loadDotenv()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NotFoundError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.ConfigError("read configuration file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.ConfigError("parse configuration file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv loads the first .env file found. Existing process
// environment always wins; a missing file is not an error.
func loadDotenv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
			return
		}
	}
}

// Init writes an example configuration file. An existing file is only
// overwritten with force.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.AlreadyExistsError("configuration file already exists").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8085},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: []StorageBackend{
			{
				ID:          "local",
				Type:        "fs",
				DisplayName: "Local files",
				Root:        "./data/websites",
			},
			{
				ID:          "repo",
				Type:        "git",
				DisplayName: "Git repository",
				Dir:         "./data/repo",
				RemoteURL:   "https://example.com/websites.git",
				Branch:      "main",
				Token:       "${GIT_TOKEN}",
			},
		},
		Hosting: []HostingBackend{
			{
				ID:          "preview",
				Type:        "dir",
				DisplayName: "Preview directory",
				Dir:         "./public",
				BaseURL:     "http://localhost:8080",
			},
			{
				ID:          "deploy",
				Type:        "api",
				DisplayName: "Deploy service",
				Endpoint:    "https://deploy.example.com",
				ConsoleURL:  "https://deploy.example.com/console",
			},
		},
		Publish: PublishConfig{
			JobTTL:        defaultJobTTL,
			Retention:     defaultRetention,
			SweepInterval: defaultSweepInterval,
		},
		Notify:     NotifyConfig{Enabled: false, URL: "nats://127.0.0.1:4222"},
		EventStore: EventStoreConfig{Path: "./data/events.db"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.ConfigError("marshal example configuration").
			WithCause(err).
			Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.ConfigError("write example configuration").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Publish.JobTTL == "" {
		c.Publish.JobTTL = defaultJobTTL
	}
	if c.Publish.Retention == "" {
		c.Publish.Retention = defaultRetention
	}
	if c.Publish.SweepInterval == "" {
		c.Publish.SweepInterval = defaultSweepInterval
	}

	if c.Notify.SubjectPrefix == "" {
		c.Notify.SubjectPrefix = "sitebuilder.publish"
	}
	if c.Notify.Stream == "" {
		c.Notify.Stream = "SITEBUILDER_PUBLISH"
	}

	if c.EventStore.Path == "" {
		c.EventStore.Path = "sitebuilder-events.db"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	for i := range c.Storage {
		s := &c.Storage[i]
		if s.Type == "git" && s.Branch == "" {
			s.Branch = "main"
		}
	}
}

// Address is the host:port the HTTP server binds to.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// parseDuration returns the parsed value, or fallback when the field is
// empty or was never validated (configs built in code).
func parseDuration(value, fallback string) time.Duration {
	if value == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// RequestTimeoutDuration is the per-request handler timeout.
func (s ServerConfig) RequestTimeoutDuration() time.Duration {
	return parseDuration(s.RequestTimeout, defaultRequestTimeout)
}

// ShutdownTimeoutDuration bounds graceful shutdown.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(s.ShutdownTimeout, defaultShutdownTimeout)
}

// JobTTLDuration is how long a publish job may exist before eviction.
func (p PublishConfig) JobTTLDuration() time.Duration {
	return parseDuration(p.JobTTL, defaultJobTTL)
}

// RetentionDuration is how long an observed terminal job is kept.
func (p PublishConfig) RetentionDuration() time.Duration {
	return parseDuration(p.Retention, defaultRetention)
}

// SweepIntervalDuration is the eviction sweep cadence.
func (p PublishConfig) SweepIntervalDuration() time.Duration {
	return parseDuration(p.SweepInterval, defaultSweepInterval)
}
