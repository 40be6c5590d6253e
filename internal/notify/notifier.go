// Package notify publishes publish job lifecycle notifications to NATS
// JetStream for consumers outside the process: chat hooks, CI triggers,
// dashboards.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
)

const (
	// DefaultSubjectPrefix is the subject prefix notifications are
	// published under; the event name is appended per message.
	DefaultSubjectPrefix = "sitebuilder.publish"

	// DefaultStream is the JetStream stream ensured at startup.
	DefaultStream = "SITEBUILDER_PUBLISH"

	setupTimeout   = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Config configures the NATS notifier.
type Config struct {
	URL           string
	SubjectPrefix string
	Stream        string
}

// Notification is the wire format published on every subject.
type Notification struct {
	JobID      string    `json:"jobId"`
	WebsiteID  string    `json:"websiteId,omitempty"`
	Event      string    `json:"event"`
	StorageID  string    `json:"storageId,omitempty"`
	HostingID  string    `json:"hostingId,omitempty"`
	Step       string    `json:"step,omitempty"`
	Message    string    `json:"message,omitempty"`
	URL        string    `json:"url,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DurationMS int64     `json:"durationMs,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier publishes job notifications to JetStream.
type Notifier struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
	logger *slog.Logger
}

var _ publish.Emitter = (*Notifier)(nil)

// New connects to NATS and ensures the notification stream exists.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, ferrors.ConfigError("notifier requires a NATS URL").Build()
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, ferrors.NetworkError("connect to NATS").
			WithCause(err).
			WithContext("url", cfg.URL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.NetworkError("create JetStream context").
			WithCause(err).
			Build()
	}

	n := &Notifier{
		conn:   conn,
		js:     js,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}

	if err := n.ensureStream(cfg.Stream); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("job notifier connected",
		logfields.URL(cfg.URL),
		slog.String("subject_prefix", cfg.SubjectPrefix),
		slog.String("stream", cfg.Stream))

	return n, nil
}

func (n *Notifier) ensureStream(stream string) error {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	_, err := n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Publish job notifications",
		Subjects:    []string{n.prefix + ".>"},
	})
	if err != nil {
		return ferrors.NetworkError("ensure notification stream").
			WithCause(err).
			WithContext("stream", stream).
			Build()
	}
	return nil
}

func (n *Notifier) EmitJobStarted(ctx context.Context, evt events.JobStarted) error {
	return n.send(ctx, "started", Notification{
		JobID:     evt.JobID,
		WebsiteID: evt.WebsiteID,
		Event:     "started",
		StorageID: evt.StorageID,
		HostingID: evt.HostingID,
		Timestamp: evt.StartedAt,
	})
}

func (n *Notifier) EmitJobCompleted(ctx context.Context, evt events.JobCompleted) error {
	return n.send(ctx, "completed", Notification{
		JobID:      evt.JobID,
		WebsiteID:  evt.WebsiteID,
		Event:      "completed",
		URL:        evt.URL,
		DurationMS: evt.Duration.Milliseconds(),
		Timestamp:  evt.CompletedAt,
	})
}

func (n *Notifier) EmitJobFailed(ctx context.Context, evt events.JobFailed) error {
	return n.send(ctx, "failed", Notification{
		JobID:     evt.JobID,
		WebsiteID: evt.WebsiteID,
		Event:     "failed",
		Step:      evt.Step,
		Message:   evt.Message,
		Timestamp: evt.FailedAt,
	})
}

func (n *Notifier) EmitJobEvicted(ctx context.Context, evt events.JobEvicted) error {
	return n.send(ctx, "evicted", Notification{
		JobID:     evt.JobID,
		Event:     "evicted",
		Reason:    evt.Reason,
		Timestamp: evt.EvictedAt,
	})
}

func (n *Notifier) send(ctx context.Context, suffix string, note Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return ferrors.InternalError("marshal job notification").
			WithCause(err).
			WithContext("job_id", note.JobID).
			Build()
	}

	subject := n.prefix + "." + suffix
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		return ferrors.NetworkError("publish job notification").
			WithCause(err).
			WithContext("subject", subject).
			Build()
	}

	n.logger.Debug("published job notification",
		logfields.JobID(note.JobID),
		slog.String("subject", subject))

	return nil
}

// Close closes the NATS connection.
func (n *Notifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
