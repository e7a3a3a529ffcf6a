// Package notify publishes the outcome of each pipeline run to NATS so that
// other processes can react to a fresh bundle.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
)

// DefaultSubject is the subject build events are published on.
const DefaultSubject = "requireconcat.builds"

var (
	// ErrConnectFailed indicates the NATS server could not be reached.
	ErrConnectFailed = ferrors.NotifyError("failed to connect to NATS").Build()

	// ErrPublishFailed indicates a build event could not be published.
	ErrPublishFailed = ferrors.NotifyError("failed to publish build event").Build()
)

// BuildEvent is the message published after every run.
type BuildEvent struct {
	BuildID    string    `json:"build_id"`
	Status     string    `json:"status"`
	Output     string    `json:"output"`
	Modules    int       `json:"modules"`
	Emitted    int       `json:"emitted"`
	Dangling   int       `json:"dangling"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends build events.
type Publisher interface {
	Publish(ctx context.Context, event BuildEvent) error
	Close() error
}

// NoopPublisher discards events. It is used when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BuildEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes build events on a core NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to url. An empty subject selects DefaultSubject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("requireconcat"))
	if err != nil {
		return nil, ferrors.WrapError(err, ErrConnectFailed.Category(), ErrConnectFailed.Message()).
			WithSeverity(ErrConnectFailed.Severity()).
			WithRetry(ErrConnectFailed.RetryStrategy()).
			WithContext(logfields.KeyURL, url).
			Build()
	}

	slog.Info("NATS publisher initialized", logfields.URL(url), logfields.Subject(subjectOrDefault(subject)))
	return newPublisher(nc, subject), nil
}

func newPublisher(c conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subjectOrDefault(subject)}
}

func subjectOrDefault(subject string) string {
	if subject == "" {
		return DefaultSubject
	}
	return subject
}

// Publish sends event and waits until the server has acknowledged the flush.
func (p *NATSPublisher) Publish(ctx context.Context, event BuildEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return p.failure(err, event.BuildID)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return p.failure(err, event.BuildID)
	}

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return p.failure(err, event.BuildID)
	}

	slog.Debug("Published build event", logfields.Subject(p.subject), logfields.BuildID(event.BuildID), logfields.Status(event.Status))
	return nil
}

func (p *NATSPublisher) failure(err error, buildID string) error {
	return ferrors.WrapError(err, ErrPublishFailed.Category(), ErrPublishFailed.Message()).
		WithSeverity(ErrPublishFailed.Severity()).
		WithRetry(ErrPublishFailed.RetryStrategy()).
		WithContext(logfields.KeySubject, p.subject).
		WithContext(logfields.KeyBuildID, buildID).
		Build()
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
