package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docvars/internal/build"
	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/logfields"
)

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSClient publishes build events on a core NATS subject.
type NATSClient struct {
	conn    conn
	subject string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var _ build.Notifier = (*NATSClient)(nil)

// NewNATSClient connects to the configured server.
func NewNATSClient(cfg config.NotifyConfig, logger *slog.Logger) (*NATSClient, error) {
	if !cfg.Enabled {
		return nil, ferrors.ConfigError("build notifications are disabled").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("docvars"),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Build()
	}

	logger.Info("NATS client initialized for build notifications",
		slog.String("url", cfg.NATSURL),
		logfields.Subject(cfg.Subject))
	return newClient(nc, cfg, logger), nil
}

func newClient(c conn, cfg config.NotifyConfig, logger *slog.Logger) *NATSClient {
	return &NATSClient{
		conn:    c,
		subject: cfg.Subject,
		timeout: cfg.Timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify publishes report and waits for the server to acknowledge the flush.
func (c *NATSClient) Notify(ctx context.Context, report *build.Report) error {
	if report == nil {
		return nil
	}
	event := NewBuildEvent(report)
	event.Timestamp = c.now()

	data, err := json.Marshal(event)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal build event").Build()
	}

	if err := c.conn.Publish(c.subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to publish build event").
			WithContext("subject", c.subject).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to flush build event").
			WithContext("subject", c.subject).
			Build()
	}

	c.logger.Debug("Published build event",
		logfields.BuildID(event.BuildID),
		logfields.Subject(c.subject),
		slog.String("status", event.Status))
	return nil
}

// Close closes the NATS connection.
func (c *NATSClient) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
	}
}
