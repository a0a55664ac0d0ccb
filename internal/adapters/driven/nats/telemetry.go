// Package nats publishes search telemetry to a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
	"github.com/lightfastai/lightfast-search/internal/resilience"
)

// Verify interface compliance
var _ driven.TelemetryPublisher = (*TelemetryPublisher)(nil)

// DefaultSubject carries one message per completed search
const DefaultSubject = "search.completed"

// conn is the slice of *nats.Conn the publisher uses
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// Options tunes the NATS connection
type Options struct {
	Subject        string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

// TelemetryPublisher emits SearchEvents as JSON
type TelemetryPublisher struct {
	conn     conn
	subject  string
	executor *resilience.Executor
}

// NewTelemetryPublisher connects to url and publishes on opts.Subject.
// The connection retries in the background when the server is not up yet.
func NewTelemetryPublisher(url string, opts Options) (*TelemetryPublisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(
		url,
		nats.Name("lightfast-search"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newTelemetryPublisher(nc, opts), nil
}

func newTelemetryPublisher(c conn, opts Options) *TelemetryPublisher {
	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &TelemetryPublisher{conn: c, subject: subject, executor: opts.Executor}
}

// PublishSearch publishes one event. Publishing is fire-and-forget on the
// NATS side; errors only surface for a closed or unreachable connection.
func (p *TelemetryPublisher) PublishSearch(ctx context.Context, event *domain.SearchEvent) error {
	if event == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal search event: %w", err)
	}

	call := func(context.Context) error {
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor == nil {
		return call(ctx)
	}
	return p.executor.Execute(ctx, "telemetry.publish", call, classifyNATSError)
}

// Close drains pending messages, then closes the connection
func (p *TelemetryPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		err = nil
	}
	p.conn.Close()
	return err
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
