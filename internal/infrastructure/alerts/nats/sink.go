// Package nats delivers alerts and retrieval trace events to external
// consumers over NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/resilience"
)

type Sink struct {
	conn         *nats.Conn
	alertSubject string
	eventSubject string
	executor     *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, alertSubject, eventSubject string) (*Sink, error) {
	return NewWithOptions(url, alertSubject, eventSubject, Options{})
}

func NewWithOptions(url, alertSubject, eventSubject string, options Options) (*Sink, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("retrieval-core"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Sink{
		conn:         conn,
		alertSubject: alertSubject,
		eventSubject: eventSubject,
		executor:     options.ResilienceExecutor,
	}, nil
}

func (s *Sink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Publish delivers one alert; the core's obligation ends here.
func (s *Sink) Publish(ctx context.Context, alert domain.Alert) error {
	return s.publish(ctx, "nats.publish_alert", s.alertSubject, alert)
}

// PublishRetrievalEvent streams a trace event for offline evaluation capture.
func (s *Sink) PublishRetrievalEvent(ctx context.Context, event domain.TraceEvent) error {
	return s.publish(ctx, "nats.publish_event", s.eventSubject, event)
}

func (s *Sink) publish(ctx context.Context, operation, subject string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}

	call := func(_ context.Context) error {
		if err := s.conn.Publish(subject, body); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if s.executor != nil {
		err = s.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeAlerts consumes alerts until ctx is cancelled; used by the alert
// sink worker.
func (s *Sink) SubscribeAlerts(ctx context.Context, handler func(context.Context, domain.Alert) error) error {
	sub, err := s.conn.QueueSubscribe(s.alertSubject, "alertsink", func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		var alert domain.Alert
		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			slog.Error("alert_decode_failed", "error", err)
			return
		}
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, alert); err != nil {
			slog.Error("alert_handler_failed", "severity", string(alert.Severity), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
