// The alertsink worker consumes alerts from NATS and forwards them to an
// operator channel: structured logs always, an HTTP webhook when configured.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/core/domain"
	natssink "github.com/kirillkom/retrieval-core/internal/infrastructure/alerts/nats"
	"github.com/kirillkom/retrieval-core/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("retrieval-alertsink", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := natssink.New(cfg.NATSURL, cfg.NATSAlertSubject, cfg.NATSEventSubject)
	if err != nil {
		log.Fatalf("nats connect error: %v", err)
	}
	defer sink.Close()

	webhook := &webhookNotifier{
		url:    cfg.AlertWebhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	logger.Info("alertsink_subscribed", "subject", cfg.NATSAlertSubject)
	err = sink.SubscribeAlerts(ctx, func(handlerCtx context.Context, alert domain.Alert) error {
		level := slog.LevelWarn
		if alert.Severity == domain.AlertCritical {
			level = slog.LevelError
		}
		logger.Log(handlerCtx, level, "alert_received",
			"severity", string(alert.Severity),
			"type", string(alert.Type),
			"trace_id", alert.TraceID,
			"message", alert.Message,
		)
		return webhook.notify(handlerCtx, alert)
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("alertsink subscribe error: %v", err)
	}
}

type webhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func (n *webhookNotifier) notify(ctx context.Context, alert domain.Alert) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
