package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/tollgate/pkg/config"
)

// LogSink writes alerts to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through logger, or slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "alerts")}
}

// Notify logs the alert at warn level.
func (s *LogSink) Notify(ctx context.Context, alert Alert) error {
	attrs := []any{
		"alert_id", alert.ID,
		"kind", alert.Kind,
	}
	for _, b := range alert.Breaches {
		attrs = append(attrs, fmt.Sprintf("%s_%s_percent", b.Window, b.Kind), b.Percent)
	}
	if t := alert.Transition; t != nil {
		attrs = append(attrs, "from", t.From, "to", t.To, "reason", t.Reason)
	}
	s.logger.WarnContext(ctx, alert.Message, attrs...)
	return nil
}

// WebhookSink POSTs each alert as JSON to a URL.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookSink creates a webhook sink from configuration.
func NewWebhookSink(cfg config.WebhookConfig) *WebhookSink {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Notify posts the alert. Any non-2xx response is an error.
func (s *WebhookSink) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NewSink creates the sink selected by cfg.Sink.
func NewSink(cfg config.AlertsConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", "log":
		return NewLogSink(logger), nil
	case "webhook":
		if cfg.Webhook.URL == "" {
			return nil, fmt.Errorf("webhook sink requires a url")
		}
		return NewWebhookSink(cfg.Webhook), nil
	default:
		return nil, fmt.Errorf("unknown alert sink %q", cfg.Sink)
	}
}
