package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/openfeeder/internal/notify"
)

// WebhookConfig points the sink at an HTTP endpoint.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WebhookSink POSTs each batch as a JSON array. A non-2xx answer is an error
// that the hub logs; there is no retry.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhookSink validates cfg. client may be nil.
func NewWebhookSink(cfg WebhookConfig, client *http.Client) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookSink{cfg: cfg, client: client}, nil
}

// Consume sends the batch.
func (s *WebhookSink) Consume(ctx context.Context, batch []notify.Event) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode webhook batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "openfeeder-webhook/1.0")
	if s.cfg.Secret != "" {
		req.Header.Set("X-OpenFeeder-Secret", s.cfg.Secret)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Close implements notify.Sink.
func (s *WebhookSink) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}
