// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
)

// webhookSpacing is the minimum gap between posts, so a dead-letter burst
// cannot hammer the receiving endpoint.
const webhookSpacing = 500 * time.Millisecond

// Webhook posts notices as JSON to a single configured URL.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
	enabled bool
	spacing time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

// NewWebhook builds the notifier from config. URL and headers are fixed
// for the process lifetime, like the rest of the config.
func NewWebhook(cfg config.WebhookNotifierConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Webhook{
		url:     cfg.URL,
		headers: headers,
		enabled: cfg.Enabled,
		spacing: webhookSpacing,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

// Enabled implements Notifier.
func (w *Webhook) Enabled() bool { return w.enabled && w.url != "" }

// Send posts one notice. The spacing wait respects ctx so shutdown is
// never held up by the rate gate.
func (w *Webhook) Send(ctx context.Context, notice Notice) error {
	if !w.Enabled() {
		return nil
	}

	w.mu.Lock()
	wait := w.spacing - time.Since(w.lastSent)
	w.mu.Unlock()
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	w.mu.Lock()
	w.lastSent = time.Now()
	w.mu.Unlock()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
