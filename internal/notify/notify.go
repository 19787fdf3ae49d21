// Package notify delivers best-effort new-item notifications. The
// orchestrator fires and forgets: delivery failures are logged by the
// caller and never fail a crawl cycle.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crawld/internal/logger"
	"crawld/internal/source"
	"crawld/internal/store"
)

// Notifier receives each newly collected item.
type Notifier interface {
	NotifyNewItem(ctx context.Context, src *source.Source, item *store.Item) error
}

// LogNotifier records new items in the application log.
type LogNotifier struct {
	Log logger.Logger
}

func (n *LogNotifier) NotifyNewItem(_ context.Context, src *source.Source, item *store.Item) error {
	n.Log.Info("new item collected",
		logger.String("source", src.Name),
		logger.String("url", item.URL),
		logger.String("fingerprint", item.Fingerprint))
	return nil
}

// WebhookNotifier POSTs a JSON payload per new item to a configured URL,
// standing in for the subscriber push fan-out owned by the surrounding
// application.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier builds a webhook notifier with a short timeout; a
// slow subscriber endpoint must not stall crawling.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	SourceID   int64  `json:"source_id"`
	SourceName string `json:"source_name"`
	ItemID     int64  `json:"item_id"`
	URL        string `json:"url"`
	Payload    any    `json:"payload"`
}

func (n *WebhookNotifier) NotifyNewItem(ctx context.Context, src *source.Source, item *store.Item) error {
	var doc any
	if err := json.Unmarshal([]byte(item.Payload), &doc); err != nil {
		doc = item.Payload
	}

	body, err := json.Marshal(webhookPayload{
		SourceID:   src.ID,
		SourceName: src.Name,
		ItemID:     item.ID,
		URL:        item.URL,
		Payload:    doc,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type multi []Notifier

// Multi fans out to several notifiers, collecting their errors.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) NotifyNewItem(ctx context.Context, src *source.Source, item *store.Item) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyNewItem(ctx, src, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
