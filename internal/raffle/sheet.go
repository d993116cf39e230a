package raffle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RowAppender logs an accepted entry row [timestamp, wallet, txid, amount]
// to an external ledger. Append failures are logged by the caller and never
// fail the entry itself.
type RowAppender interface {
	AppendRow(ctx context.Context, row []string) error
}

// NopAppender discards rows.
type NopAppender struct{}

func (NopAppender) AppendRow(context.Context, []string) error { return nil }

// WebhookAppender posts rows to a spreadsheet webhook as {"row": [...]}.
type WebhookAppender struct {
	URL  string
	HTTP *http.Client
}

// NewWebhookAppender creates an appender for the given webhook URL.
func NewWebhookAppender(url string) *WebhookAppender {
	return &WebhookAppender{
		URL:  url,
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *WebhookAppender) AppendRow(ctx context.Context, row []string) error {
	buf, err := json.Marshal(map[string][]string{"row": row})
	if err != nil {
		return fmt.Errorf("raffle: marshal row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("raffle: create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("raffle: webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("raffle: webhook HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}
