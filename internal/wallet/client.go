// Package wallet is the typed client for the chain gateway: tick info,
// balances, transaction broadcast, and the purchase flow built on them.
// Signing stays behind the Signer interface; this package never sees keys.
package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config holds configuration for the gateway client.
type Config struct {
	// BaseURL is the gateway root, e.g. "https://rpc.qubic.org".
	BaseURL string

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// MaxRetries bounds retry attempts on retryable failures.
	// Defaults to 3 if zero.
	MaxRetries uint64

	// BaseRetryDelay is the initial backoff delay. Defaults to 500ms.
	BaseRetryDelay time.Duration

	// Now is injectable for the tick fallback. Defaults to time.Now.
	Now func() time.Time
}

// Client talks to the chain gateway.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a gateway client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 500 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{config: cfg, http: httpClient}
}

// TickInfo returns the network's current tick position.
func (c *Client) TickInfo(ctx context.Context) (*TickInfoResult, error) {
	var resp tickInfoResponse
	if err := c.get(ctx, "/v1/tick-info", &resp); err != nil {
		return nil, err
	}
	return &resp.TickInfo, nil
}

// Balance returns the wallet's balance snapshot.
func (c *Client) Balance(ctx context.Context, id string) (*BalanceResult, error) {
	var resp balanceResponse
	if err := c.get(ctx, "/v1/balances/"+id, &resp); err != nil {
		return nil, err
	}
	return &resp.Balance, nil
}

// Broadcast submits a signed transaction, base64-encoded per the gateway's
// wire contract.
func (c *Client) Broadcast(ctx context.Context, signed []byte) (*BroadcastResult, error) {
	body := broadcastRequest{
		EncodedTransaction: base64.StdEncoding.EncodeToString(signed),
	}
	var resp BroadcastResult
	if err := c.post(ctx, "/v1/broadcast-transaction", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
		if err != nil {
			return fmt.Errorf("wallet: create request: %w", err)
		}
		return c.do(req, out)
	})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("wallet: marshal request: %w", err)
	}
	return c.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(buf))
		if err != nil {
			return fmt.Errorf("wallet: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, out)
	})
}

func (c *Client) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewExponential(c.config.BaseRetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if httpErr, ok := err.(*HTTPError); ok && httpErr.IsRetryable() {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wallet: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("wallet: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// The gateway wraps application errors in a JSON envelope; pass
		// those through typed when they parse.
		var gwErr GatewayError
		if json.Unmarshal(respBody, &gwErr) == nil && gwErr.Message != "" {
			return &gwErr
		}
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("wallet: invalid response JSON: %w", err)
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}
