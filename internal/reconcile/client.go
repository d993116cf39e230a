// Package reconcile is the game client's typed interface to the arcade
// backend. It owns the cached user record: every successful call that
// returns a user replaces the cache wholesale, since the backend is the
// source of truth for amounts, entitlements, and access flags.
//
// Concurrent mutations (a score submission racing a purchase confirmation)
// are ordered by a per-call sequence number: each request takes the next
// sequence before it is issued, and a response only installs its user record
// if no later-sequenced response has installed one already. A slow, stale
// response can therefore never clobber a newer cache.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the backend root, e.g. "https://arcade.example/api".
	BaseURL string

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// Defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// Client talks to the arcade backend for one wallet at a time.
type Client struct {
	baseURL string
	http    *http.Client

	mu       sync.RWMutex
	user     *User
	userSeq  uint64
	issueSeq uint64
}

// NewClient creates a backend client with the given configuration.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

// CachedUser returns the last server-confirmed user record, or nil before
// the first successful call.
func (c *Client) CachedUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// ClearCache drops the cached user, e.g. on wallet disconnect.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.userSeq = 0
	c.issueSeq = 0
}

// nextSeq reserves the ordering slot for a mutating call.
func (c *Client) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issueSeq++
	return c.issueSeq
}

// installUser replaces the cache if seq is newer than the last install.
func (c *Client) installUser(seq uint64, u *User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.userSeq {
		return
	}
	c.userSeq = seq
	c.user = u
}

// FetchUser loads (and creates, on first contact) the wallet's record.
func (c *Client) FetchUser(ctx context.Context, walletid string) (*User, error) {
	seq := c.nextSeq()
	var resp getUserResponse
	if err := c.post(ctx, "/get_user", getUserRequest{WalletID: walletid}, &resp); err != nil {
		return nil, err
	}
	c.installUser(seq, resp.User)
	return resp.User, nil
}

// StartGame asks the backend for the session entitlement decision.
func (c *Client) StartGame(ctx context.Context, walletid string) (*StartGameResult, error) {
	seq := c.nextSeq()
	var resp StartGameResult
	if err := c.post(ctx, "/start_game", startGameRequest{WalletID: walletid}, &resp); err != nil {
		return nil, err
	}
	c.installUser(seq, resp.User)
	return &resp, nil
}

// Submit posts a terminal score. On success the returned record replaces
// the cache; on failure the cache is untouched and the error is surfaced
// for the caller to retry. The outcome is classified against the access
// level cached before the call.
func (c *Client) Submit(ctx context.Context, walletid string, score int) (Outcome, *User, error) {
	hadAccess := c.CachedUser().HasLeaderboardAccess()

	seq := c.nextSeq()
	var resp gameScoreResponse
	err := c.post(ctx, "/update_game_score", gameScoreRequest{
		WalletID: walletid,
		Score:    json.Number(fmt.Sprintf("%d", score)),
	}, &resp)
	if err != nil {
		return OutcomeFailed, nil, err
	}
	if !resp.Success {
		return OutcomeFailed, nil, fmt.Errorf("reconcile: backend rejected score")
	}

	c.installUser(seq, resp.User)

	if hadAccess && resp.LeaderboardUpdated {
		return OutcomeSaved, resp.User, nil
	}
	return OutcomeSavedUnranked, resp.User, nil
}

// RecordPayment records a broadcast transaction. The backend alone decides
// whether it grants access or credits games; the result relays its decision.
func (c *Client) RecordPayment(ctx context.Context, walletid, txID, paid, product, detail string) (*PaymentResult, error) {
	var resp PaymentResult
	err := c.post(ctx, "/transaction", transactionRequest{
		WalletID: walletid,
		Hash:     txID,
		Paid:     json.Number(paid),
		Col1:     product,
		Col2:     detail,
	}, &resp)
	if err != nil {
		return nil, err
	}

	// The transaction response carries no full user record; refresh so the
	// cache reflects any granted access or credited games. The refresh takes
	// its own sequence, so a submission racing this call still orders.
	if _, err := c.FetchUser(ctx, walletid); err != nil {
		return &resp, fmt.Errorf("reconcile: payment recorded but user refresh failed: %w", err)
	}

	return &resp, nil
}

// Leaderboard fetches the public ranking, with the caller's own position
// when walletid is non-empty.
func (c *Client) Leaderboard(ctx context.Context, walletid string) (*LeaderboardResult, error) {
	url := c.baseURL + "/leaderboard"
	if walletid != "" {
		url += "?walletid=" + walletid
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("reconcile: create request: %w", err)
	}
	var resp LeaderboardResult
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("reconcile: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("reconcile: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reconcile: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reconcile: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("reconcile: invalid response JSON: %w", err)
	}
	return nil
}
