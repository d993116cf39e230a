// Package session bridges a running game to the score backend for one
// player. It owns the per-session concerns the engine and the HTTP client
// stay out of: entitlement checks deduplicated across concurrent callers,
// exactly-once submission of terminal scores, and the purchase-intent queue.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/reconcile"
)

// State is the session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateChecked
	StatePlaying
	StateEnded
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateChecked:
		return "entitlement-checked"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	case StateSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Entitlement is the decision whether a session may be scored.
type Entitlement struct {
	CanPlay        bool
	GamesRemaining int

	// Free is set when no wallet is connected: play proceeds without any
	// backend contact and nothing is submitted.
	Free bool
}

// Controller drives one player's sessions against the backend.
type Controller struct {
	client *reconcile.Client
	group  singleflight.Group

	commands chan Command

	mu        sync.Mutex
	walletID  string
	state     State
	lastScore int
	latched   bool
}

// NewController creates a controller over the given backend client.
func NewController(client *reconcile.Client) *Controller {
	return &Controller{
		client:   client,
		commands: make(chan Command, 8),
	}
}

// Connect binds the controller to a wallet and primes the cached user
// record, creating it server-side on first contact. Switching wallets drops
// the previous cache and the submission latch. On fetch failure the wallet
// stays bound; the record is fetched again before the next submission.
func (c *Controller) Connect(ctx context.Context, walletid string) error {
	c.mu.Lock()
	if c.walletID == walletid {
		c.mu.Unlock()
		return nil
	}
	c.walletID = walletid
	c.state = StateIdle
	c.latched = false
	c.lastScore = 0
	c.client.ClearCache()
	c.mu.Unlock()

	if walletid == "" {
		return nil
	}
	if _, err := c.client.FetchUser(ctx, walletid); err != nil {
		return fmt.Errorf("session: fetch user on connect: %w", err)
	}
	return nil
}

// Disconnect unbinds the wallet. Subsequent sessions are free play.
func (c *Controller) Disconnect() {
	c.Connect(context.Background(), "")
}

// WalletID returns the bound wallet, empty when disconnected.
func (c *Controller) WalletID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.walletID
}

// State returns the session lifecycle position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CheckEntitlement resolves whether the next session is scored. Concurrent
// callers for the same wallet coalesce onto a single backend call. With no
// wallet connected the answer is an unconditional free pass, no network.
func (c *Controller) CheckEntitlement(ctx context.Context) (*Entitlement, error) {
	wallet := c.WalletID()
	if wallet == "" {
		c.setState(StateChecked)
		return &Entitlement{CanPlay: true, Free: true}, nil
	}

	v, err, shared := c.group.Do(wallet, func() (any, error) {
		return c.client.StartGame(ctx, wallet)
	})
	if err != nil {
		return nil, fmt.Errorf("session: entitlement check: %w", err)
	}
	res := v.(*reconcile.StartGameResult)
	if shared {
		log.Printf("entitlement_coalesced wallet=%s", wallet)
	}

	c.setState(StateChecked)
	return &Entitlement{
		CanPlay:        res.CanPlay,
		GamesRemaining: res.GamesRemaining,
	}, nil
}

// BeginPlay marks the session as in progress.
func (c *Controller) BeginPlay() {
	c.setState(StatePlaying)
}

// HandleGameEnd submits a terminal score exactly once. A repeat of the same
// terminal event is suppressed; the latch resets only when a new non-zero,
// changed score is observed. Free-play sessions are never submitted.
// The bool reports whether a submission was actually made.
func (c *Controller) HandleGameEnd(ctx context.Context, score int) (reconcile.Outcome, bool, error) {
	c.mu.Lock()
	wallet := c.walletID
	c.state = StateEnded

	if score != 0 && score != c.lastScore {
		c.latched = false
	}
	if c.latched || wallet == "" {
		c.state = StateIdle
		c.mu.Unlock()
		return reconcile.OutcomeSuppressed, false, nil
	}
	c.latched = true
	c.lastScore = score
	c.state = StateSubmitting
	c.mu.Unlock()

	// The record is normally primed on connect; repair the cache here so the
	// outcome is classified against real access, not an empty cache.
	if c.client.CachedUser() == nil {
		if _, err := c.client.FetchUser(ctx, wallet); err != nil {
			log.Printf("score_submit_user_fetch_failed wallet=%s err=%v", wallet, err)
		}
	}

	outcome, _, err := c.client.Submit(ctx, wallet, score)
	c.setState(StateIdle)
	if err != nil {
		// The latch stays set for this score; a retry is an explicit
		// Resubmit, not an accidental duplicate from a replayed event.
		log.Printf("score_submit_failed wallet=%s score=%d err=%v", wallet, score, err)
		return reconcile.OutcomeFailed, false, err
	}

	log.Printf("score_submitted wallet=%s score=%d outcome=%s", wallet, score, outcome)
	return outcome, true, nil
}

// Resubmit retries the last failed submission, bypassing the latch.
func (c *Controller) Resubmit(ctx context.Context) (reconcile.Outcome, error) {
	c.mu.Lock()
	wallet := c.walletID
	score := c.lastScore
	c.mu.Unlock()
	if wallet == "" {
		return reconcile.OutcomeFailed, fmt.Errorf("session: no wallet connected")
	}
	outcome, _, err := c.client.Submit(ctx, wallet, score)
	return outcome, err
}

// NeedsUpsell reports whether the cached user lacks leaderboard access.
// Advisory only: it gates a prompt, never play.
func (c *Controller) NeedsUpsell() bool {
	if c.WalletID() == "" {
		return false
	}
	u := c.client.CachedUser()
	return u != nil && !u.HasLeaderboardAccess()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}
