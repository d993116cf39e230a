package session

import (
	"context"
	"log"
)

// Command is a purchase intent raised by the UI layer and consumed by the
// purchase flow. Intents are typed values on a channel the controller owns,
// so the relationship between the button and its handler is an explicit
// dependency instead of a broadcast.
type Command interface {
	isCommand()
}

// BuyGames asks the purchase flow to buy additional play sessions.
type BuyGames struct {
	Games int
}

// PayLeaderboard asks the purchase flow to buy leaderboard access.
type PayLeaderboard struct{}

func (BuyGames) isCommand()       {}
func (PayLeaderboard) isCommand() {}

// Commands is the stream of pending purchase intents.
func (c *Controller) Commands() <-chan Command {
	return c.commands
}

// RequestBuyGames queues a buy-games intent. Returns false when the queue
// is full and the intent was dropped.
func (c *Controller) RequestBuyGames(games int) bool {
	if games <= 0 {
		games = 1
	}
	return c.enqueue(BuyGames{Games: games})
}

// RequestLeaderboardAccess queues a leaderboard-access purchase intent.
func (c *Controller) RequestLeaderboardAccess() bool {
	return c.enqueue(PayLeaderboard{})
}

func (c *Controller) enqueue(cmd Command) bool {
	select {
	case c.commands <- cmd:
		return true
	default:
		return false
	}
}

// ServePurchases consumes intents with the given handler until ctx ends.
// A failed purchase is logged and does not stop the loop; the player can
// retry from the UI.
func (c *Controller) ServePurchases(ctx context.Context, handle func(context.Context, Command) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.commands:
			if err := handle(ctx, cmd); err != nil {
				log.Printf("purchase_failed command=%T err=%v", cmd, err)
			}
		}
	}
}
