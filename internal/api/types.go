package api

import (
	"encoding/json"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/store"
)

// Pricing for on-chain purchases, in QXMR.
const (
	// LeaderboardPrice is the one-time fee granting permanent ranked
	// inclusion on the public leaderboard.
	LeaderboardPrice = 10000

	// GamePrice is the cost of one additional play session.
	GamePrice = 500000

	// FreeGamesPerDay is the entitlement a wallet resets to on the first
	// play of a new day.
	FreeGamesPerDay = 3

	// DailyPrizeAmount is the prize attached to the daily winner, in Qubic.
	DailyPrizeAmount = 1000000
)

// Product tags carried in a transaction's col1 field.
const (
	ProductLeaderboard  = "leaderboard_payment"
	ProductGamePurchase = "game_purchase"
)

// GetUserRequest identifies the wallet to fetch or create.
type GetUserRequest struct {
	WalletID string `json:"walletid"`
}

// GetUserResponse returns the record and whether it was just created.
type GetUserResponse struct {
	User    *store.User `json:"user"`
	Created bool        `json:"created"`
}

// UpdateUserRequest is a whitelist-field patch of a user record.
type UpdateUserRequest struct {
	WalletID          string  `json:"walletid"`
	Amount            *string `json:"amount,omitempty"`
	GameLeft          *string `json:"gameleft,omitempty"`
	LastPlayed        *string `json:"lastplayed,omitempty"`
	Paid              *string `json:"paid,omitempty"`
	Highest           *string `json:"highest,omitempty"`
	Col1              *string `json:"col1,omitempty"`
	Col2              *string `json:"col2,omitempty"`
	Col3              *string `json:"col3,omitempty"`
	LeaderboardAccess *string `json:"leaderboard_access,omitempty"`
}

// GameScoreRequest submits a terminal score for a wallet.
type GameScoreRequest struct {
	WalletID string      `json:"walletid"`
	Score    json.Number `json:"score"`
}

// GameScoreResponse carries the authoritative post-submit record.
type GameScoreResponse struct {
	Success            bool        `json:"success"`
	User               *store.User `json:"user"`
	LeaderboardUpdated bool        `json:"leaderboard_updated"`
}

// TransactionRequest records a broadcast on-chain payment.
// Col1 is the product tag, Col2 product-specific detail.
type TransactionRequest struct {
	WalletID string      `json:"walletid"`
	Hash     string      `json:"hash"`
	Paid     json.Number `json:"paid"`
	Col1     string      `json:"col1"`
	Col2     string      `json:"col2"`
}

// TransactionResponse reports what the payment bought. The backend is the
// sole authority on access grants and game credits.
type TransactionResponse struct {
	Success                  bool   `json:"success"`
	TransactionSaved         bool   `json:"transaction_saved"`
	LeaderboardAccessGranted bool   `json:"leaderboard_access_granted"`
	GamesAdded               int    `json:"games_added,omitempty"`
	GamesRemaining           int    `json:"games_remaining,omitempty"`
	UserPaidUpdated          string `json:"user_paid_updated"`
}

// StartGameRequest asks whether the wallet may begin a scored session.
type StartGameRequest struct {
	WalletID string `json:"walletid"`
}

// StartGameResponse reports the entitlement decision.
type StartGameResponse struct {
	Success        bool        `json:"success"`
	CanPlay        bool        `json:"can_play"`
	GamesRemaining int         `json:"games_remaining"`
	User           *store.User `json:"user"`
}

// BuyGamesRequest credits play sessions directly (legacy purchase path).
type BuyGamesRequest struct {
	WalletID string      `json:"walletid"`
	Games    int         `json:"games"`
	Paid     json.Number `json:"paid"`
}

// BuyGamesResponse reports the credited entitlement.
type BuyGamesResponse struct {
	Success        bool        `json:"success"`
	GamesAdded     int         `json:"games_added"`
	TotalPaid      string      `json:"total_paid"`
	GamesRemaining int         `json:"games_remaining"`
	User           *store.User `json:"user"`
}

// UserRanking is a wallet's position among ranked users.
type UserRanking struct {
	Rank int         `json:"rank"`
	User *store.User `json:"user"`
}

// LeaderboardResponse is the public ranking surface.
type LeaderboardResponse struct {
	TopUsers    []store.User `json:"top_users"`
	TotalUsers  int          `json:"total_users"`
	UserRanking *UserRanking `json:"user_ranking"`
}

// DailyWinnerEntry describes the day's highest scorer.
type DailyWinnerEntry struct {
	WalletID string      `json:"walletid"`
	Score    float64     `json:"score"`
	User     *store.User `json:"user"`
}

// DailyWinnerResponse reports the winner for a date, if any.
type DailyWinnerResponse struct {
	Success     bool              `json:"success"`
	Winner      *DailyWinnerEntry `json:"winner"`
	Date        string            `json:"date"`
	PrizeAmount int               `json:"prize_amount"`
}

// AdminUsersResponse lists every user record.
type AdminUsersResponse struct {
	Users []store.User `json:"users"`
}

// AdminTransactionsResponse lists every recorded transaction.
type AdminTransactionsResponse struct {
	Transactions []store.Transaction `json:"transactions"`
}

// AdminResetResponse reports a balance reset.
type AdminResetResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AffectedRows int64  `json:"affected_rows"`
}
