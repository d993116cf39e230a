package reconcile

import "encoding/json"

// User is the backend's wallet record as it appears on the wire. All value
// fields are decimal strings; the client never does arithmetic on them.
type User struct {
	WalletID          string `json:"walletid"`
	Amount            string `json:"amount"`
	GameLeft          string `json:"gameleft"`
	LastPlayed        string `json:"lastplayed"`
	Paid              string `json:"paid"`
	Highest           string `json:"highest"`
	Col1              string `json:"col1"`
	Col2              string `json:"col2"`
	Col3              string `json:"col3"`
	LeaderboardAccess string `json:"leaderboard_access"`
}

// HasLeaderboardAccess reports whether the wallet's scores rank publicly.
func (u *User) HasLeaderboardAccess() bool {
	return u != nil && u.LeaderboardAccess == "1"
}

type getUserRequest struct {
	WalletID string `json:"walletid"`
}

type getUserResponse struct {
	User    *User `json:"user"`
	Created bool  `json:"created"`
}

type startGameRequest struct {
	WalletID string `json:"walletid"`
}

// StartGameResult is the backend's entitlement decision.
type StartGameResult struct {
	Success        bool  `json:"success"`
	CanPlay        bool  `json:"can_play"`
	GamesRemaining int   `json:"games_remaining"`
	User           *User `json:"user"`
}

type gameScoreRequest struct {
	WalletID string      `json:"walletid"`
	Score    json.Number `json:"score"`
}

type gameScoreResponse struct {
	Success            bool  `json:"success"`
	User               *User `json:"user"`
	LeaderboardUpdated bool  `json:"leaderboard_updated"`
}

type transactionRequest struct {
	WalletID string      `json:"walletid"`
	Hash     string      `json:"hash"`
	Paid     json.Number `json:"paid"`
	Col1     string      `json:"col1"`
	Col2     string      `json:"col2"`
}

// PaymentResult reports what a recorded payment bought. The backend is the
// sole authority; the client only relays its decision.
type PaymentResult struct {
	Success                  bool   `json:"success"`
	TransactionSaved         bool   `json:"transaction_saved"`
	LeaderboardAccessGranted bool   `json:"leaderboard_access_granted"`
	GamesAdded               int    `json:"games_added"`
	GamesRemaining           int    `json:"games_remaining"`
	UserPaidUpdated          string `json:"user_paid_updated"`
}

// UserRanking is the caller's position among ranked users.
type UserRanking struct {
	Rank int   `json:"rank"`
	User *User `json:"user"`
}

// LeaderboardResult is the public ranking surface.
type LeaderboardResult struct {
	TopUsers    []User       `json:"top_users"`
	TotalUsers  int          `json:"total_users"`
	UserRanking *UserRanking `json:"user_ranking"`
}

// Product tags for RecordPayment, matching the backend's transaction col1.
const (
	ProductLeaderboard  = "leaderboard_payment"
	ProductGamePurchase = "game_purchase"
)
