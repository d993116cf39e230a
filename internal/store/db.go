package store

// DB is the persistence interface for the arcade backend.
type DB interface {
	Close() error
	Migrate() error

	GetUser(walletid string) (*User, error)
	CreateUser(walletid string) (*User, error)
	UpdateUser(walletid string, fields map[string]string) (*User, error)
	ListUsers() ([]User, error)

	SaveTransaction(tx *Transaction) error
	ListTransactions() ([]Transaction, error)
	ResetBalances() (int64, error)

	// Leaderboard queries cover only users whose leaderboard_access flag
	// is "1"; ordering is by numeric amount, descending.
	TopUsers(limit int) ([]User, error)
	CountRankedUsers() (int, error)
	UserRank(walletid string) (int, error)

	UpsertDailyScore(walletid, date string, score float64) error
	DailyWinner(date string) (*DailyScore, error)
}

// User is one wallet's record. Monetary and score fields are decimal strings
// so no float rounding ever leaks into transport or storage.
type User struct {
	WalletID          string `json:"walletid" db:"walletid"`
	Amount            string `json:"amount" db:"amount"`
	GameLeft          string `json:"gameleft" db:"gameleft"`
	LastPlayed        string `json:"lastplayed" db:"lastplayed"`
	Paid              string `json:"paid" db:"paid"`
	Highest           string `json:"highest" db:"highest"`
	Col1              string `json:"col1" db:"col1"`
	Col2              string `json:"col2" db:"col2"`
	Col3              string `json:"col3" db:"col3"`
	LeaderboardAccess string `json:"leaderboard_access" db:"leaderboard_access"`
}

// HasLeaderboardAccess reports whether the wallet's scores rank publicly.
func (u *User) HasLeaderboardAccess() bool {
	return u.LeaderboardAccess == "1"
}

// Transaction is one recorded on-chain payment.
// Col1 carries the product tag ("leaderboard_payment", "game_purchase"),
// Col2 product-specific detail.
type Transaction struct {
	ID       int64  `json:"id" db:"id"`
	WalletID string `json:"walletid" db:"walletid"`
	Hash     string `json:"hash" db:"hash"`
	Paid     string `json:"paid" db:"paid"`
	Col1     string `json:"col1" db:"col1"`
	Col2     string `json:"col2" db:"col2"`
}

// DailyScore is a wallet's best score for one calendar day.
type DailyScore struct {
	WalletID string  `json:"walletid" db:"walletid"`
	Date     string  `json:"score_date" db:"score_date"`
	Score    float64 `json:"score" db:"score"`
}

// userFields are the columns a partial update may touch. walletid is the
// primary key and never updatable.
var userFields = []string{
	"amount", "gameleft", "lastplayed", "paid",
	"highest", "col1", "col2", "col3", "leaderboard_access",
}
