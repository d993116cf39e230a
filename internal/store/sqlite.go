package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) a SQLite database at path.
// Use ":memory:" for tests.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency under the HTTP handlers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates base tables and applies additive column migrations.
func (s *SQLiteDB) Migrate() error {
	baseMigrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			walletid TEXT PRIMARY KEY,
			amount TEXT NOT NULL DEFAULT '0',
			gameleft TEXT NOT NULL DEFAULT '0',
			lastplayed TEXT NOT NULL DEFAULT '',
			paid TEXT NOT NULL DEFAULT '0',
			highest TEXT NOT NULL DEFAULT '0',
			col1 TEXT NOT NULL DEFAULT '',
			col2 TEXT NOT NULL DEFAULT '',
			col3 TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			walletid TEXT NOT NULL,
			hash TEXT NOT NULL,
			paid TEXT NOT NULL,
			col1 TEXT NOT NULL DEFAULT '',
			col2 TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS daily_scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			walletid TEXT NOT NULL,
			score_date TEXT NOT NULL,
			score REAL NOT NULL,
			prize_claimed TEXT NOT NULL DEFAULT '0',
			UNIQUE(walletid, score_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_scores_date ON daily_scores(score_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_walletid ON transactions(walletid)`,
	}

	for _, migration := range baseMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("base migration failed: %w", err)
		}
	}

	// Additive columns on databases created before the column existed.
	alterMigrations := []string{
		`ALTER TABLE users ADD COLUMN leaderboard_access TEXT NOT NULL DEFAULT '0'`,
	}

	for _, migration := range alterMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			// Duplicate column means the migration already ran.
			if !strings.Contains(err.Error(), "duplicate column name") {
				return fmt.Errorf("alter migration failed: %w", err)
			}
		}
	}

	return nil
}

const userColumns = `walletid, amount, gameleft, lastplayed, paid, highest, col1, col2, col3, leaderboard_access`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.WalletID, &u.Amount, &u.GameLeft, &u.LastPlayed, &u.Paid,
		&u.Highest, &u.Col1, &u.Col2, &u.Col3, &u.LeaderboardAccess,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns the user for walletid, or (nil, nil) if absent.
func (s *SQLiteDB) GetUser(walletid string) (*User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE walletid = ?`, walletid)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a fresh record with default values: zero balances,
// no games, no leaderboard access.
func (s *SQLiteDB) CreateUser(walletid string) (*User, error) {
	_, err := s.db.Exec(`
		INSERT INTO users (walletid, amount, gameleft, lastplayed, paid, highest, col1, col2, col3, leaderboard_access)
		VALUES (?, '0', '0', '', '0', '0', '', '', '', '0')`, walletid)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.GetUser(walletid)
}

// UpdateUser applies a partial update over the allowed columns and returns
// the refreshed record. Unknown fields are ignored.
func (s *SQLiteDB) UpdateUser(walletid string, fields map[string]string) (*User, error) {
	var setClauses []string
	var values []any
	for _, field := range userFields {
		if v, ok := fields[field]; ok {
			setClauses = append(setClauses, field+" = ?")
			values = append(values, v)
		}
	}
	if len(setClauses) == 0 {
		return s.GetUser(walletid)
	}

	values = append(values, walletid)
	query := `UPDATE users SET ` + strings.Join(setClauses, ", ") + ` WHERE walletid = ?`
	if _, err := s.db.Exec(query, values...); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetUser(walletid)
}

// ListUsers returns every user ordered by numeric amount, descending.
func (s *SQLiteDB) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY CAST(amount AS REAL) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SaveTransaction records one payment row, assigning tx.ID.
func (s *SQLiteDB) SaveTransaction(tx *Transaction) error {
	res, err := s.db.Exec(`
		INSERT INTO transactions (walletid, hash, paid, col1, col2)
		VALUES (?, ?, ?, ?, ?)`,
		tx.WalletID, tx.Hash, tx.Paid, tx.Col1, tx.Col2)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	tx.ID, _ = res.LastInsertId()
	return nil
}

// ListTransactions returns all recorded transactions, newest first.
func (s *SQLiteDB) ListTransactions() ([]Transaction, error) {
	rows, err := s.db.Query(`SELECT id, walletid, hash, paid, col1, col2 FROM transactions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Hash, &t.Paid, &t.Col1, &t.Col2); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ResetBalances zeroes every user's leaderboard amount and reports how many
// rows were touched.
func (s *SQLiteDB) ResetBalances() (int64, error) {
	res, err := s.db.Exec(`UPDATE users SET amount = '0'`)
	if err != nil {
		return 0, fmt.Errorf("reset balances: %w", err)
	}
	return res.RowsAffected()
}

// TopUsers returns up to limit ranked users ordered by amount, descending.
func (s *SQLiteDB) TopUsers(limit int) ([]User, error) {
	rows, err := s.db.Query(`
		SELECT `+userColumns+` FROM users
		WHERE leaderboard_access = '1'
		ORDER BY CAST(amount AS REAL) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// CountRankedUsers returns how many users hold leaderboard access.
func (s *SQLiteDB) CountRankedUsers() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE leaderboard_access = '1'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ranked users: %w", err)
	}
	return n, nil
}

// UserRank returns the 1-based rank of walletid among ranked users:
// one more than the count of ranked users with a strictly greater amount.
func (s *SQLiteDB) UserRank(walletid string) (int, error) {
	var rank int
	err := s.db.QueryRow(`
		SELECT COUNT(*) + 1 FROM users
		WHERE leaderboard_access = '1'
		AND CAST(amount AS REAL) > (SELECT CAST(amount AS REAL) FROM users WHERE walletid = ?)`,
		walletid).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("user rank: %w", err)
	}
	return rank, nil
}

// UpsertDailyScore records a wallet's score for a day, keeping the maximum.
func (s *SQLiteDB) UpsertDailyScore(walletid, date string, score float64) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_scores (walletid, score_date, score)
		VALUES (?, ?, ?)
		ON CONFLICT(walletid, score_date)
		DO UPDATE SET score = CASE
			WHEN excluded.score > daily_scores.score THEN excluded.score
			ELSE daily_scores.score
		END`, walletid, date, score)
	if err != nil {
		return fmt.Errorf("upsert daily score: %w", err)
	}
	return nil
}

// DailyWinner returns the wallet with the highest summed score for the date,
// or (nil, nil) when no scores were recorded.
func (s *SQLiteDB) DailyWinner(date string) (*DailyScore, error) {
	row := s.db.QueryRow(`
		SELECT walletid, score_date, SUM(score) AS total_score
		FROM daily_scores
		WHERE score_date = ?
		GROUP BY walletid
		ORDER BY total_score DESC
		LIMIT 1`, date)

	var ds DailyScore
	err := row.Scan(&ds.WalletID, &ds.Date, &ds.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("daily winner: %w", err)
	}
	return &ds, nil
}
