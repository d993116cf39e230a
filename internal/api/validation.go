package api

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidateGameScoreRequest checks a score submission before any storage work.
func ValidateGameScoreRequest(req *GameScoreRequest) error {
	if req.WalletID == "" {
		return fmt.Errorf("walletid is required")
	}
	if req.Score == "" {
		return fmt.Errorf("score is required")
	}
	score, err := decimal.NewFromString(req.Score.String())
	if err != nil {
		return fmt.Errorf("score must be a number")
	}
	if score.IsNegative() {
		return fmt.Errorf("score must not be negative")
	}
	return nil
}

// ValidateTransactionRequest checks a payment record request.
func ValidateTransactionRequest(req *TransactionRequest) error {
	if req.WalletID == "" || req.Hash == "" || req.Paid == "" {
		return fmt.Errorf("walletid, hash, and paid are required")
	}
	paid, err := decimal.NewFromString(req.Paid.String())
	if err != nil {
		return fmt.Errorf("paid must be a number")
	}
	if !paid.IsPositive() {
		return fmt.Errorf("paid must be positive")
	}
	return nil
}

// parseDecimal parses a stored decimal string, treating empty or malformed
// values as zero the way the legacy records require.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseInt parses a stored integer string with the same leniency.
func parseInt(s string) int {
	return int(parseDecimal(s).IntPart())
}
