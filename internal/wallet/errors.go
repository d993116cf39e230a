package wallet

import "fmt"

// HTTPError is a non-200 response from the gateway.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("wallet: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the request may be reissued (rate limits and
// server errors).
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// GatewayError is an application-level error payload from the gateway.
type GatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("wallet: gateway error %d: %s", e.Code, e.Message)
}

// InsufficientBalanceError means the purchase was refused before any
// signing or broadcast happened. No funds moved.
type InsufficientBalanceError struct {
	Available int64
	Required  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("wallet: insufficient balance: have %d, need %d", e.Available, e.Required)
}

// RecordingError means the transaction was broadcast but the backend never
// recorded it: funds moved, state did not. The transaction id is kept so
// the recording can be replayed.
type RecordingError struct {
	TransactionID string
	Err           error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("wallet: transaction %s broadcast but not recorded: %v", e.TransactionID, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }
