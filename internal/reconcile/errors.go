package reconcile

import "fmt"

// HTTPError is a non-200 response from the backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("reconcile: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the request may be reissued (rate limits and
// server errors).
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
