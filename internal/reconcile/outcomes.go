package reconcile

// Outcome classifies a score submission against the access level the client
// held before the call, so the caller can tell "on the board" apart from
// "saved as personal best only".
type Outcome int

const (
	// OutcomeFailed means the backend never accepted the score; the cached
	// user is untouched and the submission may be retried.
	OutcomeFailed Outcome = iota

	// OutcomeSaved means the score was accepted and the wallet ranks.
	OutcomeSaved

	// OutcomeSavedUnranked means the score was accepted as a personal best
	// but the wallet holds no leaderboard access.
	OutcomeSavedUnranked

	// OutcomeSuppressed means nothing was sent: a duplicate terminal event,
	// or a free-play session with no wallet. Not a failure.
	OutcomeSuppressed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeSavedUnranked:
		return "saved-unranked"
	case OutcomeSuppressed:
		return "suppressed"
	default:
		return "failed"
	}
}
