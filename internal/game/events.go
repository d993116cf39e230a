package game

// Sink receives engine events. It is scoped to a single engine instance and
// injected at construction; the engine never publishes to any global registry.
// Callbacks run synchronously inside Step and must not re-enter the engine.
type Sink interface {
	// ScoreChanged fires after every block collection with the new total.
	ScoreChanged(score int)

	// EpochStarted fires when an epoch transition is scheduled. The engine
	// pauses on a transient end state and resumes automatically.
	EpochStarted(epoch int)

	// Ended fires on the terminal win state with the final score.
	Ended(score int, message string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ScoreChanged(int)  {}
func (NopSink) EpochStarted(int)  {}
func (NopSink) Ended(int, string) {}
