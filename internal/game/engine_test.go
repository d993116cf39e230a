package game

import (
	"math/rand"
	"testing"
	"time"
)

// testClock is a manually advanced clock for exercising epoch transitions.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingSink struct {
	scores  []int
	epochs  []int
	endings []string
}

func (s *recordingSink) ScoreChanged(score int)      { s.scores = append(s.scores, score) }
func (s *recordingSink) EpochStarted(epoch int)      { s.epochs = append(s.epochs, epoch) }
func (s *recordingSink) Ended(score int, msg string) { s.endings = append(s.endings, msg) }

func newTestEngine(t *testing.T, sink Sink) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Unix(1700000000, 0)}
	e := NewEngine(Config{
		Width:  800,
		Height: 800,
		Rand:   rand.New(rand.NewSource(42)),
		Now:    clock.now,
		Sink:   sink,
	})
	return e, clock
}

// collectAll steers the agent onto each live block in turn until the current
// epoch's batch is exhausted or the engine stops accepting frames.
func collectAll(e *Engine) {
	for i := 0; i < 10000; i++ {
		blocks := e.Blocks()
		if len(blocks) == 0 || e.Ended() {
			return
		}
		b := blocks[0]
		e.PointTowards(b.X, b.Y)
		e.Step(0.016)
	}
}

func TestAgentStaysInBounds(t *testing.T) {
	e, _ := newTestEngine(t, NopSink{})
	e.Start()

	// Drive hard into each wall; position must stay clamped every frame.
	headings := []Heading{HeadingLeft, HeadingUp, HeadingRight, HeadingDown}
	for _, h := range headings {
		e.SetHeading(h)
		for i := 0; i < 500; i++ {
			e.Step(0.1)
			a := e.AgentState()
			if a.X < a.Size || a.X > 800-a.Size {
				t.Fatalf("x out of bounds: %f", a.X)
			}
			if a.Y < a.Size || a.Y > 800-a.Size {
				t.Fatalf("y out of bounds: %f", a.Y)
			}
		}
	}
}

func TestZeroDirectionDoesNotMove(t *testing.T) {
	e, _ := newTestEngine(t, NopSink{})
	e.Start()
	before := e.AgentState()
	e.Step(1.0)
	after := e.AgentState()
	if before.X != after.X || before.Y != after.Y {
		t.Errorf("agent moved with zero direction: (%f,%f) -> (%f,%f)", before.X, before.Y, after.X, after.Y)
	}
}

func TestPointTowardsSelfLeavesDirectionUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, NopSink{})
	e.Start()
	e.SetHeading(HeadingRight)
	a := e.AgentState()
	e.PointTowards(a.X, a.Y)
	if got := e.AgentState().Direction; got != (Vec{1, 0}) {
		t.Errorf("direction changed on zero-length vector: %+v", got)
	}
}

func TestStartIdempotentWhileRunning(t *testing.T) {
	e, _ := newTestEngine(t, NopSink{})
	e.Start()
	e.SetHeading(HeadingRight)
	e.Step(0.5)
	score := e.Score()
	pos := e.AgentState()

	e.Start()

	if e.Score() != score {
		t.Errorf("score changed by redundant Start: %d -> %d", score, e.Score())
	}
	if got := e.AgentState(); got.X != pos.X || got.Y != pos.Y {
		t.Errorf("agent moved by redundant Start")
	}
	if e.Collected() != 0 && len(e.Blocks()) != e.Target() {
		t.Errorf("batch regenerated by redundant Start")
	}
}

func TestEpochAdvanceScenario(t *testing.T) {
	sink := &recordingSink{}
	e, clock := newTestEngine(t, sink)
	e.Start()

	blocks := e.Blocks()
	if len(blocks) != 10 {
		t.Fatalf("epoch 161 should start with 10 blocks, got %d", len(blocks))
	}
	wantScore := 0
	for _, b := range blocks {
		wantScore += b.Value
	}

	collectAll(e)

	if e.Score() != wantScore {
		t.Errorf("score = %d, want sum of block values %d", e.Score(), wantScore)
	}
	if e.Epoch() != 162 {
		t.Errorf("epoch = %d, want 162", e.Epoch())
	}
	if e.Collected() != 0 {
		t.Errorf("collectedInEpoch = %d, want 0 after transition", e.Collected())
	}
	if got := len(e.Blocks()); got != 15 {
		t.Errorf("epoch 162 batch = %d blocks, want 15", got)
	}
	if !e.Ended() || e.Running() {
		t.Errorf("expected transient end state after epoch advance")
	}
	if e.EndMessage() != "Epoch 162 Started!" {
		t.Errorf("end message = %q", e.EndMessage())
	}
	if len(sink.epochs) != 1 || sink.epochs[0] != 162 {
		t.Errorf("epoch events = %v, want [162]", sink.epochs)
	}

	// Before the resume delay the engine stays paused.
	e.Step(0.016)
	if e.Running() {
		t.Fatalf("engine resumed before delay elapsed")
	}

	clock.advance(2 * time.Second)
	e.Step(0.016)
	if !e.Running() || e.Ended() {
		t.Fatalf("engine did not auto-continue after delay")
	}
	if e.Score() != wantScore {
		t.Errorf("score reset by auto-continue: %d", e.Score())
	}
}

func TestScoreMonotonicAcrossSession(t *testing.T) {
	sink := &recordingSink{}
	e, clock := newTestEngine(t, sink)
	e.Start()

	last := 0
	for i := 0; i < 3; i++ {
		collectAll(e)
		clock.advance(2 * time.Second)
		e.Step(0.016)
	}
	for _, s := range sink.scores {
		if s < last {
			t.Fatalf("score decreased: %d -> %d", last, s)
		}
		last = s
	}
}

func TestWinAtMaxEpoch(t *testing.T) {
	sink := &recordingSink{}
	e, clock := newTestEngine(t, sink)
	e.Start()

	// Clear 161, 162, then 163.
	for epoch := BaseEpoch; epoch <= MaxEpoch; epoch++ {
		collectAll(e)
		if epoch < MaxEpoch {
			clock.advance(2 * time.Second)
			e.Step(0.016)
		}
	}

	if !e.Ended() || e.Running() {
		t.Fatalf("expected terminal state at max epoch")
	}
	if e.EndMessage() != "You Win!" {
		t.Errorf("end message = %q, want win", e.EndMessage())
	}
	if len(sink.endings) != 1 {
		t.Errorf("ended events = %d, want exactly 1", len(sink.endings))
	}

	// Frames after the terminal state change nothing.
	score := e.Score()
	e.SetHeading(HeadingRight)
	e.Step(1.0)
	if e.Score() != score {
		t.Errorf("score changed after terminal state")
	}

	// Start after a win resets score and regenerates the current epoch batch.
	e.Start()
	if e.Score() != 0 || e.Ended() || !e.Running() {
		t.Errorf("Start after win did not reset session")
	}
	if got := len(e.Blocks()); got != BlocksForEpoch(MaxEpoch) {
		t.Errorf("batch = %d, want %d for current epoch", got, BlocksForEpoch(MaxEpoch))
	}
}

func TestStartDuringTransitionKeepsScore(t *testing.T) {
	e, _ := newTestEngine(t, NopSink{})
	e.Start()
	collectAll(e)
	score := e.Score()
	if score == 0 {
		t.Fatalf("expected nonzero score after clearing epoch")
	}

	// Manual start mid-transition resumes instead of resetting.
	e.Start()
	if !e.Running() || e.Ended() {
		t.Fatalf("manual start did not resume transition")
	}
	if e.Score() != score {
		t.Errorf("score wiped by manual start during transition: %d", e.Score())
	}
}

func TestDestroyCancelsPendingTransition(t *testing.T) {
	e, clock := newTestEngine(t, NopSink{})
	e.Start()
	collectAll(e)
	if !e.Ended() {
		t.Fatalf("expected transient end state")
	}

	e.Destroy()
	e.Destroy() // must be safe to call twice

	clock.advance(5 * time.Second)
	e.Step(0.016)
	if e.Running() {
		t.Errorf("destroyed engine resumed from pending transition")
	}
	e.Start()
	if e.Running() {
		t.Errorf("destroyed engine restarted")
	}
}

func TestRestartReturnsToBaseline(t *testing.T) {
	e, clock := newTestEngine(t, NopSink{})
	e.Start()
	collectAll(e)
	clock.advance(2 * time.Second)
	e.Step(0.016)
	if e.Epoch() != 162 {
		t.Fatalf("setup: expected epoch 162, got %d", e.Epoch())
	}

	e.Restart()
	if e.Epoch() != BaseEpoch || e.Score() != 0 {
		t.Errorf("restart did not return to baseline: epoch=%d score=%d", e.Epoch(), e.Score())
	}
	if got := len(e.Blocks()); got != BlocksForEpoch(BaseEpoch) {
		t.Errorf("restart batch = %d, want %d", got, BlocksForEpoch(BaseEpoch))
	}
	if got := e.AgentState().Speed; got != BaseSpeed {
		t.Errorf("restart speed = %f, want %f", got, BaseSpeed)
	}
}

func TestSpeedForEpoch(t *testing.T) {
	if got := SpeedForEpoch(BaseEpoch); got != BaseSpeed {
		t.Errorf("baseline speed = %f", got)
	}
	want := BaseSpeed * SpeedGrowth * SpeedGrowth
	if got := SpeedForEpoch(BaseEpoch + 2); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("epoch+2 speed = %f, want %f", got, want)
	}
}

func TestBlocksForEpochFallback(t *testing.T) {
	if got := BlocksForEpoch(999); got != defaultEpochBlocks {
		t.Errorf("fallback = %d, want %d", got, defaultEpochBlocks)
	}
}
