package game

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Vec is a 2D vector in field coordinates.
type Vec struct {
	X float64
	Y float64
}

// Agent is the player-controlled entity chasing blocks across the field.
type Agent struct {
	X         float64
	Y         float64
	Size      float64
	Speed     float64
	Direction Vec
}

// Block is a single collectible with a randomized point value.
type Block struct {
	X     float64
	Y     float64
	Size  float64
	Value int
}

// Heading is a discrete 4-way input. Pressing a new arrow fully replaces the
// current heading; releasing all arrows maps to HeadingNone.
type Heading int

const (
	HeadingNone Heading = iota
	HeadingUp
	HeadingDown
	HeadingLeft
	HeadingRight
)

func (h Heading) vec() Vec {
	switch h {
	case HeadingUp:
		return Vec{0, -1}
	case HeadingDown:
		return Vec{0, 1}
	case HeadingLeft:
		return Vec{-1, 0}
	case HeadingRight:
		return Vec{1, 0}
	}
	return Vec{}
}

// Config configures a new Engine. Zero values fall back to sensible defaults
// so tests can construct engines with only the fields they care about.
type Config struct {
	Width  float64
	Height float64

	// Rand is the block-placement source. Defaults to a time-seeded source.
	Rand *rand.Rand

	// Now is the clock used for epoch auto-continue deadlines.
	Now func() time.Time

	// Sink receives engine events. Defaults to NopSink.
	Sink Sink
}

// pendingTransition is a scheduled epoch auto-continue owned by the engine.
// Step consumes it once the deadline passes; Destroy cancels it. Holding the
// transition as state instead of a detached timer means a torn-down engine
// can never observe a stray continuation.
type pendingTransition struct {
	resumeAt time.Time
}

// Engine simulates one agent collecting point-valued blocks on a 2D field,
// organized into epochs of increasing difficulty. It is single-threaded:
// the owner drives it through Step from one goroutine.
type Engine struct {
	width  float64
	height float64
	rng    *rand.Rand
	now    func() time.Time
	sink   Sink

	agent  Agent
	blocks []Block

	score            int
	currentEpoch     int
	collectedInEpoch int
	epochTarget      int

	running    bool
	ended      bool
	endMessage string

	resume    *pendingTransition
	destroyed bool
}

// NewEngine creates an engine initialized at the baseline epoch with a full
// block batch and the agent centered.
func NewEngine(cfg Config) *Engine {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 800
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}

	e := &Engine{
		width:  cfg.Width,
		height: cfg.Height,
		rng:    cfg.Rand,
		now:    cfg.Now,
		sink:   cfg.Sink,
	}
	e.reset()
	return e
}

// reset returns the session to the baseline epoch with a fresh batch.
func (e *Engine) reset() {
	e.score = 0
	e.currentEpoch = BaseEpoch
	e.collectedInEpoch = 0
	e.epochTarget = BlocksForEpoch(BaseEpoch)
	e.ended = false
	e.endMessage = ""
	e.resume = nil
	e.agent = Agent{
		X:     e.width / 2,
		Y:     e.height / 2,
		Size:  AgentSize,
		Speed: BaseSpeed,
	}
	e.blocks = e.generateBlocks(e.epochTarget)
}

func (e *Engine) generateBlocks(count int) []Block {
	blocks := make([]Block, 0, count)
	for i := 0; i < count; i++ {
		blocks = append(blocks, Block{
			X:     e.rng.Float64()*(e.width-2*spawnMargin) + spawnMargin,
			Y:     e.rng.Float64()*(e.height-2*spawnMargin) + spawnMargin,
			Size:  BlockSize,
			Value: e.rng.Intn(blockValueSpan) + blockValueMin,
		})
	}
	return blocks
}

// Start begins or resumes the session.
//
// After a terminal end it fully resets session state, regenerates the block
// batch for the current epoch and re-centers the agent. During a pending
// epoch transition it consumes the transition immediately instead of
// resetting, so a manual start cannot wipe the running score. Calling Start
// while already running has no observable effect.
func (e *Engine) Start() {
	if e.destroyed {
		return
	}
	if e.resume != nil {
		e.consumeTransition()
		return
	}
	if e.ended {
		e.ended = false
		e.endMessage = ""
		e.score = 0
		e.collectedInEpoch = 0
		e.blocks = e.generateBlocks(e.epochTarget)
		e.centerAgent()
	}
	e.running = true
}

// Restart returns the session to the baseline epoch regardless of state.
func (e *Engine) Restart() {
	if e.destroyed {
		return
	}
	wasRunning := e.running
	e.reset()
	e.running = wasRunning
}

func (e *Engine) centerAgent() {
	e.agent.X = e.width / 2
	e.agent.Y = e.height / 2
	e.agent.Direction = Vec{}
}

func (e *Engine) consumeTransition() {
	e.resume = nil
	e.ended = false
	e.endMessage = ""
	e.running = true
}

// Step advances the simulation by elapsed seconds. It is a no-op while the
// session is ended, except that a due pending epoch transition resumes play
// at the top of the frame.
func (e *Engine) Step(elapsed float64) {
	if e.destroyed || (!e.running && e.resume == nil) {
		return
	}
	if e.resume != nil {
		if e.now().Before(e.resume.resumeAt) {
			return
		}
		e.consumeTransition()
	}
	if e.ended {
		return
	}

	// Integrate position only for a non-zero direction.
	if e.agent.Direction.X != 0 || e.agent.Direction.Y != 0 {
		e.agent.X += e.agent.Direction.X * e.agent.Speed * elapsed
		e.agent.Y += e.agent.Direction.Y * e.agent.Speed * elapsed
	}

	// The agent never renders outside the playfield.
	e.agent.X = math.Max(e.agent.Size, math.Min(e.agent.X, e.width-e.agent.Size))
	e.agent.Y = math.Max(e.agent.Size, math.Min(e.agent.Y, e.height-e.agent.Size))

	// Collect every block whose bounding circle overlaps the agent this
	// frame. Iterating backwards keeps removal stable.
	for i := len(e.blocks) - 1; i >= 0; i-- {
		b := e.blocks[i]
		dx := e.agent.X - b.X
		dy := e.agent.Y - b.Y
		if math.Sqrt(dx*dx+dy*dy) >= e.agent.Size+b.Size/2 {
			continue
		}
		e.score += b.Value
		e.collectedInEpoch++
		e.blocks = append(e.blocks[:i], e.blocks[i+1:]...)
		e.sink.ScoreChanged(e.score)

		if e.collectedInEpoch >= e.epochTarget {
			if e.currentEpoch >= MaxEpoch {
				e.ended = true
				e.endMessage = "You Win!"
				e.running = false
				e.sink.Ended(e.score, e.endMessage)
				return
			}
			e.advanceEpoch()
			return
		}
	}
}

// advanceEpoch moves the session to the next difficulty tier: new block
// target and batch, scaled speed, re-centered agent, and a transient end
// state that auto-continues after a fixed delay.
func (e *Engine) advanceEpoch() {
	e.currentEpoch++
	if e.currentEpoch > MaxEpoch {
		e.currentEpoch = MaxEpoch
	}
	e.collectedInEpoch = 0
	e.epochTarget = BlocksForEpoch(e.currentEpoch)
	e.agent.Speed = SpeedForEpoch(e.currentEpoch)
	e.blocks = e.generateBlocks(e.epochTarget)
	e.centerAgent()

	e.ended = true
	e.running = false
	e.endMessage = fmt.Sprintf("Epoch %d Started!", e.currentEpoch)
	e.resume = &pendingTransition{resumeAt: e.now().Add(epochResumeDelay)}
	e.sink.EpochStarted(e.currentEpoch)
}

// SetHeading applies a discrete 4-way input, replacing the current direction.
func (e *Engine) SetHeading(h Heading) {
	if e.destroyed {
		return
	}
	e.agent.Direction = h.vec()
}

// PointTowards steers the agent toward a field coordinate, as a touch or
// pointer would. A zero-length vector leaves the direction unchanged.
func (e *Engine) PointTowards(x, y float64) {
	if e.destroyed {
		return
	}
	dx := x - e.agent.X
	dy := y - e.agent.Y
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist == 0 {
		return
	}
	e.agent.Direction = Vec{X: dx / dist, Y: dy / dist}
}

// Destroy stops the engine and cancels any pending epoch transition.
// Safe to call multiple times.
func (e *Engine) Destroy() {
	e.destroyed = true
	e.running = false
	e.resume = nil
}

// --- Inspection ---

// Score returns the accumulated score. It never decreases within a session.
func (e *Engine) Score() int { return e.score }

// Epoch returns the current difficulty tier.
func (e *Engine) Epoch() int { return e.currentEpoch }

// Collected returns how many blocks of the current epoch have been consumed.
func (e *Engine) Collected() int { return e.collectedInEpoch }

// Target returns the block count required to clear the current epoch.
func (e *Engine) Target() int { return e.epochTarget }

// Running reports whether the session is actively simulating.
func (e *Engine) Running() bool { return e.running }

// Ended reports whether the session is in an end state (terminal or the
// transient epoch-transition pause).
func (e *Engine) Ended() bool { return e.ended }

// EndMessage returns the message associated with the current end state.
func (e *Engine) EndMessage() string { return e.endMessage }

// AgentState returns a copy of the agent.
func (e *Engine) AgentState() Agent { return e.agent }

// Blocks returns a copy of the live block batch.
func (e *Engine) Blocks() []Block {
	out := make([]Block, len(e.blocks))
	copy(out, e.blocks)
	return out
}
