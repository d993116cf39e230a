// Package gamehub bridges the game engine to an embedding host over a
// websocket. Each connection owns one engine instance driven by a
// server-side ticker; the host streams input in and receives score, epoch,
// and end events back. Closing the connection destroys the engine, pending
// epoch transition included.
package gamehub

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/game"
)

// Options configures the hub.
type Options struct {
	// OriginPatterns is the websocket origin allowlist, passed through to
	// the accept handshake. Empty means same-origin only.
	OriginPatterns []string

	// TickInterval is the wall-clock cadence of engine steps.
	// Defaults to 50ms.
	TickInterval time.Duration

	// StepSize is the simulated seconds advanced per tick. Defaults to
	// TickInterval in seconds.
	StepSize float64

	// Engine seeds per-connection engine construction; its Sink field is
	// replaced by the hub.
	Engine game.Config
}

// Hub accepts game connections.
type Hub struct {
	opts Options
}

// NewHub creates a hub with the given options.
func NewHub(opts Options) *Hub {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 50 * time.Millisecond
	}
	if opts.StepSize <= 0 {
		opts.StepSize = opts.TickInterval.Seconds()
	}
	return &Hub{opts: opts}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		log.Printf("ws_accept_failed remote=%s err=%v", r.RemoteAddr, err)
		return
	}

	s := &session{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		out:  make(chan outbound, 32),
		in:   make(chan inbound, 32),
	}
	cfg := h.opts.Engine
	cfg.Sink = (*sessionSink)(s)
	s.engine = game.NewEngine(cfg)

	log.Printf("ws_session_open id=%s remote=%s", s.id, r.RemoteAddr)
	err = s.run(r.Context())
	s.engine.Destroy()
	if err != nil && !errors.Is(err, context.Canceled) {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
	}
	log.Printf("ws_session_close id=%s err=%v", s.id, err)
	conn.Close(websocket.StatusNormalClosure, "")
}

// session is one connected host with its private engine. The engine is only
// touched from the run loop goroutine.
type session struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	engine *game.Engine

	out chan outbound
	in  chan inbound

	highScore int
}

func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go s.readLoop(ctx, readErr)
	writeErr := make(chan error, 1)
	go s.writeLoop(ctx, writeErr)

	ticker := time.NewTicker(s.hub.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case err := <-writeErr:
			return err
		case msg := <-s.in:
			s.handle(msg)
		case <-ticker.C:
			s.engine.Step(s.hub.opts.StepSize)
		}
	}
}

func (s *session) readLoop(ctx context.Context, done chan<- error) {
	for {
		var msg inbound
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			done <- err
			return
		}
		select {
		case s.in <- msg:
		case <-ctx.Done():
			done <- ctx.Err()
			return
		}
	}
}

func (s *session) writeLoop(ctx context.Context, done chan<- error) {
	for {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
			return
		case msg := <-s.out:
			if err := wsjson.Write(ctx, s.conn, msg); err != nil {
				done <- err
				return
			}
		}
	}
}

func (s *session) handle(msg inbound) {
	switch msg.Type {
	case msgSetHighScore:
		s.highScore = msg.HighScore
	case msgDirection:
		s.engine.SetHeading(parseHeading(msg.Direction))
	case msgPointTowards:
		s.engine.PointTowards(msg.X, msg.Y)
	case msgStart:
		s.engine.Start()
	case msgRestart:
		s.engine.Restart()
	default:
		log.Printf("ws_unknown_message id=%s type=%s", s.id, msg.Type)
	}
}

func parseHeading(dir string) game.Heading {
	switch dir {
	case "up":
		return game.HeadingUp
	case "down":
		return game.HeadingDown
	case "left":
		return game.HeadingLeft
	case "right":
		return game.HeadingRight
	}
	return game.HeadingNone
}

// send drops events when the host cannot keep up; score events are
// idempotent snapshots, so a dropped frame only delays the next update.
func (s *session) send(msg outbound) {
	select {
	case s.out <- msg:
	default:
	}
}

// sessionSink adapts the session to the engine's event interface. Calls
// arrive from Step inside the run loop.
type sessionSink session

func (s *sessionSink) ScoreChanged(score int) {
	sess := (*session)(s)
	sess.send(outbound{Type: msgScoreUpdate, Score: score})
	if score > sess.highScore {
		sess.highScore = score
		sess.send(outbound{Type: msgHighScoreUpdate, HighScore: score})
	}
}

func (s *sessionSink) EpochStarted(epoch int) {
	(*session)(s).send(outbound{Type: msgEpochStart, Epoch: epoch})
}

func (s *sessionSink) Ended(score int, message string) {
	(*session)(s).send(outbound{Type: msgGameEnd, Score: score, Message: message})
}
