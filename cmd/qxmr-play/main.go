// Command qxmr-play runs the arcade game in a terminal. It drives the same
// engine the server embeds, and with a wallet id configured it submits the
// final score to the backend when a run ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/game"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/reconcile"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/session"
)

const (
	fieldWidth  = 800.0
	fieldHeight = 800.0
)

type app struct {
	screen     tcell.Screen
	engine     *game.Engine
	controller *session.Controller

	status    string
	submitted chan string
}

func newApp(apiURL, wallet string) (*app, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	a := &app{
		screen:    screen,
		engine:    game.NewEngine(game.Config{Width: fieldWidth, Height: fieldHeight}),
		submitted: make(chan string, 1),
		status:    "press SPACE to start, arrows to move, q to quit",
	}
	if apiURL != "" && wallet != "" {
		a.controller = session.NewController(reconcile.NewClient(reconcile.Config{BaseURL: apiURL}))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.controller.Connect(ctx, wallet); err != nil {
			// Play proceeds; the record is fetched again at submit time.
			a.status = fmt.Sprintf("wallet connected, record fetch failed: %v", err)
		}
	}
	return a, nil
}

func (a *app) run() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			events <- a.screen.PollEvent()
		}
	}()

	wasEnded := false
	last := time.Now()
	for {
		select {
		case ev := <-events:
			if !a.handleInput(ev) {
				return
			}
		case msg := <-a.submitted:
			a.status = msg
		case now := <-ticker.C:
			a.engine.Step(now.Sub(last).Seconds())
			last = now

			ended := a.engine.Ended() && !a.engine.Running()
			if ended && !wasEnded && a.engine.EndMessage() == "You Win!" {
				a.onGameEnd(a.engine.Score())
			}
			wasEnded = ended
			a.draw()
		}
	}
}

func (a *app) onGameEnd(score int) {
	if a.controller == nil {
		a.status = fmt.Sprintf("final score %d (no wallet, not submitted)", score)
		return
	}
	a.status = fmt.Sprintf("final score %d, submitting...", score)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		outcome, submitted, err := a.controller.HandleGameEnd(ctx, score)
		switch {
		case err != nil:
			a.submitted <- fmt.Sprintf("score %d submit failed: %v", score, err)
		case !submitted:
			a.submitted <- fmt.Sprintf("score %d already submitted", score)
		default:
			a.submitted <- fmt.Sprintf("score %d %s", score, outcome)
		}
	}()
}

func (a *app) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyUp:
			a.engine.SetHeading(game.HeadingUp)
		case ev.Key() == tcell.KeyDown:
			a.engine.SetHeading(game.HeadingDown)
		case ev.Key() == tcell.KeyLeft:
			a.engine.SetHeading(game.HeadingLeft)
		case ev.Key() == tcell.KeyRight:
			a.engine.SetHeading(game.HeadingRight)
		case ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
			a.engine.Start()
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
			a.engine.Restart()
		}
	}
	return true
}

func (a *app) draw() {
	a.screen.Clear()
	w, h := a.screen.Size()
	if h < 3 {
		a.screen.Show()
		return
	}
	fieldH := h - 2

	toCell := func(x, y float64) (int, int) {
		cx := int(x / fieldWidth * float64(w))
		cy := 1 + int(y/fieldHeight*float64(fieldH))
		if cx >= w {
			cx = w - 1
		}
		if cy >= h-1 {
			cy = h - 2
		}
		return cx, cy
	}

	hud := fmt.Sprintf(" score %d  epoch %d  blocks %d/%d",
		a.engine.Score(), a.engine.Epoch(), a.engine.Collected(), a.engine.Target())
	drawText(a.screen, 0, 0, tcell.StyleDefault.Reverse(true), padTo(hud, w))

	blockStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	for _, b := range a.engine.Blocks() {
		x, y := toCell(b.X, b.Y)
		a.screen.SetContent(x, y, '$', nil, blockStyle)
	}

	agent := a.engine.AgentState()
	ax, ay := toCell(agent.X, agent.Y)
	a.screen.SetContent(ax, ay, '@', nil, tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true))

	line := a.status
	if a.engine.Ended() {
		line = a.engine.EndMessage() + "  (SPACE to continue)"
	}
	drawText(a.screen, 0, h-1, tcell.StyleDefault, padTo(" "+line, w))

	a.screen.Show()
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range text {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func padTo(s string, w int) string {
	for len(s) < w {
		s += " "
	}
	return s
}

func main() {
	apiURL := flag.String("api", "", "backend base URL, e.g. http://localhost:8080/api")
	wallet := flag.String("wallet", "", "wallet id for score submission")
	flag.Parse()

	a, err := newApp(*apiURL, *wallet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		a.engine.Destroy()
		a.screen.Fini()
	}()

	a.run()
}
