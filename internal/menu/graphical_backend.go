package menu

import (
	"time"

	"github.com/gdamore/tcell"
	"github.com/rivo/tview"

	"github.com/steamos-efi/steamcl/internal/selection"
)

// GraphicalBackend renders the menu with tview/tcell (teacher dependencies
// already used for cmd/live-installer/texture-ui). The countdown/highlight
// widget is countdownBox, grounded on the teacher's navigationbar-shaped
// primitives.
type GraphicalBackend struct {
	app *tview.Application
}

// NewGraphicalBackend constructs a backend around a fresh tview
// application.
func NewGraphicalBackend() *GraphicalBackend {
	return &GraphicalBackend{app: tview.NewApplication()}
}

func (g *GraphicalBackend) Close() {
	g.app.Stop()
}

// menuRequest is the single-buffered channel spec.md §5 describes: a
// key-notify callback writes to it and does nothing else; the main loop's
// select drains it. Here tview's own input-capture callback plays the role
// of the firmware key-notify hook.
type menuRequest struct {
	action keyAction
}

func (g *GraphicalBackend) RunLoop(opts []selection.Option, startIndex int, timeout time.Duration) (Outcome, error) {
	if startIndex < 0 || startIndex >= len(opts) {
		startIndex = 0
	}

	list := tview.NewList()
	for _, o := range opts {
		list.AddItem(o.Label, o.Blurb, 0, nil)
	}
	list.SetCurrentItem(startIndex)

	countdown := newCountdownBox().SetRemaining(timeout)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(list, 0, 1, true).
		AddItem(countdown, 1, 0, false)

	events := make(chan menuRequest, 1)
	frozen := false

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		var a keyAction
		switch event.Key() {
		case tcell.KeyEnter:
			a = actionEnter
		case tcell.KeyEsc:
			a = actionEsc
		case tcell.KeyUp:
			a = actionUp
		case tcell.KeyDown:
			a = actionDown
		default:
			return event
		}
		select {
		case events <- menuRequest{action: a}:
		default:
		}
		return nil
	})

	outcome := make(chan Outcome, 1)
	start := time.Now()

	go func() {
		var ticker *time.Ticker
		var tickC <-chan time.Time
		var deadline <-chan time.Time
		remaining := timeout
		if timeout > 0 {
			ticker = time.NewTicker(TickInterval)
			tickC = ticker.C
			deadline = time.After(timeout)
			defer ticker.Stop()
		}
		idx := startIndex
		for {
			select {
			case req := <-events:
				frozen = true
				deadline = nil
				switch req.action {
				case actionUp:
					idx = advance(idx, len(opts), actionUp)
					g.app.QueueUpdateDraw(func() { list.SetCurrentItem(idx) })
				case actionDown:
					idx = advance(idx, len(opts), actionDown)
					g.app.QueueUpdateDraw(func() { list.SetCurrentItem(idx) })
				case actionEnter:
					outcome <- Outcome{SelectedIndex: idx, Elapsed: time.Since(start)}
					g.app.Stop()
					return
				case actionEsc:
					outcome <- Outcome{SelectedIndex: -1, Elapsed: time.Since(start)}
					g.app.Stop()
					return
				}
			case <-tickC:
				if frozen {
					continue
				}
				remaining -= TickInterval
				if remaining < 0 {
					remaining = 0
				}
				g.app.QueueUpdateDraw(func() { countdown.SetRemaining(remaining) })
			case <-deadline:
				outcome <- Outcome{SelectedIndex: idx, Elapsed: time.Since(start), TimedOut: true}
				g.app.Stop()
				return
			}
		}
	}()

	if err := g.app.SetRoot(flex, true).Run(); err != nil {
		return Outcome{}, err
	}

	select {
	case out := <-outcome:
		return out, nil
	default:
		return Outcome{SelectedIndex: startIndex, Elapsed: time.Since(start)}, nil
	}
}
