// Package menu implements spec.md §4.E: given a (menu, start_index,
// timeout) triple, display it, accept key events, and return the selected
// option's payload plus elapsed time. Rendering is delegated to a
// pluggable Backend — graphical (github.com/rivo/tview +
// github.com/gdamore/tcell, grounded on the teacher's
// cmd/live-installer/texture-ui primitives) if a usable glyph set is
// available, textual otherwise.
package menu

import (
	"time"

	"github.com/steamos-efi/steamcl/internal/selection"
)

// TickInterval is the countdown/highlight redraw period (spec.md §4.E:
// "a timer tick every 100ms drives the countdown label").
const TickInterval = 100 * time.Millisecond

// Outcome is the menu loop's result: the chosen option's index (-1 on Esc)
// and how long the loop ran.
type Outcome struct {
	SelectedIndex int
	Elapsed       time.Duration
	TimedOut      bool
}

// Backend is the capability record spec.md §9 "Menu-backend polymorphism"
// describes: render_layout, render_option, show_countdown, run_loop, free.
// Go idiom expresses it as an interface rather than a struct of function
// pointers.
type Backend interface {
	// RunLoop displays opts with startIndex highlighted, waits up to
	// timeout (0 = no timeout) for Up/Down/Enter/Esc, and returns the
	// outcome. Countdown is refreshed every TickInterval and freezes on
	// any keypress, per spec.md §4.E.
	RunLoop(opts []selection.Option, startIndex int, timeout time.Duration) (Outcome, error)

	// Close releases backend resources (screen, fonts, ...).
	Close()
}

// keyAction is the small, firmware-notify-safe event vocabulary the main
// loop polls, per spec.md §5: "a key-notify callback ... must do nothing
// but set a shared flag". Concrete backends translate real key events into
// this enum before handing them to the shared navigation logic (advance,
// in navigate.go).
type keyAction int

const (
	actionNone keyAction = iota
	actionUp
	actionDown
	actionEnter
	actionEsc
)
