package menu

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell"
	"github.com/rivo/tview"
)

// countdownBox is a small tview primitive showing "boot in Ns", grounded
// on the teacher's navigationbar/customshortcutlist primitives
// (cmd/live-installer/texture-ui/primitives/...): a struct embedding
// *tview.Box with chainable SetXxx setters and an internal highlight/value
// field, redrawn on tick via Application.QueueUpdateDraw.
type countdownBox struct {
	*tview.Box
	remaining time.Duration
	frozen    bool
}

func newCountdownBox() *countdownBox {
	return &countdownBox{Box: tview.NewBox()}
}

// SetRemaining sets the countdown's displayed value and returns the box
// for chaining, matching the teacher primitives' SetXxx(...) *Xxx shape.
func (c *countdownBox) SetRemaining(d time.Duration) *countdownBox {
	if !c.frozen {
		c.remaining = d
	}
	return c
}

// Freeze stops the countdown display from advancing further, mirroring
// spec.md §4.E: "the countdown freezes on any keypress".
func (c *countdownBox) Freeze() *countdownBox {
	c.frozen = true
	return c
}

func (c *countdownBox) Draw(screen tcell.Screen) {
	c.Box.DrawForSubclass(screen, c)
	x, y, w, _ := c.GetInnerRect()
	label := fmt.Sprintf("boot in %ds", int(c.remaining.Round(time.Second)/time.Second))
	tview.Print(screen, label, x, y, w, tview.AlignLeft, tcell.ColorWhite)
}
