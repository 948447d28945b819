package menu

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/steamos-efi/steamcl/internal/selection"
)

// TextBackend is the textual fallback used when no usable glyph set is
// available (spec.md §4.E). It is line-oriented: each poll reads one
// keystroke-equivalent token from In ("up", "down", "enter", "esc", or
// empty for "no input this tick") written by the driving loop — the same
// environment-probed feature-switch pattern the teacher's
// imageconvert.DetectImageFormat uses to choose a fallback path. A frame
// (with the full timeout) is printed at start and after each Up/Down; the
// countdown is not redrawn on TickInterval ticks.
type TextBackend struct {
	Out io.Writer
	In  <-chan string
	now func() time.Time
}

// NewTextBackend returns a TextBackend reading tokens from in and writing
// rendered frames to out.
func NewTextBackend(out io.Writer, in <-chan string) *TextBackend {
	return &TextBackend{Out: out, In: in, now: time.Now}
}

func (b *TextBackend) Close() {}

func (b *TextBackend) RunLoop(opts []selection.Option, startIndex int, timeout time.Duration) (Outcome, error) {
	idx := startIndex
	if idx < 0 || idx >= len(opts) {
		idx = 0
	}
	start := b.nowFunc()
	b.render(opts, idx, timeout)

	var deadline <-chan time.Time
	var timer *time.Timer
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case tok, ok := <-b.In:
			if !ok {
				return Outcome{SelectedIndex: -1, Elapsed: b.nowFunc().Sub(start)}, nil
			}
			if tok != "" {
				deadline = nil // any keypress freezes the countdown
			}
			switch tok {
			case "up":
				idx = advance(idx, len(opts), actionUp)
				b.render(opts, idx, timeout)
			case "down":
				idx = advance(idx, len(opts), actionDown)
				b.render(opts, idx, timeout)
			case "enter":
				return Outcome{SelectedIndex: idx, Elapsed: b.nowFunc().Sub(start)}, nil
			case "esc":
				return Outcome{SelectedIndex: -1, Elapsed: b.nowFunc().Sub(start)}, nil
			}
		case <-deadline:
			return Outcome{SelectedIndex: idx, Elapsed: b.nowFunc().Sub(start), TimedOut: true}, nil
		}
	}
}

func (b *TextBackend) nowFunc() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

func (b *TextBackend) render(opts []selection.Option, highlight int, timeout time.Duration) {
	w := bufio.NewWriter(b.Out)
	defer w.Flush()
	for i, o := range opts {
		marker := "  "
		if i == highlight {
			marker = "> "
		}
		fmt.Fprintf(w, "%s%s\n", marker, o.Label)
	}
	if timeout > 0 {
		fmt.Fprintf(w, "(boot in %s)\n", timeout)
	}
}
