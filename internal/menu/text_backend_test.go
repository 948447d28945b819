package menu

import (
	"bytes"
	"testing"
	"time"

	"github.com/steamos-efi/steamcl/internal/selection"
)

func testOpts() []selection.Option {
	return []selection.Option{
		{Label: "A", CandidateIndex: 0},
		{Label: "B", CandidateIndex: 1},
		{Label: "C", CandidateIndex: 2},
	}
}

func TestTextBackendEnterSelects(t *testing.T) {
	in := make(chan string, 1)
	var out bytes.Buffer
	b := NewTextBackend(&out, in)
	in <- "enter"
	res, err := b.RunLoop(testOpts(), 1, 0)
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if res.SelectedIndex != 1 {
		t.Errorf("SelectedIndex = %d, want 1", res.SelectedIndex)
	}
}

func TestTextBackendEscCancels(t *testing.T) {
	in := make(chan string, 1)
	var out bytes.Buffer
	b := NewTextBackend(&out, in)
	in <- "esc"
	res, err := b.RunLoop(testOpts(), 0, 0)
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if res.SelectedIndex != -1 {
		t.Errorf("SelectedIndex = %d, want -1", res.SelectedIndex)
	}
}

func TestTextBackendDownWrapsAtEnd(t *testing.T) {
	in := make(chan string, 2)
	var out bytes.Buffer
	b := NewTextBackend(&out, in)
	in <- "down"
	in <- "enter"
	res, err := b.RunLoop(testOpts(), 2, 0) // start at last entry
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if res.SelectedIndex != 0 {
		t.Errorf("Down past last entry should wrap to 0, got %d", res.SelectedIndex)
	}
}

func TestTextBackendTimesOut(t *testing.T) {
	in := make(chan string)
	var out bytes.Buffer
	b := NewTextBackend(&out, in)
	res, err := b.RunLoop(testOpts(), 0, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if !res.TimedOut {
		t.Errorf("expected TimedOut = true")
	}
	if res.SelectedIndex != 0 {
		t.Errorf("timeout should preserve highlighted index, got %d", res.SelectedIndex)
	}
}

func TestAdvanceUpClampsAtZero(t *testing.T) {
	if got := advance(0, 3, actionUp); got != 0 {
		t.Errorf("advance(0, 3, up) = %d, want 0", got)
	}
}
