package selection

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/bootconf"
	"github.com/steamos-efi/steamcl/internal/discover"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/platform/simfw"
)

func cand(label string, requestedAt, tries uint64, bootOther bool, disabled bool) discover.Candidate {
	cfg := bootconf.New()
	if bootOther {
		_ = cfg.SetUint("boot-other", 1)
	}
	return discover.Candidate{
		PartitionUUID: uuid.New(),
		Label:         label,
		Config:        cfg,
		RequestedAt:   requestedAt,
		Tries:         tries,
		Disabled:      disabled,
	}
}

func TestScenario1_NewestWinsNoOverrides(t *testing.T) {
	a := cand("A", 20240101000000, 0, false, false)
	b := cand("B", 20240102000000, 0, false, false)
	res, err := Select(Inputs{Candidates: []discover.Candidate{a, b}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Chosen.Label != "B" {
		t.Errorf("chosen = %q, want B", res.Chosen.Label)
	}
	if res.MenuReason != ReasonNone {
		t.Errorf("menu reason = %v, want none", res.MenuReason)
	}
	if line := AssembleCommandLine(res.EntryFlags, false, false); line != "" {
		t.Errorf("command line = %q, want empty", line)
	}
}

func TestScenario2_BootOtherSkipsNewest(t *testing.T) {
	a := cand("A", 20240101000000, 0, false, false)
	b := cand("B", 20240102000000, 0, true, false)
	res, err := Select(Inputs{Candidates: []discover.Candidate{a, b}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Chosen.Label != "A" {
		t.Errorf("chosen = %q, want A", res.Chosen.Label)
	}
	if res.EntryFlags&FlagBootOther == 0 {
		t.Errorf("entry flags missing BOOT_OTHER")
	}
	if res.MenuReason != ReasonNone {
		t.Errorf("menu reason = %v, want none", res.MenuReason)
	}
}

func TestScenario3_MaxTriesTriggersFailsafe(t *testing.T) {
	a := cand("A", 20240101000000, 0, false, false)
	b := cand("B", 20240102000000, MaxBootFailures, false, false)
	res, err := Select(Inputs{Candidates: []discover.Candidate{a, b}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Chosen.Label != "B" {
		t.Errorf("chosen = %q, want B", res.Chosen.Label)
	}
	if res.MenuReason != ReasonFailsafe {
		t.Errorf("menu reason = %v, want FAILSAFE", res.MenuReason)
	}
	if res.TimeoutSecs != TimeoutFailsafeDefault {
		t.Errorf("timeout = %d, want %d", res.TimeoutSecs, TimeoutFailsafeDefault)
	}
}

func TestScenario4_SuperMaxReselectsHealthierSibling(t *testing.T) {
	a := cand("A", 20240102000000, SuperMax, false, false) // newer, failing hard
	b := cand("B", 20240101000000, 0, false, false)        // older, healthy
	res, err := Select(Inputs{Candidates: []discover.Candidate{a, b}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.MenuReason != ReasonFailsafe {
		t.Errorf("menu reason = %v, want FAILSAFE", res.MenuReason)
	}
	if res.TimeoutSecs != TimeoutFailsafeSuperMax {
		t.Errorf("timeout = %d, want %d", res.TimeoutSecs, TimeoutFailsafeSuperMax)
	}
	if res.Resel == nil || res.Resel.Label != "B" {
		t.Fatalf("resel = %v, want B", res.Resel)
	}
}

func TestScenario5_OneShotMatchOverridesSilently(t *testing.T) {
	a := cand("A", 20240102000000, 0, false, false) // newer
	b := cand("B", 20240101000000, 0, false, false)
	fw := simfw.New()
	store := nvram.New(fw)
	if err := store.SetEntrySelected(b.PartitionUUID); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// Write the one-shot variable directly through the simulated firmware.
	writeOneShot(t, fw, b.PartitionUUID)

	res, err := Select(Inputs{Candidates: []discover.Candidate{a, b}, NVRAM: store})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Chosen.Label != "B" {
		t.Errorf("chosen = %q, want B", res.Chosen.Label)
	}
	if res.MenuReason != ReasonNone {
		t.Errorf("menu reason = %v, want none (matched one-shot should not force menu)", res.MenuReason)
	}
	if _, ok, _ := store.ReadOneShot(); ok {
		t.Errorf("one-shot variable should be gone after selection")
	}
}

func TestScenario6_OneShotMismatchForcesFailsafe(t *testing.T) {
	a := cand("A", 20240102000000, 0, false, false)
	b := cand("B", 20240101000000, 0, false, false)
	fw := simfw.New()
	store := nvram.New(fw)
	writeOneShot(t, fw, uuid.New()) // matches neither

	res, err := Select(Inputs{Candidates: []discover.Candidate{a, b}, NVRAM: store})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Chosen.Label != "A" {
		t.Errorf("chosen = %q, want A (primary/newest unchanged)", res.Chosen.Label)
	}
	if res.MenuReason != ReasonFailsafe {
		t.Errorf("menu reason = %v, want FAILSAFE", res.MenuReason)
	}
}

func TestScenario7_DuplicateLabelsDisambiguated(t *testing.T) {
	a := cand("Image A", 20240101000000, 0, false, false)
	b := cand("Image A", 20240102000000, 0, false, false)
	ranked := Rank([]discover.Candidate{a, b})
	opts := BuildMenu(ranked, 0)
	seen := map[string]bool{}
	for _, o := range opts {
		if o.Label == "Image A" {
			t.Errorf("undisambiguated label %q survived", o.Label)
		}
		seen[o.Label] = true
	}
}

func TestRankIsStable(t *testing.T) {
	// spec.md §8 property 5.
	a := cand("A", 20240101000000, 0, false, false)
	b := cand("B", 20240101000000, 0, false, false)
	ranked := Rank([]discover.Candidate{a, b})
	if ranked[0].Label != "A" || ranked[1].Label != "B" {
		t.Errorf("stable sort violated: got order %q, %q", ranked[0].Label, ranked[1].Label)
	}
}

func writeOneShot(t *testing.T, fw *simfw.FW, id uuid.UUID) {
	t.Helper()
	units := utf16.Encode([]rune("auto-bootconf-" + id.String()))
	buf := make([]byte, 2*len(units)+2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2*i:], u)
	}
	if err := fw.SetVariable("LoaderEntryOneShot", nvram.LoaderNamespace, buf, 0); err != nil {
		t.Fatalf("writeOneShot: %v", err)
	}
}
