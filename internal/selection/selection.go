// Package selection implements spec.md §4.D: rank candidates, apply
// one-shot and boot-other overrides, decide whether the menu must run, and
// assemble the final command line and entry flags.
package selection

import (
	"sort"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/discover"
	"github.com/steamos-efi/steamcl/internal/nvram"
)

// EntryFlag bits mirror spec.md §3's menu-option payload bits and §4.D's
// entry-flags firmware variable.
type EntryFlag uint64

const (
	FlagNormal EntryFlag = 1 << iota
	FlagVerbose
	FlagReset
	FlagMenu
	FlagBootOther
)

// MenuReason names why the menu must run (spec.md §4.D).
type MenuReason int

const (
	ReasonNone MenuReason = iota
	ReasonInteractive
	ReasonConfig
	ReasonFailsafe
)

// MaxBootFailures and SuperMax are the boot-attempt thresholds driving
// menu-trigger and timeout policy (spec.md §4.D).
const (
	MaxBootFailures = 3
	SuperMax        = 6
)

// Timeout values in seconds, spec.md §4.D timeout policy table.
const (
	TimeoutFailsafeDefault   = 30
	TimeoutFailsafeSuperMax  = 120
	TimeoutConfigDefault     = 5
)

// Result is the engine's output: a selection result plus the reason/timeout
// if the menu must be shown (spec.md §3 "Selection result").
type Result struct {
	Chosen      discover.Candidate
	EntryFlags  EntryFlag
	MenuReason  MenuReason
	TimeoutSecs int
	// Resel is set when the SUPERMAX timeout policy re-selects a
	// healthier sibling as the menu's default highlight.
	Resel *discover.Candidate
}

// Inputs bundles the state the engine reads beyond the candidate list
// itself (spec.md §4.D/§4.H flow).
type Inputs struct {
	Candidates        []discover.Candidate
	InteractiveKeyHit bool // a key-notify callback fired during init
	MenuFlagPresent   bool // `steamcl-menu` flag file present
	NVRAM             *nvram.Store
}

// Rank orders candidates by spec.md §4.D's compound key: disabled
// ascending, then requested_at descending, ties broken by stable sort
// (spec.md §8 property 5; Design Note (iii) explicitly permits
// sort.SliceStable in place of the original's bounded bubble sort).
func Rank(cands []discover.Candidate) []discover.Candidate {
	out := make([]discover.Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Disabled != out[j].Disabled {
			return !out[i].Disabled // enabled (false) sorts first
		}
		return out[i].RequestedAt > out[j].RequestedAt // newest first
	})
	return out
}

// primarySelection walks ranked (newest to oldest) for the first candidate
// whose boot-other flag is clear (spec.md §4.D "Primary selection").
// BOOT_OTHER is recorded whenever an entry with boot-other set was walked
// past. If every entry has boot-other set, the last one walked (oldest) is
// chosen.
func primarySelection(ranked []discover.Candidate) (idx int, flags EntryFlag) {
	for i, c := range ranked {
		if c.Config.GetUint("boot-other") == 0 {
			return i, flags
		}
		flags = FlagBootOther
	}
	if len(ranked) == 0 {
		return -1, 0
	}
	return len(ranked) - 1, FlagBootOther
}

// Select runs the full engine: rank, one-shot override, boot-other,
// menu-trigger evaluation, and timeout policy (spec.md §4.D, state machine
// in §4.H).
func Select(in Inputs) (Result, error) {
	ranked := Rank(in.Candidates)

	if len(ranked) == 0 {
		return Result{MenuReason: ReasonFailsafe, TimeoutSecs: TimeoutFailsafeDefault}, nil
	}

	idx, flags := primarySelection(ranked)
	reason := ReasonNone

	oneShotUnmatched := false
	if in.NVRAM != nil {
		id, ok, err := in.NVRAM.ReadOneShot()
		if err != nil {
			return Result{}, err
		}
		if ok {
			if match := indexOf(ranked, id); match >= 0 {
				idx = match
				flags &^= FlagBootOther
			} else {
				// Present-but-unmatched: selection unchanged, still FAILSAFE.
				oneShotUnmatched = true
			}
		}
	}

	switch {
	case in.InteractiveKeyHit:
		reason = ReasonInteractive
	case in.MenuFlagPresent:
		reason = ReasonConfig
	case ranked[idx].Tries >= MaxBootFailures:
		reason = ReasonFailsafe
	case oneShotUnmatched:
		reason = ReasonFailsafe
	}

	res := Result{
		Chosen:     ranked[idx],
		EntryFlags: flags,
		MenuReason: reason,
	}

	res.TimeoutSecs, res.Resel = timeoutFor(reason, ranked, idx, in.NVRAM)
	return res, nil
}

func indexOf(ranked []discover.Candidate, id uuid.UUID) int {
	for i, c := range ranked {
		if c.PartitionUUID == id {
			return i
		}
	}
	return -1
}

// timeoutFor implements spec.md §4.D's timeout policy table, including the
// SUPERMAX re-selection rule.
func timeoutFor(reason MenuReason, ranked []discover.Candidate, idx int, nv *nvram.Store) (int, *discover.Candidate) {
	switch reason {
	case ReasonInteractive:
		return 0, nil
	case ReasonFailsafe:
		if ranked[idx].Tries >= SuperMax {
			sib := reselectHealthierSibling(ranked, idx)
			return TimeoutFailsafeSuperMax, sib
		}
		return TimeoutFailsafeDefault, nil
	case ReasonConfig:
		if nv != nil {
			if t, err := nv.ReadConfigTimeout(); err == nil {
				return t, nil
			}
		}
		return TimeoutConfigDefault, nil
	default:
		return 0, nil
	}
}

// reselectHealthierSibling implements spec.md §4.D: "re-select a sibling
// candidate whose tries <= the failing one's tries, preferring the one
// immediately above in sort order then the one immediately below".
func reselectHealthierSibling(ranked []discover.Candidate, idx int) *discover.Candidate {
	failing := ranked[idx]
	if idx > 0 && ranked[idx-1].Tries <= failing.Tries {
		c := ranked[idx-1]
		return &c
	}
	if idx+1 < len(ranked) && ranked[idx+1].Tries <= failing.Tries {
		c := ranked[idx+1]
		return &c
	}
	return nil
}
