// Package orchestrator implements spec.md §4.H: the top-level sequence
// that ties components A-G together once per boot.
package orchestrator

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/discover"
	"github.com/steamos-efi/steamcl/internal/handoff"
	"github.com/steamos-efi/steamcl/internal/logger"
	"github.com/steamos-efi/steamcl/internal/menu"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/paths"
	"github.com/steamos-efi/steamcl/internal/platform"
	"github.com/steamos-efi/steamcl/internal/selection"
)

// FirmwareStallOnFailure is spec.md §4.H step 8's fallback wait when
// firmware-UI reset is not supported: "stall 5 seconds and return".
const FirmwareStallOnFailure = 5 * time.Second

// Flags records which of the presence-only flag files were found beside
// the loader binary (spec.md §4.H step 2).
type Flags struct {
	Restricted bool
	Verbose    bool
	NVRAMDebug bool
	Menu       bool
}

// Context bundles the orchestrator's dependencies (spec.md §9: "The design
// concentrates [global mutable state] into a single orchestrator-owned
// context value threaded to every component").
type Context struct {
	Platform platform.Platform
	Loader   handoff.Loader
	NVRAM    *nvram.Store

	// InteractiveKeyHit is the single shared cell the key-notify hook
	// writes to (spec.md §4.H step 3, §9 "Callbacks with
	// firmware-controlled invocation"); the orchestrator only reads it
	// once, after initialisation, before menu-trigger evaluation.
	InteractiveKeyHit bool

	// LoaderIdentity strings published via §4.G at step 4.
	LoaderInfo, LoaderFirmwareInfo, LoaderFirmwareType string
	LoaderFeatures                                     uint64

	// MenuBackend chooses the rendering backend; if nil, SelectBackend's
	// graphical-or-text rule is used with no glyph set assumed available.
	MenuBackend menu.Backend
}

// Run executes spec.md §4.H's full sequence and returns the last observed
// status (success => nil), matching §6's "exit code" contract.
func Run(ctx Context) error {
	self, err := ctx.Platform.SelfHandle()
	if err != nil {
		return err
	}

	flags, err := probeFlags(ctx.Platform, self)
	if err != nil {
		logger.Logger().Warnw("flag probe failed, continuing with defaults", "err", err)
	}
	logger.SetVerbose(flags.Verbose)

	if err := ctx.NVRAM.PublishIdentity(ctx.LoaderInfo, ctx.LoaderFirmwareInfo, ctx.LoaderFirmwareType, ctx.LoaderFeatures); err != nil {
		logger.Logger().Warnw("failed to publish loader identity", "err", err)
	}
	if err := ctx.NVRAM.SetDevicePartUUID(self.PartitionUUID); err != nil {
		logger.Logger().Warnw("failed to publish loader device part uuid", "err", err)
	}

	espDir, err := ctx.Platform.Mount(self)
	if err != nil {
		return err
	}
	if err := discover.Migrate(ctx.Platform, espDir, self); err != nil {
		logger.Logger().Warnw("migration task failed", "err", err)
	}

	cands, err := discover.Discover(ctx.Platform, self, espDir, flags.Restricted)
	if err != nil {
		return err
	}

	if err := publishEntries(ctx.NVRAM, cands); err != nil {
		logger.Logger().Warnw("failed to publish loader entries", "err", err)
	}

	sel, err := selection.Select(selection.Inputs{
		Candidates:        cands,
		InteractiveKeyHit: ctx.InteractiveKeyHit,
		MenuFlagPresent:   flags.Menu,
		NVRAM:             ctx.NVRAM,
	})
	if err != nil {
		return err
	}

	if sel.MenuReason != selection.ReasonNone {
		sel, err = runMenu(ctx, cands, sel, flags)
		if err != nil {
			return err
		}
	}

	if err := ctx.NVRAM.SetEntryDefault(sel.Chosen.PartitionUUID); err != nil {
		logger.Logger().Warnw("failed to record default entry", "err", err)
	}

	cmdline := selection.AssembleCommandLine(sel.EntryFlags, flags.Verbose, flags.NVRAMDebug)

	_, err = handoff.Run(ctx.Loader, ctx.NVRAM, sel.Chosen, sel, cmdline)
	if err != nil {
		logger.Logger().Errorw("handoff failed", "err", err)
		fallbackAfterHandoffFailure(ctx.Platform)
		return err
	}
	return nil
}

func publishEntries(nv *nvram.Store, cands []discover.Candidate) error {
	ids := make([]uuid.UUID, len(cands))
	for i, c := range cands {
		ids[i] = c.PartitionUUID
	}
	return nv.SetEntries(ids)
}

func probeFlags(p platform.Platform, self platform.Handle) (Flags, error) {
	dir, err := p.Mount(self)
	if err != nil {
		return Flags{}, err
	}
	dirName := path.Dir(strings.ReplaceAll(paths.LoaderBinary, `\`, "/"))
	has := func(name string) bool {
		_, err := dir.Stat(path.Join(dirName, name))
		return err == nil
	}
	return Flags{
		Restricted: has(paths.FlagRestricted),
		Verbose:    has(paths.FlagVerbose),
		NVRAMDebug: has(paths.FlagNVRAMDebug),
		Menu:       has(paths.FlagMenu),
	}, nil
}

func runMenu(ctx Context, cands []discover.Candidate, sel selection.Result, flags Flags) (selection.Result, error) {
	ranked := selection.Rank(cands)
	primaryIdx := indexOfCandidate(ranked, sel.Chosen)
	startIdx := primaryIdx
	if sel.Resel != nil {
		startIdx = indexOfCandidate(ranked, *sel.Resel)
	}
	opts := selection.BuildMenu(ranked, primaryIdx)

	backend := ctx.MenuBackend
	if backend == nil {
		backend = menu.SelectBackend(false, nil, nil)
	}
	defer backend.Close()

	// BuildMenu lays candidates out oldest->newest (the reverse of rank
	// order), so rank index startIdx sits at display position
	// len(ranked)-1-startIdx, not startIdx itself.
	displayIdx := len(ranked) - 1 - startIdx
	outcome, err := backend.RunLoop(opts, displayIdx*2, time.Duration(sel.TimeoutSecs)*time.Second)
	if err != nil {
		return sel, err
	}
	if outcome.SelectedIndex < 0 || outcome.SelectedIndex >= len(opts) {
		return sel, nil // Esc: keep the existing selection result; a timeout returns the highlighted option and is handled below
	}
	chosenOpt := opts[outcome.SelectedIndex]
	return selection.Result{
		Chosen:      ranked[chosenOpt.CandidateIndex],
		EntryFlags:  chosenOpt.Bits,
		MenuReason:  sel.MenuReason,
		TimeoutSecs: sel.TimeoutSecs,
	}, nil
}

func indexOfCandidate(ranked []discover.Candidate, c discover.Candidate) int {
	for i, r := range ranked {
		if r.PartitionUUID == c.PartitionUUID {
			return i
		}
	}
	return 0
}

func fallbackAfterHandoffFailure(p platform.Platform) error {
	if err := p.Reset(platform.ResetCold, true); err == nil {
		return nil
	}
	p.Stall(FirmwareStallOnFailure)
	return nil
}
