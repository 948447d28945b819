// Package handoff implements spec.md §4.F: build the chosen loader's
// absolute device path, load it as an image, bind its command line, record
// telemetry, and execute it.
package handoff

import (
	"fmt"
	"strings"

	"github.com/steamos-efi/steamcl/internal/bootstatus"
	"github.com/steamos-efi/steamcl/internal/discover"
	"github.com/steamos-efi/steamcl/internal/logger"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/platform"
	"github.com/steamos-efi/steamcl/internal/selection"
)

// Loader loads and executes images; it is the narrow slice of
// platform.Platform handoff needs, kept separate so platform
// implementations can provide a dedicated image-loader collaborator
// (spec.md §1 scopes "the stage-two loader being invoked" out as a
// contract-only collaborator).
type Loader interface {
	// LoadImage loads the binary at devicePath (the candidate's partition
	// device path plus the loader's file-path device-path node, already
	// assembled by buildDevicePath) and returns an opaque image handle.
	LoadImage(devicePath string) (ImageHandle, error)

	// SetCommandLine binds cmdline to the loaded image. The caller must
	// keep cmdline alive (in Go, simply keep the string referenced) until
	// the image starts.
	SetCommandLine(img ImageHandle, cmdline string) error

	// StartImage transfers control; it returns once the stage-two loader
	// itself returns control (normal exit), or immediately with an error
	// if it could not be started at all.
	StartImage(img ImageHandle) error

	// UnloadImage releases resources after StartImage returns.
	UnloadImage(img ImageHandle) error
}

// ImageHandle is an opaque handle to a loaded image.
type ImageHandle struct {
	id string
}

// Result reports what handoff did, for the orchestrator's exit-code and
// logging purposes.
type Result struct {
	DevicePath string
	CmdLine    string
	Attempts   uint64
}

// Run executes spec.md §4.F's six-step sequence for the chosen candidate.
func Run(loader Loader, nv *nvram.Store, chosen discover.Candidate, res selection.Result, cmdline string) (Result, error) {
	devicePath := buildDevicePath(chosen.DevicePath, chosen.Handle.ID, chosen.LoaderPath)

	img, err := loader.LoadImage(devicePath)
	if err != nil {
		return Result{}, wrapFatal(fmt.Errorf("load image %s: %w", devicePath, err))
	}

	if err := loader.SetCommandLine(img, cmdline); err != nil {
		return Result{}, fmt.Errorf("set command line: %w", err)
	}

	if err := nv.SetChainloaderEntry(chosen.PartitionUUID, chosen.ImageIdentifier, uint64(res.EntryFlags)); err != nil {
		logger.Logger().Warnw("failed to record chained loader partition uuid", "err", err)
	}

	// Boot-attempts counter is incremented before transferring control so
	// a crash during stage-two still records the attempt (spec.md §5
	// ordering guarantees).
	attempts, err := nv.IncrementBootAttempts()
	if err != nil {
		logger.Logger().Warnw("failed to increment boot-attempts counter", "err", err)
	}

	if err := nv.SetEntrySelected(chosen.PartitionUUID); err != nil {
		logger.Logger().Warnw("failed to record selected entry", "err", err)
	}

	if err := loader.StartImage(img); err != nil {
		return Result{DevicePath: devicePath, CmdLine: cmdline, Attempts: attempts}, fmt.Errorf("start image: %w", err)
	}

	if err := loader.UnloadImage(img); err != nil {
		logger.Logger().Warnw("failed to unload image after normal return", "err", err)
	}

	return Result{DevicePath: devicePath, CmdLine: cmdline, Attempts: attempts}, nil
}

// wrapFatal marks an error as fatal-to-this-boot per spec.md §7: handoff
// errors mean the loader image itself cannot be found or executed.
func wrapFatal(err error) error {
	return fmt.Errorf("handoff: %w: %w", bootstatus.ErrIO, err)
}

// buildDevicePath implements spec.md §4.F step 1: concatenate the chosen
// candidate's partition device path with the file-path device-path form of
// its loader path, rather than naively gluing the platform's opaque handle
// ID to a raw filesystem path. Each node of dp is rendered type/subtype/bytes
// (mirroring how platform.SameDevice walks the same structure), and
// loaderPath is normalised into the backslash-separated, rooted form UEFI's
// MEDIA_FILEPATH_DP node carries.
func buildDevicePath(dp platform.DevicePath, handleID, loaderPath string) string {
	var b strings.Builder
	if len(dp) == 0 {
		// No structured device path available (e.g. a test double); fall
		// back to the handle's opaque identifier as the partition segment.
		b.WriteString(handleID)
	}
	for _, n := range dp {
		fmt.Fprintf(&b, "/%d,%d:%s", n.Type, n.SubType, n.Bytes)
	}
	b.WriteString(filePathNode(loaderPath))
	return b.String()
}

// filePathNode renders p in UEFI's MEDIA_FILEPATH_DP textual form: backslash
// separators, rooted at the partition.
func filePathNode(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	if !strings.HasPrefix(p, `\`) {
		p = `\` + p
	}
	return p
}
