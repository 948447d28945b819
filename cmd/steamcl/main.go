// Command steamcl is the first-stage UEFI chainloader entrypoint. It wires
// internal/orchestrator against the real Linux efivarfs/filesystem
// platform implementation; on a real EFI boot-services host the equivalent
// binary would be cross-compiled to the EFI application target the same
// way other Go UEFI loaders (e.g. u-root/u-bmc's payloads) are built.
package main

import (
	"fmt"
	"os"

	"github.com/steamos-efi/steamcl/internal/handoff"
	"github.com/steamos-efi/steamcl/internal/logger"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/orchestrator"
	"github.com/steamos-efi/steamcl/internal/platform/linux"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.Logger()

	plat := linux.New("")
	loader := &handoff.StubLoader{Log: func(format string, args ...interface{}) {
		log.Infof(format, args...)
	}}
	ctx := orchestrator.Context{
		Platform:           plat,
		Loader:             loader,
		NVRAM:              nvram.New(plat),
		LoaderInfo:         "steamcl",
		LoaderFirmwareType: "UEFI",
		LoaderFeatures:     0,
	}

	if err := orchestrator.Run(ctx); err != nil {
		log.Errorw("boot selection failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
