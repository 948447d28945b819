// Command steamclctl is an operator/test CLI for steamcl, supplementing
// spec.md (not part of the firmware boot path): it runs discovery and
// config validation against ordinary directory trees, outside of boot
// services; it does not read raw disk images. Grounded on the teacher's cmd/os-image-composer
// (inspect_cmd.go, compare_cmd.go): cobra command wiring and the
// --format text|json|yaml convention.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "steamclctl",
		Short: "Inspect and validate steamcl boot-selection state offline",
	}
	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newInspectImageCmd())
	return root
}
