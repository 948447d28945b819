package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steamos-efi/steamcl/internal/discover"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/platform/dirfs"
	"github.com/steamos-efi/steamcl/internal/selection"
)

type discoverReport struct {
	Candidates []candidateReport `json:"candidates" yaml:"candidates"`
	Chosen     string            `json:"chosen" yaml:"chosen"`
	MenuReason string            `json:"menu_reason" yaml:"menu_reason"`
	Timeout    int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	CmdLine    string            `json:"command_line" yaml:"command_line"`
}

type candidateReport struct {
	Label         string `json:"label" yaml:"label"`
	PartitionUUID string `json:"partition_uuid" yaml:"partition_uuid"`
	Disabled      bool   `json:"disabled" yaml:"disabled"`
	RequestedAt   uint64 `json:"requested_at" yaml:"requested_at"`
	Tries         uint64 `json:"tries" yaml:"tries"`
}

func newDiscoverCmd() *cobra.Command {
	var format string
	var restricted bool

	cmd := &cobra.Command{
		Use:   "discover <esp-root> <image-partition-roots...>",
		Short: "Run discovery and selection against a directory tree",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown --format %q (want text|json|yaml)", format)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			plat := dirfs.New()
			self := plat.AddRoot("esp", uuid.New(), args[0])
			plat.SetSelf("esp")
			for i, root := range args[1:] {
				plat.AddRoot(fmt.Sprintf("img%d", i), uuid.New(), root)
			}

			espDir, err := plat.Mount(self)
			if err != nil {
				return err
			}
			cands, err := discover.Discover(plat, self, espDir, restricted)
			if err != nil {
				return err
			}
			sel, err := selection.Select(selection.Inputs{
				Candidates: cands,
				NVRAM:      nvram.New(plat),
			})
			if err != nil {
				return err
			}
			cmdline := selection.AssembleCommandLine(sel.EntryFlags, false, false)

			report := discoverReport{
				MenuReason: menuReasonString(sel.MenuReason),
				Timeout:    sel.TimeoutSecs,
				CmdLine:    cmdline,
			}
			if len(cands) > 0 {
				report.Chosen = sel.Chosen.Label
			}
			for _, c := range cands {
				report.Candidates = append(report.Candidates, candidateReport{
					Label:         c.Label,
					PartitionUUID: c.PartitionUUID.String(),
					Disabled:      c.Disabled,
					RequestedAt:   c.RequestedAt,
					Tries:         c.Tries,
				})
			}
			return printReport(cmd, format, report)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text|json|yaml")
	cmd.Flags().BoolVar(&restricted, "restricted", false, "require candidates on the same physical device as the ESP")
	return cmd
}

func menuReasonString(r selection.MenuReason) string {
	switch r {
	case selection.ReasonInteractive:
		return "INTERACTIVE"
	case selection.ReasonConfig:
		return "CONFIG"
	case selection.ReasonFailsafe:
		return "FAILSAFE"
	default:
		return "NONE"
	}
}

func printReport(cmd *cobra.Command, format string, report discoverReport) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	default:
		fmt.Fprintf(out, "chosen: %s\nmenu_reason: %s\ntimeout: %ds\ncommand_line: %q\n",
			report.Chosen, report.MenuReason, report.Timeout, report.CmdLine)
		for _, c := range report.Candidates {
			fmt.Fprintf(out, "  - %s (%s) disabled=%v tries=%d\n", c.Label, c.PartitionUUID, c.Disabled, c.Tries)
		}
		return nil
	}
}
