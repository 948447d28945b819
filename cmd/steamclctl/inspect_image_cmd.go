package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steamos-efi/steamcl/internal/discover"
)

type imageReport struct {
	Valid       bool   `json:"valid" yaml:"valid"`
	Machine     uint16 `json:"machine" yaml:"machine"`
	Sections    int    `json:"sections" yaml:"sections"`
	HasSBAT     bool   `json:"has_sbat" yaml:"has_sbat"`
	HasOSRel    bool   `json:"has_osrel" yaml:"has_osrel"`
	SizeOfImage uint32 `json:"size_of_image" yaml:"size_of_image"`
}

func newInspectImageCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect-image <efi-binary>",
		Short: "Run the valid-image predicate and dump PE evidence",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown --format %q (want text|json|yaml)", format)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			valid := discover.ValidImage(data)
			ev := discover.Evidence(data)
			report := imageReport{
				Valid:       valid,
				Machine:     ev.Machine,
				Sections:    ev.Sections,
				HasSBAT:     ev.HasSBAT,
				HasOSRel:    ev.HasOSRel,
				SizeOfImage: ev.SizeOfImage,
			}

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
				fmt.Fprintf(out, "valid: %v\nmachine: 0x%x\nsections: %d\nhas_sbat: %v\nhas_osrel: %v\n",
					report.Valid, report.Machine, report.Sections, report.HasSBAT, report.HasOSRel)
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text|json|yaml")
	return cmd
}
