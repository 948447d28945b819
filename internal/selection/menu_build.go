package selection

import (
	"fmt"
	"strings"

	"github.com/steamos-efi/steamcl/internal/discover"
)

// Option is one entry in the constructed menu (spec.md §3 "Menu option").
type Option struct {
	Label          string
	Blurb          string
	CandidateIndex int
	Bits           EntryFlag
}

// BuildMenu constructs the menu option list from ranked candidates
// (spec.md §4.D "Menu construction"): displayed oldest→newest (reverse of
// the rank order), two options per candidate, plus a trailing factory-reset
// option bound to the primary selection. Labels are disambiguated with a
// trailing `-<partition-uuid>` when two candidates share one. Choosing the
// factory-reset option applies it directly; no confirmation prompt is shown.
func BuildMenu(ranked []discover.Candidate, primaryIdx int) []Option {
	labels := disambiguateLabels(ranked)

	var opts []Option
	for i := len(ranked) - 1; i >= 0; i-- {
		opts = append(opts,
			Option{Label: labels[i], Blurb: "Boot", CandidateIndex: i, Bits: FlagNormal | FlagVerbose},
			Option{Label: labels[i] + " (menu)", Blurb: "Boot and show stage-two menu", CandidateIndex: i, Bits: FlagNormal | FlagVerbose | FlagMenu},
		)
	}
	if primaryIdx >= 0 {
		opts = append(opts, Option{
			Label:          "Factory reset",
			Blurb:          "Reset to factory defaults",
			CandidateIndex: primaryIdx,
			Bits:           FlagVerbose | FlagReset,
		})
	}
	return opts
}

func disambiguateLabels(ranked []discover.Candidate) []string {
	counts := map[string]int{}
	for _, c := range ranked {
		counts[c.Label]++
	}
	labels := make([]string, len(ranked))
	for i, c := range ranked {
		if counts[c.Label] > 1 {
			labels[i] = fmt.Sprintf("%s-%s", c.Label, c.PartitionUUID)
		} else {
			labels[i] = c.Label
		}
	}
	return labels
}

// AssembleCommandLine implements spec.md §4.D "Command line assembly".
// BOOT_OTHER is deliberately not reflected here; it only goes into the
// chainloader-entry-flags firmware variable.
func AssembleCommandLine(bits EntryFlag, verboseFlagFile, debugFlagFile bool) string {
	var parts []string
	if bits&FlagVerbose != 0 || verboseFlagFile {
		parts = append(parts, "steamos-verbose")
	}
	if bits&FlagReset != 0 {
		parts = append(parts, "steamos.factory-reset=1")
	}
	if bits&FlagMenu != 0 {
		parts = append(parts, "steamos-bootmenu")
	}
	if debugFlagFile {
		parts = append(parts, "steamos-dummy", "dummy")
	}
	return strings.Join(parts, " ")
}
