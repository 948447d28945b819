// Package paths centralises the on-disk layout conventions from spec §6,
// the compiled-in defaults the original loader hard-codes as C string
// literals (STEAMOSLDR, BOOTCONFPATH, ...) in
// original_source/chainloader/bootload.h and util.h.
package paths

const (
	// LoaderBinary is this loader's own conventional install location on
	// the ESP.
	LoaderBinary = `\EFI\Shell\steamcl.efi`

	// DefaultStageTwoLoader is used when a candidate's config does not
	// override the `loader` key.
	DefaultStageTwoLoader = `\EFI\steamos\grubx64.efi`

	// PartsetDir holds one descriptor file per known image slot.
	PartsetDir = `\SteamOS\partsets`

	// ConfDir holds the preferred, ESP-side per-image config files.
	ConfDir = `\SteamOS\conf`

	// LegacyBootConf is the fallback, image-partition-side config path.
	LegacyBootConf = `\SteamOS\bootconf`

	// DefaultFont is the fallback glyph set used by the graphical menu
	// backend, relative to the loader's own directory.
	DefaultFont = `fonts\default.pf2`
)

// Reserved partset slot names that can never be a real image identifier
// (spec §4.C.3).
var ReservedSlotNames = map[string]bool{
	"all":    true,
	"self":   true,
	"other":  true,
	"shared": true,
}

// Flag file names, probed relative to the loader's own directory
// (spec §4.H.2).
const (
	FlagRestricted  = "steamcl-restricted"
	FlagVerbose     = "steamcl-verbose"
	FlagNVRAMDebug  = "steamcl-nvram-debug"
	FlagMenu        = "steamcl-menu"
)
