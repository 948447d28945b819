package menu

import (
	"io"
	"os"
)

// SelectBackend picks a graphical or textual backend depending on whether a
// usable console is available, the "graphical if a usable glyph set is
// available, textual otherwise" rule from spec.md §4.E/§9, expressed the
// way the teacher's imageconvert.DetectImageFormat probes before falling
// back to a simpler path.
func SelectBackend(hasGlyphSet bool, textOut io.Writer, textIn <-chan string) Backend {
	if hasGlyphSet && os.Getenv("TERM") != "" {
		return NewGraphicalBackend()
	}
	return NewTextBackend(textOut, textIn)
}
