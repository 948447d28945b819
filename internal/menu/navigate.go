package menu

// advance applies Up/Down navigation to idx over n options, wrapping to
// the top on Down past the last entry (spec.md §4.E). Up does not wrap
// past the top, mirroring the original's "move to previous, clamp at 0"
// behaviour for Up and the explicit wrap spec.md calls out only for Down.
func advance(idx, n int, action keyAction) int {
	if n == 0 {
		return idx
	}
	switch action {
	case actionUp:
		if idx == 0 {
			return 0
		}
		return idx - 1
	case actionDown:
		if idx+1 >= n {
			return 0
		}
		return idx + 1
	default:
		return idx
	}
}
