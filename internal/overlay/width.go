package overlay

// Display width is computed per code point: most characters occupy one cell,
// emoji and pictographic ranges occupy two, and a variation selector is
// absorbed into the character it modifies.

const variationSelector16 = 0xFE0F

func isWide(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // misc symbols and pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport and map
		return true
	case r >= 0x1F900 && r <= 0x1F9FF: // supplemental symbols
		return true
	case r >= 0x1FA70 && r <= 0x1FAFF: // symbols and pictographs extended-A
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0x2B50 || r == 0x2B55:
		return true
	default:
		return false
	}
}

// DisplayWidth returns the number of terminal cells the string occupies under
// the overlay's width model.
func DisplayWidth(s string) int {
	width := 0
	for _, r := range s {
		if r == variationSelector16 {
			continue
		}
		if isWide(r) {
			width += 2
		} else {
			width++
		}
	}
	return width
}

// truncateToWidth clips s so its display width does not exceed max. A
// trailing variation selector travels with the code point it modifies.
func truncateToWidth(s string, max int) string {
	width := 0
	end := 0
	for i, r := range s {
		if r == variationSelector16 {
			end = i + len(string(r))
			continue
		}
		w := 1
		if isWide(r) {
			w = 2
		}
		if width+w > max {
			return s[:end]
		}
		width += w
		end = i + len(string(r))
	}
	return s
}
