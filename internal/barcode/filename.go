package barcode

import (
	"fmt"
	"strings"
)

const maxFilenameValue = 50

// Filename builds the archive entry name for an image: a 1-based,
// zero-padded index, the sanitised value and a "_dual" suffix for the
// secondary variant.
func Filename(index int, value string, variant Variant) string {
	suffix := ""
	if variant == Secondary {
		suffix = "_dual"
	}
	return fmt.Sprintf("%03d_%s%s.png", index+1, SanitizeFilename(value), suffix)
}

// SanitizeFilename keeps ASCII letters, digits, dash and underscore and
// replaces every other rune with an underscore.
func SanitizeFilename(value string) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == maxFilenameValue {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		n++
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}
