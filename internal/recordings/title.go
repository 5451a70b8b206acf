package recordings

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const titleEllipsis = "..."

// DeriveTitle extracts a display title from transcript text: the first
// non-empty line, normalized to NFC, truncated to maxLength runes with an
// ellipsis. Markdown heading markers from the transcript artifact are
// stripped. Returns fallback when the transcript has no usable text.
func DeriveTitle(transcript string, maxLength int, fallback string) string {
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line == "" {
			continue
		}
		line = norm.NFC.String(line)
		runes := []rune(line)
		if maxLength > 0 && len(runes) > maxLength {
			return string(runes[:maxLength]) + titleEllipsis
		}
		return line
	}
	return fallback
}
