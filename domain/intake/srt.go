package intake

import (
	"fmt"
	"strings"

	"github.com/loomwork/transcribe-core/domain/store"
)

// renderSRT walks segments and emits standard SubRip format: sequential
// 1-based index, timecode line, text, blank line, no BOM (spec §6.6).
func renderSRT(segments []store.Segment) []byte {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimecode(seg.Start), formatTimecode(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

// formatTimecode renders seconds as HH:MM:SS,mmm.
func formatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	secs := totalMillis / 1000
	millis := totalMillis - secs*1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
