package chunker

import "sort"

// validateAndRepair orders raw oracle spans, closes small gaps by extending
// the preceding span's end forward to the next span's start (and clamping
// the first/last boundaries to the transcript's edges), and rejects
// anything it cannot repair — chiefly overlaps, which per spec §6.2 must
// fall back rather than be silently resolved.
func validateAndRepair(raw []OracleSpan, textLen int) ([]span, error) {
	if len(raw) == 0 {
		if textLen == 0 {
			return nil, nil
		}
		return nil, ErrOracleMalformed
	}

	sorted := make([]OracleSpan, len(raw))
	copy(sorted, raw)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartCharPos < sorted[j].StartCharPos })

	spans := make([]span, len(sorted))
	for i, s := range sorted {
		if s.StartCharPos < 0 || s.EndCharPos > textLen || s.StartCharPos >= s.EndCharPos {
			return nil, ErrOracleMalformed
		}
		spans[i] = span{
			StartCharPos: s.StartCharPos,
			EndCharPos:   s.EndCharPos,
			TopicSummary: s.TopicSummary,
			Keywords:     s.Keywords,
			Confidence:   s.Confidence,
		}
	}

	// Clamp the leading edge: any gap before the first span belongs to it.
	if spans[0].StartCharPos != 0 {
		spans[0].StartCharPos = 0
	}

	for i := 0; i < len(spans)-1; i++ {
		if spans[i].EndCharPos > spans[i+1].StartCharPos {
			return nil, ErrOracleOverlap
		}
		if spans[i].EndCharPos < spans[i+1].StartCharPos {
			// Gap: extend the earlier span to close it.
			spans[i].EndCharPos = spans[i+1].StartCharPos
		}
	}

	// Clamp the trailing edge: any gap after the last span belongs to it.
	last := len(spans) - 1
	if spans[last].EndCharPos != textLen {
		spans[last].EndCharPos = textLen
	}

	for _, s := range spans {
		if s.StartCharPos >= s.EndCharPos {
			return nil, ErrOracleMalformed
		}
	}

	return spans, nil
}
