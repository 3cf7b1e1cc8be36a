package chunker

import "github.com/loomwork/transcribe-core/domain/store"

// segmentCharRange is a Segment's position within the concatenated
// transcript, under the assumption that Job.transcript is the segment texts
// joined by a single space in order. The Transcriber does not build the
// transcript that way itself: it stores the service's full text field,
// trimmed, so these offsets are exact only when that text has this layout.
type segmentCharRange struct {
	start, end int
	segment    store.Segment
}

func segmentCharRanges(segments []store.Segment) []segmentCharRange {
	ranges := make([]segmentCharRange, len(segments))
	offset := 0
	for i, seg := range segments {
		start := offset
		end := start + len(seg.Text)
		ranges[i] = segmentCharRange{start: start, end: end, segment: seg}
		offset = end + 1 // account for the joining space
	}
	return ranges
}

// mapTimeRange computes a chunk's [start_time, end_time) from the segments
// whose text overlaps its character span (spec §4.4 "Time mapping"):
// start_time is the start of the earliest overlapping segment, end_time is
// the end of the latest. When nothing overlaps, the previous chunk's
// end_time is inherited for both bounds.
func mapTimeRange(startCharPos, endCharPos int, segments []store.Segment, prevEndTime float64) (float64, float64) {
	ranges := segmentCharRanges(segments)

	var startTime, endTime float64
	found := false
	for _, r := range ranges {
		if r.end <= startCharPos || r.start >= endCharPos {
			continue
		}
		if !found {
			startTime = r.segment.Start
			found = true
		}
		endTime = r.segment.End
	}

	if !found {
		return prevEndTime, prevEndTime
	}
	return startTime, endTime
}
