package timeline

import (
	"math"
	"slices"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/timebase"
)

var (
	ErrSegmentNotFound      = merry.Sentinel("no segment at timeline position")
	ErrSegmentIDNotFound    = merry.Sentinel("segment id not found")
	ErrSplitPointAtBoundary = merry.Sentinel("cannot split at segment boundary")
)

// Segment is one contiguous timeline interval referencing a sub-range of a
// single source asset. Source ranges are [in, out) in the referenced stream's
// own time base; a nil pair means the asset has no such stream.
type Segment struct {
	ID               uint64 `json:"id"`
	AssetID          uint64 `json:"asset_id"`
	SrcInVideo       *int64 `json:"src_in_video"`
	SrcOutVideo      *int64 `json:"src_out_video"`
	SrcInAudio       *int64 `json:"src_in_audio"`
	SrcOutAudio      *int64 `json:"src_out_audio"`
	TimelineStart    int64  `json:"timeline_start"`
	TimelineDuration int64  `json:"timeline_duration"`
}

// End returns the exclusive timeline end of the segment.
func (s Segment) End() int64 {
	return s.TimelineStart + s.TimelineDuration
}

// Timeline is the single-track ordered segment list.
type Timeline struct {
	Segments []Segment `json:"segments"`
}

// Duration returns total timeline duration in timeline ticks.
func (t *Timeline) Duration() int64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End()
}

// FindSegmentIndex locates the segment containing tTL, half-open on the end.
func (t *Timeline) FindSegmentIndex(tTL int64) (int, bool) {
	for index, segment := range t.Segments {
		if segment.TimelineStart <= tTL && tTL < segment.End() {
			return index, true
		}
	}
	return 0, false
}

func (t *Timeline) findSegmentIndexByID(id uint64) (int, bool) {
	for index, segment := range t.Segments {
		if segment.ID == id {
			return index, true
		}
	}
	return 0, false
}

func (t *Timeline) isBoundarySplitPoint(tTL int64) bool {
	for _, segment := range t.Segments {
		if tTL == segment.TimelineStart || tTL == segment.End() {
			return true
		}
	}
	return false
}

// Split divides the segment containing atTL into two adjacent segments. The
// left piece keeps the original id, the right piece takes newID and starts at
// atTL. Both pieces share the exact rescaled source boundary so no rounding
// mismatch can open between them.
func (t *Timeline) Split(atTL int64, newID uint64, videoTB, audioTB *timebase.Rational) error {
	index, found := t.FindSegmentIndex(atTL)
	if !found {
		if t.isBoundarySplitPoint(atTL) {
			return merry.Wrap(ErrSplitPointAtBoundary, merry.AppendMessagef("at %d", atTL))
		}
		return merry.Wrap(ErrSegmentNotFound, merry.AppendMessagef("at %d", atTL))
	}

	current := t.Segments[index]
	if atTL == current.TimelineStart || atTL == current.End() {
		return merry.Wrap(ErrSplitPointAtBoundary, merry.AppendMessagef("at %d", atTL))
	}

	localTL := atTL - current.TimelineStart
	leftDuration := localTL
	rightDuration := current.TimelineDuration - localTL

	leftVideoOut, rightVideoIn := splitStreamRange(current.SrcInVideo, current.SrcOutVideo, leftDuration, videoTB)
	leftAudioOut, rightAudioIn := splitStreamRange(current.SrcInAudio, current.SrcOutAudio, leftDuration, audioTB)

	left := current
	left.TimelineDuration = leftDuration
	left.SrcOutVideo = leftVideoOut
	left.SrcOutAudio = leftAudioOut

	right := current
	right.ID = newID
	right.SrcInVideo = rightVideoIn
	right.SrcInAudio = rightAudioIn
	right.TimelineStart = atTL
	right.TimelineDuration = rightDuration

	t.Segments[index] = left
	t.Segments = slices.Insert(t.Segments, index+1, right)
	return nil
}

// splitStreamRange maps the left piece's timeline duration into the stream
// time base and clamps the split point into [srcIn, srcOut] so a sub-frame
// split cannot escape the original source range. Streams absent on the asset
// pass through unchanged.
func splitStreamRange(srcIn, srcOut *int64, leftDurationTL int64, tb *timebase.Rational) (*int64, *int64) {
	if srcIn == nil || srcOut == nil || tb == nil {
		return srcOut, srcIn
	}

	delta := timebase.Rescale(leftDurationTL, timebase.TimelineTimeBase, *tb)
	split := min(max(*srcIn+delta, *srcIn), *srcOut)
	leftOut := split
	rightIn := split
	return &leftOut, &rightIn
}

// Cut removes the segment at atTL and shifts every later segment left by the
// removed duration, closing the gap the removal would have opened. Gaps that
// already existed elsewhere keep their width. A segment starting exactly at
// atTL takes priority over one merely containing it.
func (t *Timeline) Cut(atTL int64) (Segment, error) {
	index, found := t.findCutIndex(atTL)
	if !found {
		return Segment{}, merry.Wrap(ErrSegmentNotFound, merry.AppendMessagef("at %d", atTL))
	}

	removed := t.Segments[index]
	t.Segments = slices.Delete(t.Segments, index, index+1)
	for i := index; i < len(t.Segments); i++ {
		t.Segments[i].TimelineStart -= removed.TimelineDuration
	}
	return removed, nil
}

func (t *Timeline) findCutIndex(atTL int64) (int, bool) {
	for index, segment := range t.Segments {
		if segment.TimelineStart == atTL {
			return index, true
		}
	}
	return t.FindSegmentIndex(atTL)
}

// Move repositions one segment without touching its source ranges. The new
// start is clamped into [end of previous, start of next - duration] so order
// is stable and no overlap is introduced.
func (t *Timeline) Move(id uint64, newStartTL int64) error {
	index, found := t.findSegmentIndexByID(id)
	if !found {
		return merry.Wrap(ErrSegmentIDNotFound, merry.AppendMessagef("id %d", id))
	}

	prevEnd := int64(0)
	if index > 0 {
		prevEnd = saturatingAdd(t.Segments[index-1].TimelineStart, t.Segments[index-1].TimelineDuration)
	}
	duration := t.Segments[index].TimelineDuration
	maxStart := int64(math.MaxInt64) - max(duration, 0)
	if index+1 < len(t.Segments) {
		maxStart = t.Segments[index+1].TimelineStart - duration
	}

	clamped := min(max(max(newStartTL, 0), prevEnd), max(maxStart, prevEnd))
	t.Segments[index].TimelineStart = clamped
	return nil
}

// TrimStart moves the start edge of one segment, shifting its source in
// points by the rescaled delta. At least one tick of duration remains and the
// edge cannot cross the previous segment.
func (t *Timeline) TrimStart(id uint64, newStartTL int64, videoTB, audioTB *timebase.Rational) error {
	index, found := t.findSegmentIndexByID(id)
	if !found {
		return merry.Wrap(ErrSegmentIDNotFound, merry.AppendMessagef("id %d", id))
	}

	prevEnd := int64(0)
	if index > 0 {
		prevEnd = t.Segments[index-1].End()
	}
	segment := &t.Segments[index]
	oldStart := segment.TimelineStart
	oldEnd := segment.End()
	clampedStart := min(max(newStartTL, prevEnd), oldEnd-1)
	deltaTL := clampedStart - oldStart

	segment.TimelineStart = clampedStart
	segment.TimelineDuration = oldEnd - clampedStart
	segment.SrcInVideo = shiftStreamPoint(segment.SrcInVideo, deltaTL, videoTB)
	segment.SrcInAudio = shiftStreamPoint(segment.SrcInAudio, deltaTL, audioTB)
	return nil
}

// TrimEnd moves the exclusive end edge of one segment, shifting its source
// out points by the rescaled delta. At least one tick of duration remains and
// the edge cannot cross the next segment.
func (t *Timeline) TrimEnd(id uint64, newEndTL int64, videoTB, audioTB *timebase.Rational) error {
	index, found := t.findSegmentIndexByID(id)
	if !found {
		return merry.Wrap(ErrSegmentIDNotFound, merry.AppendMessagef("id %d", id))
	}

	segment := &t.Segments[index]
	oldStart := segment.TimelineStart
	oldEnd := segment.End()
	nextStart := int64(math.MaxInt64)
	if index+1 < len(t.Segments) {
		nextStart = t.Segments[index+1].TimelineStart
	}
	clampedEnd := min(max(newEndTL, oldStart+1), nextStart)
	deltaTL := clampedEnd - oldEnd

	segment.TimelineDuration = clampedEnd - oldStart
	segment.SrcOutVideo = shiftStreamPoint(segment.SrcOutVideo, deltaTL, videoTB)
	segment.SrcOutAudio = shiftStreamPoint(segment.SrcOutAudio, deltaTL, audioTB)
	return nil
}

// shiftStreamPoint shifts a source point by a timeline delta rescaled into the
// stream time base. A shift below zero is pinned to zero, not rejected.
func shiftStreamPoint(point *int64, deltaTL int64, tb *timebase.Rational) *int64 {
	if point == nil || tb == nil {
		return point
	}
	delta := timebase.Rescale(deltaTL, timebase.TimelineTimeBase, *tb)
	shifted := max(saturatingAdd(*point, delta), 0)
	return &shifted
}

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	if a > 0 && b > 0 && sum < 0 {
		return math.MaxInt64
	}
	if a < 0 && b < 0 && sum >= 0 {
		return math.MinInt64
	}
	return sum
}
