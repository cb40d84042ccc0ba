package cache

import "github.com/orsinium-labs/enum"

type ScrubDirection enum.Member[string]

var (
	ScrubForward    = ScrubDirection{"forward"}
	ScrubBackward   = ScrubDirection{"backward"}
	ScrubUnknown    = ScrubDirection{"unknown"}
	ScrubDirections = enum.New(ScrubForward, ScrubBackward, ScrubUnknown)
)

// PrefetchPolicy is pure data: bucket offsets to consider warming after a
// cache hit, in probe order. Directional offsets run ahead of the scrub
// direction; idle offsets widen alternately around the playhead when the
// direction is unknown.
type PrefetchPolicy struct {
	DirectionalOffsets []int64
	IdleOffsets        []int64
}

// DefaultPrefetchPolicy looks 18 buckets ahead when scrubbing and widens up
// to 120 buckets either way when parked.
func DefaultPrefetchPolicy() PrefetchPolicy {
	directional := make([]int64, 0, 18)
	for i := int64(1); i <= 18; i++ {
		directional = append(directional, i)
	}
	idle := make([]int64, 0, 240)
	for i := int64(1); i <= 120; i++ {
		idle = append(idle, i, -i)
	}
	return PrefetchPolicy{DirectionalOffsets: directional, IdleOffsets: idle}
}

// Offsets returns the probe sequence for a scrub direction. Backward scrubs
// mirror the directional offsets.
func (p PrefetchPolicy) Offsets(direction ScrubDirection) []int64 {
	switch direction {
	case ScrubForward:
		return p.DirectionalOffsets
	case ScrubBackward:
		mirrored := make([]int64, len(p.DirectionalOffsets))
		for i, offset := range p.DirectionalOffsets {
			mirrored[i] = -offset
		}
		return mirrored
	default:
		return p.IdleOffsets
	}
}
