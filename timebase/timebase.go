package timebase

import (
	"encoding/json"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/ansel1/merry/v2"
)

var ErrInvalidRational = merry.Sentinel("invalid rational")

// Rational is an FFmpeg-like time base: one integer tick lasts Num/Den seconds.
type Rational struct {
	Num int32 `json:"num"`
	Den int32 `json:"den"`
}

// TimelineTimeBase is the canonical editor clock: microsecond ticks.
var TimelineTimeBase = Rational{Num: 1, Den: 1_000_000}

// New creates a validated rational. Both parts must be positive.
func New(num, den int32) (Rational, error) {
	if num <= 0 || den <= 0 {
		return Rational{}, merry.Wrap(ErrInvalidRational, merry.AppendMessagef("%d/%d", num, den))
	}
	return Rational{Num: num, Den: den}, nil
}

// Parse reads a "num/den" string as produced by ffprobe.
func Parse(input string) (Rational, error) {
	numText, denText, found := strings.Cut(input, "/")
	if !found {
		return Rational{}, merry.Wrap(ErrInvalidRational, merry.AppendMessagef("%q", input))
	}
	num, err := strconv.ParseInt(strings.TrimSpace(numText), 10, 32)
	if err != nil {
		return Rational{}, merry.Wrap(ErrInvalidRational, merry.AppendMessagef("%q", input))
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denText), 10, 32)
	if err != nil {
		return Rational{}, merry.Wrap(ErrInvalidRational, merry.AppendMessagef("%q", input))
	}
	return New(int32(num), int32(den))
}

func (r Rational) String() string {
	return strconv.FormatInt(int64(r.Num), 10) + "/" + strconv.FormatInt(int64(r.Den), 10)
}

// UnmarshalJSON rejects non-positive rationals so invalid time bases cannot
// enter through a persisted project file.
func (r *Rational) UnmarshalJSON(data []byte) error {
	var raw struct {
		Num int32 `json:"num"`
		Den int32 `json:"den"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := New(raw.Num, raw.Den)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Rescale converts an integer timestamp between two time bases with nearest
// rounding, ties away from zero. The intermediate product is computed in 128
// bits and the result saturates into the int64 range instead of wrapping.
func Rescale(ts int64, from, to Rational) int64 {
	negative := ts < 0
	magnitude := uint64(ts)
	if negative {
		magnitude = -magnitude
	}

	// ts * from.Num * to.Den fits 128 bits: the rational parts are < 2^31 each.
	factor := uint64(from.Num) * uint64(to.Den)
	divisor := uint64(from.Den) * uint64(to.Num)

	hi, lo := bits.Mul64(magnitude, factor)
	if hi >= divisor {
		// Quotient does not fit in 64 bits.
		return saturate(negative)
	}
	quotient, remainder := bits.Div64(hi, lo, divisor)
	if remainder*2 >= divisor {
		if quotient == math.MaxUint64 {
			return saturate(negative)
		}
		quotient++
	}

	if negative {
		if quotient >= 1<<63 {
			return math.MinInt64
		}
		return -int64(quotient)
	}
	if quotient > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(quotient)
}

func saturate(negative bool) int64 {
	if negative {
		return math.MinInt64
	}
	return math.MaxInt64
}
