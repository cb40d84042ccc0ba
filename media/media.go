// Package media defines the contract between the editing core and whatever
// actually touches media files: probing, preview frame decoding and export
// muxing. The core only ever sees these types.
package media

import (
	"context"

	"github.com/klippmedia/klipp-engine/timebase"
	"github.com/orsinium-labs/enum"
)

type PixelFormat enum.Member[string]

var (
	PixelFormatRGBA8 = PixelFormat{"rgba8"}
	PixelFormatNV12  = PixelFormat{"nv12"}
	PixelFormats     = enum.New(PixelFormatRGBA8, PixelFormatNV12)
)

// ProbedVideoStream describes the first video stream of a probed file. Source
// in/out are in the stream's own time base, out exclusive. FrameRate is nil
// when the container does not declare one.
type ProbedVideoStream struct {
	StreamIndex uint32
	TimeBase    timebase.Rational
	FrameRate   *timebase.Rational
	SrcIn       int64
	SrcOut      int64
	Width       uint32
	Height      uint32
}

// ProbedAudioStream describes the first audio stream of a probed file.
type ProbedAudioStream struct {
	StreamIndex uint32
	TimeBase    timebase.Rational
	SrcIn       int64
	SrcOut      int64
	SampleRate  uint32
	Channels    uint16
}

// ProbedMedia is the result of probing one file. DurationTL is in timeline
// ticks and always at least one tick. Either stream may be absent.
type ProbedMedia struct {
	Path       string
	DurationTL int64
	Video      *ProbedVideoStream
	Audio      *ProbedAudioStream
}

// PreviewFrame is one decoded frame. Bytes is tightly packed, no row padding.
type PreviewFrame struct {
	Width  uint32
	Height uint32
	Format PixelFormat
	Bytes  []byte
}

// ExportVideoSegment is one timeline segment resolved down to concrete input
// ranges. InputIndex points into ExportVideoPlan.Inputs. The audio fields are
// nil when the plan has no audio.
type ExportVideoSegment struct {
	InputIndex       int
	SrcInVideo       int64
	SrcOutVideo      int64
	SrcVideoTimeBase timebase.Rational
	SrcInAudio       *int64
	SrcOutAudio      *int64
	SrcAudioTimeBase *timebase.Rational
}

// ExportAudioSettings carries the output audio format, taken from the first
// exported asset that has an audio stream.
type ExportAudioSettings struct {
	SampleRate uint32
	Channels   uint16
}

// ExportVideoPlan is a renderer-agnostic description of a full export: unique
// input files plus ordered segments to concatenate.
type ExportVideoPlan struct {
	Inputs     []string
	Segments   []ExportVideoSegment
	Audio      *ExportAudioSettings
	OutputPath string
}

// Backend abstracts the media layer. Implementations must be safe to call
// from a single goroutine; they are never called concurrently by the engine.
type Backend interface {
	// Probe inspects a file and reports its streams and timeline duration.
	Probe(ctx context.Context, path string) (*ProbedMedia, error)

	// DecodePreviewFrame decodes one frame at the given source position in
	// seconds of the file's video stream.
	DecodePreviewFrame(ctx context.Context, path string, sourceSeconds float64) (*PreviewFrame, error)

	// ExportVideo renders the plan to plan.OutputPath. progress is called
	// with (done, total) segment counts and may be nil.
	ExportVideo(ctx context.Context, plan *ExportVideoPlan, progress func(done, total int)) error
}
