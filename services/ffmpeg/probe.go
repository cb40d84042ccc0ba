package ffmpeg

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/timebase"
)

// FFProbeStream is the subset of ffprobe stream output the backend reads.
// StartPts and DurationTs stay pointers: ffprobe omits them for some
// containers and zero is a legal value.
type FFProbeStream struct {
	Index         uint32 `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	Width         uint32 `json:"width"`
	Height        uint32 `json:"height"`
	RFrameRate    string `json:"r_frame_rate"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	TimeBase      string `json:"time_base"`
	StartPts      *int64 `json:"start_pts"`
	DurationTs    *int64 `json:"duration_ts"`
	Duration      string `json:"duration"`
	SampleRate    string `json:"sample_rate"`
	Channels      uint16 `json:"channels"`
	ChannelLayout string `json:"channel_layout"`
}

type FFProbeResult struct {
	Streams []FFProbeStream `json:"streams"`
	Format  struct {
		Filename   string `json:"filename"`
		NbStreams  int    `json:"nb_streams"`
		FormatName string `json:"format_name"`
		StartTime  string `json:"start_time"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// FirstVideo returns the first video stream, or nil.
func (r *FFProbeResult) FirstVideo() *FFProbeStream {
	return r.firstOfType("video")
}

// FirstAudio returns the first audio stream, or nil.
func (r *FFProbeResult) FirstAudio() *FFProbeStream {
	return r.firstOfType("audio")
}

func (r *FFProbeResult) firstOfType(codecType string) *FFProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == codecType {
			return &r.Streams[i]
		}
	}
	return nil
}

func (b *Backend) doProbe(ctx context.Context, path string) (*FFProbeResult, error) {
	stdout, err := b.run(ctx, b.ffprobePath,
		"-hide_banner",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}

	var result FFProbeResult
	if err := json.Unmarshal(stdout, &result); err != nil {
		return nil, merry.Wrap(err, merry.AppendMessagef("parse ffprobe output for %s", path))
	}
	return &result, nil
}

// mapProbeResult turns raw ffprobe output into the backend contract types.
func mapProbeResult(path string, raw *FFProbeResult) (*media.ProbedMedia, error) {
	durationTL, err := durationTLFromProbe(path, raw)
	if err != nil {
		return nil, err
	}

	probed := &media.ProbedMedia{Path: path, DurationTL: durationTL}

	if stream := raw.FirstVideo(); stream != nil {
		video, err := mapVideoStream(path, stream, durationTL)
		if err != nil {
			return nil, err
		}
		probed.Video = video
	}
	if stream := raw.FirstAudio(); stream != nil {
		audio, err := mapAudioStream(path, stream, durationTL)
		if err != nil {
			return nil, err
		}
		probed.Audio = audio
	}

	return probed, nil
}

func mapVideoStream(path string, stream *FFProbeStream, durationTL int64) (*media.ProbedVideoStream, error) {
	tb, err := timebase.Parse(stream.TimeBase)
	if err != nil {
		return nil, merry.Wrap(err, merry.AppendMessagef("video time base of %s", path))
	}
	if stream.Width == 0 || stream.Height == 0 {
		return nil, merry.Wrap(ErrMissingVideoDimensions, merry.AppendMessagef("%s", path))
	}

	srcIn, srcOut := sourceRange(stream, tb, durationTL)
	return &media.ProbedVideoStream{
		StreamIndex: stream.Index,
		TimeBase:    tb,
		FrameRate:   parseFrameRate(stream),
		SrcIn:       srcIn,
		SrcOut:      srcOut,
		Width:       stream.Width,
		Height:      stream.Height,
	}, nil
}

func mapAudioStream(path string, stream *FFProbeStream, durationTL int64) (*media.ProbedAudioStream, error) {
	tb, err := timebase.Parse(stream.TimeBase)
	if err != nil {
		return nil, merry.Wrap(err, merry.AppendMessagef("audio time base of %s", path))
	}
	sampleRate, err := strconv.ParseUint(stream.SampleRate, 10, 32)
	if err != nil || sampleRate == 0 || stream.Channels == 0 {
		return nil, merry.Wrap(ErrMissingAudioMetadata, merry.AppendMessagef("%s", path))
	}

	srcIn, srcOut := sourceRange(stream, tb, durationTL)
	return &media.ProbedAudioStream{
		StreamIndex: stream.Index,
		TimeBase:    tb,
		SrcIn:       srcIn,
		SrcOut:      srcOut,
		SampleRate:  uint32(sampleRate),
		Channels:    stream.Channels,
	}, nil
}

// sourceRange derives [src_in, src_out) in the stream time base. When the
// container does not report duration_ts the whole-file duration stands in.
func sourceRange(stream *FFProbeStream, tb timebase.Rational, durationTL int64) (int64, int64) {
	srcIn := int64(0)
	if stream.StartPts != nil {
		srcIn = *stream.StartPts
	}
	if stream.DurationTs != nil {
		return srcIn, srcIn + *stream.DurationTs
	}
	return srcIn, srcIn + timebase.Rescale(durationTL, timebase.TimelineTimeBase, tb)
}

// parseFrameRate reads the declared frame rate, preferring the average rate.
// Degenerate declarations like "0/0" yield nil.
func parseFrameRate(stream *FFProbeStream) *timebase.Rational {
	for _, raw := range []string{stream.AvgFrameRate, stream.RFrameRate} {
		if raw == "" {
			continue
		}
		rate, err := timebase.Parse(raw)
		if err != nil {
			continue
		}
		return &rate
	}
	return nil
}

func durationTLFromProbe(path string, raw *FFProbeResult) (int64, error) {
	if seconds, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil && seconds > 0 {
		return int64(math.Round(seconds * 1_000_000)), nil
	}

	best := int64(0)
	for _, stream := range raw.Streams {
		if stream.DurationTs == nil {
			continue
		}
		tb, err := timebase.Parse(stream.TimeBase)
		if err != nil {
			continue
		}
		tl := timebase.Rescale(*stream.DurationTs, tb, timebase.TimelineTimeBase)
		best = max(best, tl)
	}
	if best <= 0 {
		return 0, merry.Wrap(ErrMissingDuration, merry.AppendMessagef("%s", path))
	}
	return best, nil
}
