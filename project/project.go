// Package project ties assets and the timeline together and owns everything
// derived from that pair: snapshots for the UI, preview source mapping, edit
// operations resolved against asset time bases, and persistence.
package project

import (
	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/timebase"
	"github.com/klippmedia/klipp-engine/timeline"
	"github.com/samber/lo"
)

var (
	ErrMissingAsset       = merry.Sentinel("segment references unknown asset")
	ErrMissingVideoStream = merry.Sentinel("asset has no video stream")
	ErrMissingAudioStream = merry.Sentinel("asset has no audio stream")
	ErrMissingVideoRange  = merry.Sentinel("segment is missing its video source range")
	ErrMissingAudioRange  = merry.Sentinel("segment is missing its audio source range")
	ErrInvalidVideoRange  = merry.Sentinel("segment video source range is inverted")
	ErrInvalidAudioRange  = merry.Sentinel("segment audio source range is inverted")
)

// VideoStreamInfo is the subset of probe output the editor needs to keep for
// a video stream. FrameRate is nil when the container does not declare one.
type VideoStreamInfo struct {
	TimeBase  timebase.Rational  `json:"time_base"`
	Width     uint32             `json:"width"`
	Height    uint32             `json:"height"`
	FrameRate *timebase.Rational `json:"frame_rate,omitempty"`
}

type AudioStreamInfo struct {
	TimeBase   timebase.Rational `json:"time_base"`
	SampleRate uint32            `json:"sample_rate"`
	Channels   uint16            `json:"channels"`
}

// MediaAsset is one imported file. Stream indexes and infos are paired: both
// set when the stream exists, both nil when it does not.
type MediaAsset struct {
	ID               uint64           `json:"id"`
	Path             string           `json:"path"`
	VideoStreamIndex *uint32          `json:"video_stream_index"`
	AudioStreamIndex *uint32          `json:"audio_stream_index"`
	Video            *VideoStreamInfo `json:"video"`
	Audio            *AudioStreamInfo `json:"audio"`
	DurationTL       int64            `json:"duration_tl"`
}

type ProjectExportSettings struct {
	Container  string `json:"container"`
	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`
}

type ProjectSettings struct {
	ExportSettings *ProjectExportSettings `json:"export_settings,omitempty"`
}

type Project struct {
	Assets   []MediaAsset      `json:"assets"`
	Timeline timeline.Timeline `json:"timeline"`
	Settings ProjectSettings   `json:"settings"`
}

// FromSingleAsset builds the canonical fresh project: one asset, one segment
// covering its whole duration. Streams absent on the asset leave the matching
// segment source fields nil.
func FromSingleAsset(assetID, segmentID uint64, probed *media.ProbedMedia) *Project {
	asset := MediaAsset{
		ID:         assetID,
		Path:       probed.Path,
		DurationTL: probed.DurationTL,
	}
	segment := timeline.Segment{
		ID:               segmentID,
		AssetID:          assetID,
		TimelineStart:    0,
		TimelineDuration: probed.DurationTL,
	}

	if v := probed.Video; v != nil {
		index := v.StreamIndex
		asset.VideoStreamIndex = &index
		asset.Video = &VideoStreamInfo{
			TimeBase:  v.TimeBase,
			Width:     v.Width,
			Height:    v.Height,
			FrameRate: v.FrameRate,
		}
		srcIn, srcOut := v.SrcIn, v.SrcOut
		segment.SrcInVideo = &srcIn
		segment.SrcOutVideo = &srcOut
	}
	if a := probed.Audio; a != nil {
		index := a.StreamIndex
		asset.AudioStreamIndex = &index
		asset.Audio = &AudioStreamInfo{
			TimeBase:   a.TimeBase,
			SampleRate: a.SampleRate,
			Channels:   a.Channels,
		}
		srcIn, srcOut := a.SrcIn, a.SrcOut
		segment.SrcInAudio = &srcIn
		segment.SrcOutAudio = &srcOut
	}

	return &Project{
		Assets:   []MediaAsset{asset},
		Timeline: timeline.Timeline{Segments: []timeline.Segment{segment}},
	}
}

// AssetByID returns the asset with the given id, or nil.
func (p *Project) AssetByID(id uint64) *MediaAsset {
	for i := range p.Assets {
		if p.Assets[i].ID == id {
			return &p.Assets[i]
		}
	}
	return nil
}

// DurationTL returns the total timeline duration in timeline ticks.
func (p *Project) DurationTL() int64 {
	return p.Timeline.Duration()
}

// streamTimeBases resolves the video/audio time bases of the asset behind a
// segment. Absent streams yield nil.
func (p *Project) streamTimeBases(segment timeline.Segment) (*timebase.Rational, *timebase.Rational, error) {
	asset := p.AssetByID(segment.AssetID)
	if asset == nil {
		return nil, nil, merry.Wrap(ErrMissingAsset, merry.AppendMessagef("asset %d", segment.AssetID))
	}
	var videoTB, audioTB *timebase.Rational
	if asset.Video != nil {
		videoTB = &asset.Video.TimeBase
	}
	if asset.Audio != nil {
		audioTB = &asset.Audio.TimeBase
	}
	return videoTB, audioTB, nil
}

// Split divides the segment containing atTL, rescaling source boundaries in
// the owning asset's time bases.
func (p *Project) Split(atTL int64, newSegmentID uint64) error {
	index, found := p.Timeline.FindSegmentIndex(atTL)
	if !found {
		// Delegate so the boundary/gap distinction is made in one place.
		return p.Timeline.Split(atTL, newSegmentID, nil, nil)
	}
	videoTB, audioTB, err := p.streamTimeBases(p.Timeline.Segments[index])
	if err != nil {
		return err
	}
	return p.Timeline.Split(atTL, newSegmentID, videoTB, audioTB)
}

// Cut removes the segment at atTL and closes the gap.
func (p *Project) Cut(atTL int64) (timeline.Segment, error) {
	return p.Timeline.Cut(atTL)
}

// MoveSegment repositions a segment, clamped against its neighbours.
func (p *Project) MoveSegment(segmentID uint64, newStartTL int64) error {
	return p.Timeline.Move(segmentID, newStartTL)
}

// TrimSegmentStart moves a segment's start edge.
func (p *Project) TrimSegmentStart(segmentID uint64, newStartTL int64) error {
	segment, found := p.segmentByID(segmentID)
	if !found {
		return p.Timeline.TrimStart(segmentID, newStartTL, nil, nil)
	}
	videoTB, audioTB, err := p.streamTimeBases(segment)
	if err != nil {
		return err
	}
	return p.Timeline.TrimStart(segmentID, newStartTL, videoTB, audioTB)
}

// TrimSegmentEnd moves a segment's exclusive end edge.
func (p *Project) TrimSegmentEnd(segmentID uint64, newEndTL int64) error {
	segment, found := p.segmentByID(segmentID)
	if !found {
		return p.Timeline.TrimEnd(segmentID, newEndTL, nil, nil)
	}
	videoTB, audioTB, err := p.streamTimeBases(segment)
	if err != nil {
		return err
	}
	return p.Timeline.TrimEnd(segmentID, newEndTL, videoTB, audioTB)
}

func (p *Project) segmentByID(id uint64) (timeline.Segment, bool) {
	return lo.Find(p.Timeline.Segments, func(s timeline.Segment) bool {
		return s.ID == id
	})
}

// NormalizePlayhead clamps a playhead position to the valid range
// [0, duration-1], or 0 for an empty timeline.
func NormalizePlayhead(tTL, durationTL int64) int64 {
	if durationTL <= 0 {
		return 0
	}
	return min(max(tTL, 0), durationTL-1)
}
