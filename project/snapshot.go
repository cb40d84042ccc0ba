package project

import (
	"math"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/timebase"
	"github.com/klippmedia/klipp-engine/timeline"
	"github.com/samber/lo"
)

// MediaAssetSummary is the UI-facing projection of one asset.
type MediaAssetSummary struct {
	ID         uint64 `json:"id"`
	Path       string `json:"path"`
	DurationTL int64  `json:"duration_tl"`
	HasVideo   bool   `json:"has_video"`
	HasAudio   bool   `json:"has_audio"`
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
}

// SegmentSummary is the UI-facing projection of one timeline segment.
type SegmentSummary struct {
	ID               uint64 `json:"id"`
	AssetID          uint64 `json:"asset_id"`
	TimelineStart    int64  `json:"timeline_start"`
	TimelineDuration int64  `json:"timeline_duration"`
	SrcInVideo       *int64 `json:"src_in_video"`
	SrcOutVideo      *int64 `json:"src_out_video"`
	SrcInAudio       *int64 `json:"src_in_audio"`
	SrcOutAudio      *int64 `json:"src_out_audio"`
}

// ProjectSnapshot is an immutable, order-preserving view of the project.
type ProjectSnapshot struct {
	Assets     []MediaAssetSummary `json:"assets"`
	Segments   []SegmentSummary    `json:"segments"`
	DurationTL int64               `json:"duration_tl"`
}

// Snapshot projects the current project state. The result shares no memory
// with the project, so callers may hold it across later edits.
func (p *Project) Snapshot() ProjectSnapshot {
	assets := lo.Map(p.Assets, func(asset MediaAsset, _ int) MediaAssetSummary {
		summary := MediaAssetSummary{
			ID:         asset.ID,
			Path:       asset.Path,
			DurationTL: asset.DurationTL,
			HasVideo:   asset.Video != nil,
			HasAudio:   asset.Audio != nil,
		}
		if asset.Video != nil {
			summary.Width = asset.Video.Width
			summary.Height = asset.Video.Height
		}
		return summary
	})
	segments := lo.Map(p.Timeline.Segments, func(segment timeline.Segment, _ int) SegmentSummary {
		return SegmentSummary{
			ID:               segment.ID,
			AssetID:          segment.AssetID,
			TimelineStart:    segment.TimelineStart,
			TimelineDuration: segment.TimelineDuration,
			SrcInVideo:       copyPoint(segment.SrcInVideo),
			SrcOutVideo:      copyPoint(segment.SrcOutVideo),
			SrcInAudio:       copyPoint(segment.SrcInAudio),
			SrcOutAudio:      copyPoint(segment.SrcOutAudio),
		}
	})
	return ProjectSnapshot{
		Assets:     assets,
		Segments:   segments,
		DurationTL: p.Timeline.Duration(),
	}
}

func copyPoint(point *int64) *int64 {
	if point == nil {
		return nil
	}
	value := *point
	return &value
}

// PreviewRequest tells the decoder which file to read and where. SourceTL is
// the source position in timeline ticks, snapped onto the asset's frame grid;
// SourceSeconds is the same position as ffmpeg-style seconds.
type PreviewRequest struct {
	AssetID       uint64
	Path          string
	SourceTL      int64
	SourceSeconds float64
}

// PreviewRequestAt maps a timeline position onto a source position in the
// asset under it. The position is rescaled into the video time base and back
// so it lands on a renderable frame boundary, then clamped at zero.
func (p *Project) PreviewRequestAt(tTL int64) (PreviewRequest, error) {
	index, found := p.Timeline.FindSegmentIndex(tTL)
	if !found {
		return PreviewRequest{}, merry.Wrap(timeline.ErrSegmentNotFound, merry.AppendMessagef("at %d", tTL))
	}
	segment := p.Timeline.Segments[index]
	asset := p.AssetByID(segment.AssetID)
	if asset == nil {
		return PreviewRequest{}, merry.Wrap(ErrMissingAsset, merry.AppendMessagef("asset %d", segment.AssetID))
	}

	localTL := tTL - segment.TimelineStart
	sourceTL := localTL
	if asset.Video != nil && segment.SrcInVideo != nil {
		videoTB := asset.Video.TimeBase
		sourceTicks := saturatingAdd(*segment.SrcInVideo, timebase.Rescale(localTL, timebase.TimelineTimeBase, videoTB))
		sourceTL = timebase.Rescale(sourceTicks, videoTB, timebase.TimelineTimeBase)
	}
	sourceTL = max(sourceTL, 0)

	return PreviewRequest{
		AssetID:       asset.ID,
		Path:          asset.Path,
		SourceTL:      sourceTL,
		SourceSeconds: float64(sourceTL) / 1_000_000,
	}, nil
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
