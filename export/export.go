// Package export flattens a project timeline into a renderer-agnostic plan:
// deduplicated input files plus ordered source ranges to concatenate.
package export

import (
	"math"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/project"
	"github.com/klippmedia/klipp-engine/timeline"
)

type includedSegment struct {
	segment timeline.Segment
	asset   *project.MediaAsset
}

// BuildVideoPlan resolves every timeline segment against its asset and
// produces the export plan. Zero-length video ranges are dropped silently;
// zero-length audio ranges are instead widened by one audio tick, because a
// concat graph cannot express an empty audio trim. Audio is enabled when any
// included segment's asset carries audio, with output settings taken from the
// first such asset.
func BuildVideoPlan(p *project.Project, outputPath string) (*media.ExportVideoPlan, error) {
	included := make([]includedSegment, 0, len(p.Timeline.Segments))
	var audio *media.ExportAudioSettings

	for _, segment := range p.Timeline.Segments {
		asset := p.AssetByID(segment.AssetID)
		if asset == nil {
			return nil, merry.Wrap(project.ErrMissingAsset,
				merry.AppendMessagef("segment %d: asset %d", segment.ID, segment.AssetID))
		}
		if asset.Video == nil {
			return nil, merry.Wrap(project.ErrMissingVideoStream,
				merry.AppendMessagef("segment %d: asset %d", segment.ID, asset.ID))
		}
		if segment.SrcInVideo == nil || segment.SrcOutVideo == nil {
			return nil, merry.Wrap(project.ErrMissingVideoRange, merry.AppendMessagef("segment %d", segment.ID))
		}
		if *segment.SrcOutVideo < *segment.SrcInVideo {
			return nil, merry.Wrap(project.ErrInvalidVideoRange,
				merry.AppendMessagef("segment %d: [%d, %d)", segment.ID, *segment.SrcInVideo, *segment.SrcOutVideo))
		}
		if *segment.SrcOutVideo == *segment.SrcInVideo {
			// A sub-frame sliver rounds to nothing renderable.
			continue
		}

		included = append(included, includedSegment{segment: segment, asset: asset})
		if audio == nil && asset.Audio != nil {
			audio = &media.ExportAudioSettings{
				SampleRate: asset.Audio.SampleRate,
				Channels:   asset.Audio.Channels,
			}
		}
	}

	plan := &media.ExportVideoPlan{
		Inputs:     []string{},
		Segments:   make([]media.ExportVideoSegment, 0, len(included)),
		Audio:      audio,
		OutputPath: outputPath,
	}
	inputIndexes := make(map[string]int)

	for _, item := range included {
		index, seen := inputIndexes[item.asset.Path]
		if !seen {
			index = len(plan.Inputs)
			inputIndexes[item.asset.Path] = index
			plan.Inputs = append(plan.Inputs, item.asset.Path)
		}

		planSegment := media.ExportVideoSegment{
			InputIndex:       index,
			SrcInVideo:       *item.segment.SrcInVideo,
			SrcOutVideo:      *item.segment.SrcOutVideo,
			SrcVideoTimeBase: item.asset.Video.TimeBase,
		}

		if audio != nil {
			if item.asset.Audio == nil {
				return nil, merry.Wrap(project.ErrMissingAudioStream,
					merry.AppendMessagef("segment %d: asset %d", item.segment.ID, item.asset.ID))
			}
			if item.segment.SrcInAudio == nil || item.segment.SrcOutAudio == nil {
				return nil, merry.Wrap(project.ErrMissingAudioRange,
					merry.AppendMessagef("segment %d", item.segment.ID))
			}
			srcIn, srcOut := *item.segment.SrcInAudio, *item.segment.SrcOutAudio
			if srcOut < srcIn {
				return nil, merry.Wrap(project.ErrInvalidAudioRange,
					merry.AppendMessagef("segment %d: [%d, %d)", item.segment.ID, srcIn, srcOut))
			}
			if srcOut == srcIn {
				// Fine-grained splits can round to zero audio ticks while the
				// video range stays positive. Extend to one audio tick so the
				// exported audio track keeps every segment with real video.
				srcOut = saturatingIncrement(srcOut)
			}
			audioTB := item.asset.Audio.TimeBase
			planSegment.SrcInAudio = &srcIn
			planSegment.SrcOutAudio = &srcOut
			planSegment.SrcAudioTimeBase = &audioTB
		}

		plan.Segments = append(plan.Segments, planSegment)
	}

	return plan, nil
}

func saturatingIncrement(v int64) int64 {
	if v == math.MaxInt64 {
		return v
	}
	return v + 1
}
