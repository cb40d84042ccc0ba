package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/media"
)

// channelLayouts maps channel counts to the ffmpeg layout names accepted by
// aformat.
var channelLayouts = map[uint16]string{
	1: "mono",
	2: "stereo",
	3: "2.1",
	4: "quad",
	5: "5.0",
	6: "5.1",
	7: "6.1",
	8: "7.1",
}

// ExportVideo renders the plan into an H.264/AAC MP4 by trimming each source
// range in its native time base and concatenating the pieces.
func (b *Backend) ExportVideo(ctx context.Context, plan *media.ExportVideoPlan, progress func(done, total int)) error {
	if err := ValidateExportPlan(plan); err != nil {
		return err
	}

	total := len(plan.Segments)
	if progress != nil {
		progress(0, total)
	}

	args := []string{"-hide_banner", "-v", "error", "-y", "-copyts"}
	for _, input := range plan.Inputs {
		args = append(args, "-i", input)
	}

	videoLabel, audioLabel := outputLabels(plan)
	args = append(args,
		"-filter_complex", BuildFilterComplex(plan),
		"-map", videoLabel,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
	)
	if plan.Audio != nil {
		args = append(args,
			"-map", audioLabel,
			"-c:a", "aac",
			"-ar", fmt.Sprint(plan.Audio.SampleRate),
			"-ac", fmt.Sprint(plan.Audio.Channels),
		)
	} else {
		args = append(args, "-an")
	}
	args = append(args, plan.OutputPath)

	b.log.Info().Str("output", plan.OutputPath).Int("segments", total).Msg("starting export")
	if _, err := b.run(ctx, b.ffmpegPath, args...); err != nil {
		return err
	}
	if progress != nil {
		progress(total, total)
	}
	return nil
}

func outputLabels(plan *media.ExportVideoPlan) (string, string) {
	if len(plan.Segments) == 1 {
		return "[v0]", "[a0]"
	}
	return "[vout]", "[aout]"
}

// BuildFilterComplex renders the trim/concat graph. Each segment is trimmed
// by source pts in its own time base and rebased to zero; multiple segments
// feed one concat node.
func BuildFilterComplex(plan *media.ExportVideoPlan) string {
	hasAudio := plan.Audio != nil
	chains := make([]string, 0, len(plan.Segments)*2+1)

	for index, segment := range plan.Segments {
		chains = append(chains, fmt.Sprintf(
			"[%d:v:0]settb=%d/%d,trim=start_pts=%d:end_pts=%d,setpts=PTS-STARTPTS[v%d]",
			segment.InputIndex,
			segment.SrcVideoTimeBase.Num, segment.SrcVideoTimeBase.Den,
			segment.SrcInVideo, segment.SrcOutVideo,
			index,
		))

		if hasAudio {
			chains = append(chains, fmt.Sprintf(
				"[%d:a:0]asettb=%d/%d,atrim=start_pts=%d:end_pts=%d,asetpts=PTS-STARTPTS,"+
					"aresample=%d:async=1:first_pts=0,aformat=sample_rates=%d:channel_layouts=%s[a%d]",
				segment.InputIndex,
				segment.SrcAudioTimeBase.Num, segment.SrcAudioTimeBase.Den,
				*segment.SrcInAudio, *segment.SrcOutAudio,
				plan.Audio.SampleRate,
				plan.Audio.SampleRate,
				channelLayouts[plan.Audio.Channels],
				index,
			))
		}
	}

	if len(plan.Segments) > 1 {
		var concat strings.Builder
		for index := range plan.Segments {
			if hasAudio {
				fmt.Fprintf(&concat, "[v%d][a%d]", index, index)
			} else {
				fmt.Fprintf(&concat, "[v%d]", index)
			}
		}
		if hasAudio {
			fmt.Fprintf(&concat, "concat=n=%d:v=1:a=1[vout][aout]", len(plan.Segments))
		} else {
			fmt.Fprintf(&concat, "concat=n=%d:v=1:a=0[vout]", len(plan.Segments))
		}
		chains = append(chains, concat.String())
	}

	return strings.Join(chains, ";")
}

// ValidateExportPlan rejects plans ffmpeg would fail on anyway, with a
// readable reason instead of a filter graph error.
func ValidateExportPlan(plan *media.ExportVideoPlan) error {
	if len(plan.Inputs) == 0 {
		return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("export inputs are empty"))
	}
	if len(plan.Segments) == 0 {
		return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("export segments are empty"))
	}
	if plan.OutputPath == "" {
		return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("output path is empty"))
	}

	if audio := plan.Audio; audio != nil {
		if audio.SampleRate == 0 {
			return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("audio sample rate must be positive"))
		}
		if audio.Channels == 0 {
			return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("audio channels must be positive"))
		}
		if _, ok := channelLayouts[audio.Channels]; !ok {
			return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("audio channel layout is unsupported"))
		}
	}

	for _, segment := range plan.Segments {
		if segment.InputIndex < 0 || segment.InputIndex >= len(plan.Inputs) {
			return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("segment input index is out of range"))
		}
		if segment.SrcOutVideo <= segment.SrcInVideo {
			return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("segment source range is not positive"))
		}
		if plan.Audio != nil {
			if segment.SrcInAudio == nil || segment.SrcOutAudio == nil {
				return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("audio range is missing"))
			}
			if segment.SrcAudioTimeBase == nil {
				return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("audio time base is missing"))
			}
			if *segment.SrcOutAudio <= *segment.SrcInAudio {
				return merry.Wrap(ErrInvalidExportPlan, merry.AppendMessage("audio source range is not positive"))
			}
		}
	}

	return nil
}
