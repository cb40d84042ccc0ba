package ffmpeg

import (
	"errors"
	"testing"

	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/timebase"
	"github.com/stretchr/testify/assert"
)

func videoOnlyPlan() *media.ExportVideoPlan {
	return &media.ExportVideoPlan{
		Inputs: []string{"in.mp4"},
		Segments: []media.ExportVideoSegment{
			{
				InputIndex:       0,
				SrcInVideo:       90_000,
				SrcOutVideo:      120_000,
				SrcVideoTimeBase: timebase.Rational{Num: 1, Den: 90_000},
			},
			{
				InputIndex:       0,
				SrcInVideo:       120_000,
				SrcOutVideo:      198_000,
				SrcVideoTimeBase: timebase.Rational{Num: 1, Den: 90_000},
			},
		},
		OutputPath: "out.mp4",
	}
}

func withAudio(plan *media.ExportVideoPlan) *media.ExportVideoPlan {
	audioTB := timebase.Rational{Num: 1, Den: 48_000}
	ranges := [][2]int64{{48_000, 64_000}, {64_000, 105_600}}
	for i := range plan.Segments {
		in, out := ranges[i][0], ranges[i][1]
		plan.Segments[i].SrcInAudio = &in
		plan.Segments[i].SrcOutAudio = &out
		plan.Segments[i].SrcAudioTimeBase = &audioTB
	}
	plan.Audio = &media.ExportAudioSettings{SampleRate: 48_000, Channels: 2}
	return plan
}

func TestFilterComplexForTwoSegmentsUsesTrimSetptsAndConcat(t *testing.T) {
	filter := BuildFilterComplex(videoOnlyPlan())

	assert.Equal(t,
		"[0:v:0]settb=1/90000,trim=start_pts=90000:end_pts=120000,setpts=PTS-STARTPTS[v0];"+
			"[0:v:0]settb=1/90000,trim=start_pts=120000:end_pts=198000,setpts=PTS-STARTPTS[v1];"+
			"[v0][v1]concat=n=2:v=1:a=0[vout]",
		filter)
}

func TestFilterComplexWithAudioUsesAVConcat(t *testing.T) {
	filter := BuildFilterComplex(withAudio(videoOnlyPlan()))

	assert.Equal(t,
		"[0:v:0]settb=1/90000,trim=start_pts=90000:end_pts=120000,setpts=PTS-STARTPTS[v0];"+
			"[0:a:0]asettb=1/48000,atrim=start_pts=48000:end_pts=64000,asetpts=PTS-STARTPTS,"+
			"aresample=48000:async=1:first_pts=0,aformat=sample_rates=48000:channel_layouts=stereo[a0];"+
			"[0:v:0]settb=1/90000,trim=start_pts=120000:end_pts=198000,setpts=PTS-STARTPTS[v1];"+
			"[0:a:0]asettb=1/48000,atrim=start_pts=64000:end_pts=105600,asetpts=PTS-STARTPTS,"+
			"aresample=48000:async=1:first_pts=0,aformat=sample_rates=48000:channel_layouts=stereo[a1];"+
			"[v0][a0][v1][a1]concat=n=2:v=1:a=1[vout][aout]",
		filter)
}

func TestFilterComplexForSingleSegmentSkipsConcat(t *testing.T) {
	plan := videoOnlyPlan()
	plan.Segments = plan.Segments[:1]

	filter := BuildFilterComplex(plan)
	assert.Equal(t,
		"[0:v:0]settb=1/90000,trim=start_pts=90000:end_pts=120000,setpts=PTS-STARTPTS[v0]",
		filter)
}

func TestValidateExportPlan(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(plan *media.ExportVideoPlan)
	}{
		{"no inputs", func(plan *media.ExportVideoPlan) { plan.Inputs = nil }},
		{"no segments", func(plan *media.ExportVideoPlan) { plan.Segments = nil }},
		{"no output path", func(plan *media.ExportVideoPlan) { plan.OutputPath = "" }},
		{"input index out of range", func(plan *media.ExportVideoPlan) { plan.Segments[0].InputIndex = 3 }},
		{"empty video range", func(plan *media.ExportVideoPlan) { plan.Segments[0].SrcOutVideo = plan.Segments[0].SrcInVideo }},
		{"zero sample rate", func(plan *media.ExportVideoPlan) { plan.Audio.SampleRate = 0 }},
		{"zero channels", func(plan *media.ExportVideoPlan) { plan.Audio.Channels = 0 }},
		{"unsupported channel layout", func(plan *media.ExportVideoPlan) { plan.Audio.Channels = 9 }},
		{"missing audio range", func(plan *media.ExportVideoPlan) { plan.Segments[1].SrcInAudio = nil }},
		{"missing audio time base", func(plan *media.ExportVideoPlan) { plan.Segments[1].SrcAudioTimeBase = nil }},
		{"empty audio range", func(plan *media.ExportVideoPlan) { plan.Segments[1].SrcOutAudio = plan.Segments[1].SrcInAudio }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := withAudio(videoOnlyPlan())
			assert.NoError(t, ValidateExportPlan(plan))
			tt.mutate(plan)
			err := ValidateExportPlan(plan)
			assert.True(t, errors.Is(err, ErrInvalidExportPlan))
		})
	}
}
