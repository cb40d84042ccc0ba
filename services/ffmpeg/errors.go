package ffmpeg

import "github.com/ansel1/merry/v2"

var (
	ErrCommandFailed          = merry.Sentinel("ffmpeg command failed")
	ErrMissingDuration        = merry.Sentinel("media file has no usable duration")
	ErrMissingVideoStream     = merry.Sentinel("media file has no video stream")
	ErrMissingVideoDimensions = merry.Sentinel("video stream has no dimensions")
	ErrMissingAudioMetadata   = merry.Sentinel("audio stream is missing sample rate or channels")
	ErrInvalidExportPlan      = merry.Sentinel("invalid export plan")
	ErrInvalidTimestamp       = merry.Sentinel("invalid timestamp seconds")
)
