package ffmpeg

import (
	"context"
	"math"
	"strconv"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/media"
)

// DecodePreviewFrame decodes one RGBA frame at or after the requested source
// position. ffmpeg seeks to the nearest keyframe before the position and
// decodes forward, so the returned frame is the one presented at that time.
func (b *Backend) DecodePreviewFrame(ctx context.Context, path string, sourceSeconds float64) (*media.PreviewFrame, error) {
	if math.IsNaN(sourceSeconds) || math.IsInf(sourceSeconds, 0) || sourceSeconds < 0 {
		return nil, merry.Wrap(ErrInvalidTimestamp, merry.AppendMessagef("%f", sourceSeconds))
	}

	raw, err := b.probeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	stream := raw.FirstVideo()
	if stream == nil {
		return nil, merry.Wrap(ErrMissingVideoStream, merry.AppendMessagef("%s", path))
	}
	if stream.Width == 0 || stream.Height == 0 {
		return nil, merry.Wrap(ErrMissingVideoDimensions, merry.AppendMessagef("%s", path))
	}

	stdout, err := b.run(ctx, b.ffmpegPath,
		"-hide_banner",
		"-v", "error",
		"-ss", strconv.FormatFloat(sourceSeconds, 'f', 6, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	if err != nil {
		return nil, err
	}

	expected := int(stream.Width) * int(stream.Height) * 4
	if len(stdout) != expected {
		return nil, merry.Wrap(ErrCommandFailed,
			merry.AppendMessagef("decoded %d bytes for %s, want %d", len(stdout), path, expected))
	}

	return &media.PreviewFrame{
		Width:  stream.Width,
		Height: stream.Height,
		Format: media.PixelFormatRGBA8,
		Bytes:  stdout,
	}, nil
}
