// Package ffmpeg is the production media backend: probing through ffprobe,
// preview decoding and export muxing through the ffmpeg CLI.
package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	gocache "github.com/Code-Hex/go-generics-cache"
	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/media"
	"github.com/rs/zerolog"
)

// probeTTL bounds how long a probe result is trusted. Files under an editor
// rarely change mid-session, but a stale probe after a re-render would
// poison every mapping derived from it.
const probeTTL = 5 * time.Minute

type Backend struct {
	ffmpegPath  string
	ffprobePath string
	log         zerolog.Logger
	probes      *gocache.Cache[string, *FFProbeResult]
}

var _ media.Backend = (*Backend)(nil)

// NewBackend creates a backend invoking the given ffmpeg/ffprobe binaries.
func NewBackend(ffmpegPath, ffprobePath string, log zerolog.Logger) *Backend {
	return &Backend{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
		probes:      gocache.New[string, *FFProbeResult](),
	}
}

// Probe inspects the file, memoizing the raw ffprobe result per path.
func (b *Backend) Probe(ctx context.Context, path string) (*media.ProbedMedia, error) {
	raw, err := b.probeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return mapProbeResult(path, raw)
}

func (b *Backend) probeFile(ctx context.Context, path string) (*FFProbeResult, error) {
	if cached, ok := b.probes.Get(path); ok {
		return cached, nil
	}
	result, err := b.doProbe(ctx, path)
	if err != nil {
		return nil, err
	}
	b.probes.Set(path, result, gocache.WithExpiration(probeTTL))
	return result, nil
}

// run executes one CLI invocation and returns stdout. A non-zero exit wraps
// stderr into the error, which is all ffmpeg gives us for diagnosis.
func (b *Backend) run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.log.Debug().Str("binary", binary).Str("args", strings.Join(args, " ")).Msg("running command")

	if err := cmd.Run(); err != nil {
		return nil, merry.Wrap(ErrCommandFailed,
			merry.AppendMessagef("%s %s: %v: %s", binary, strings.Join(args, " "), err, stderr.String()))
	}
	return stdout.Bytes(), nil
}
