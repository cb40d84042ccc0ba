// Package engine is the command/event façade over the editing core. One
// engine instance is confined to one goroutine; Worker provides the queued
// wiring around it.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ansel1/merry/v2"
	"github.com/klippmedia/klipp-engine/cache"
	"github.com/klippmedia/klipp-engine/export"
	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/project"
	"github.com/klippmedia/klipp-engine/timeline"
	"github.com/rs/zerolog"
)

var ErrProjectNotLoaded = merry.Sentinel("no project loaded")

// DefaultCacheCapacity bounds the preview frame cache when no option
// overrides it.
const DefaultCacheCapacity = 64

type lastPreview struct {
	path   string
	bucket int64
}

type Engine struct {
	backend       media.Backend
	log           zerolog.Logger
	cacheCapacity int
	prefetch      cache.PrefetchPolicy

	project       *project.Project
	playheadTL    int64
	nextAssetID   uint64
	nextSegmentID uint64
	frames        *cache.PreviewFrameCache
	lastPreview   *lastPreview
}

type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithCacheCapacity(capacity int) Option {
	return func(e *Engine) { e.cacheCapacity = capacity }
}

func WithPrefetchPolicy(policy cache.PrefetchPolicy) Option {
	return func(e *Engine) { e.prefetch = policy }
}

// New creates an engine around a media backend. Ids start at 1 and never
// repeat within one engine instance.
func New(backend media.Backend, options ...Option) *Engine {
	e := &Engine{
		backend:       backend,
		log:           zerolog.Nop(),
		cacheCapacity: DefaultCacheCapacity,
		prefetch:      cache.DefaultPrefetchPolicy(),
		nextAssetID:   1,
		nextSegmentID: 1,
	}
	for _, option := range options {
		option(e)
	}
	e.frames = cache.NewPreviewFrameCache(e.cacheCapacity, cache.DefaultBucketSizeTL)
	return e
}

// PlayheadTL returns the current playhead position in timeline ticks.
func (e *Engine) PlayheadTL() int64 {
	return e.playheadTL
}

// Snapshot returns the current project snapshot, or false when no project is
// loaded.
func (e *Engine) Snapshot() (project.ProjectSnapshot, bool) {
	if e.project == nil {
		return project.ProjectSnapshot{}, false
	}
	return e.project.Snapshot(), true
}

// HandleCommand applies one command and returns the events it produced. On
// error no events are returned and the engine state is unchanged except where
// documented (clamping never fails).
func (e *Engine) HandleCommand(ctx context.Context, command Command) ([]Event, error) {
	switch c := command.(type) {
	case Import:
		return e.importAsset(ctx, c.Path)
	case SetPlayhead:
		return e.setPlayhead(ctx, c.PositionTL)
	case Split:
		return e.split(c.AtTL)
	case Cut:
		return e.cut(c.AtTL)
	case MoveSegment:
		return e.edit(func(p *project.Project) error { return p.MoveSegment(c.SegmentID, c.NewStartTL) })
	case TrimSegmentStart:
		return e.edit(func(p *project.Project) error { return p.TrimSegmentStart(c.SegmentID, c.NewStartTL) })
	case TrimSegmentEnd:
		return e.edit(func(p *project.Project) error { return p.TrimSegmentEnd(c.SegmentID, c.NewEndTL) })
	case Export:
		return e.export(ctx, c.OutputPath)
	case CancelExport:
		return nil, nil
	case SaveProject:
		return e.saveProject(c.Path)
	case LoadProject:
		return e.loadProject(c.Path)
	default:
		return nil, merry.New(fmt.Sprintf("unsupported command %T", command))
	}
}

func (e *Engine) importAsset(ctx context.Context, path string) ([]Event, error) {
	probed, err := e.backend.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	assetID := e.nextAssetID
	segmentID := e.nextSegmentID
	loaded := project.FromSingleAsset(assetID, segmentID, probed)
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	e.nextAssetID++
	e.nextSegmentID++

	e.project = loaded
	e.resetPlayback()

	e.log.Info().Str("path", path).Int64("duration_tl", probed.DurationTL).Msg("asset imported")

	return []Event{
		ProjectChanged{Snapshot: loaded.Snapshot()},
		PlayheadChanged{PositionTL: 0},
	}, nil
}

// resetPlayback rebuilds the frame cache with a bucket size derived from the
// current assets and drops all scrub state.
func (e *Engine) resetPlayback() {
	e.playheadTL = 0
	e.lastPreview = nil
	e.frames = cache.NewPreviewFrameCache(e.cacheCapacity, cache.BucketSizeForAssets(e.project.Assets))
}

func (e *Engine) setPlayhead(ctx context.Context, positionTL int64) ([]Event, error) {
	if e.project == nil {
		return nil, merry.Wrap(ErrProjectNotLoaded)
	}

	clamped := project.NormalizePlayhead(positionTL, e.project.DurationTL())
	e.playheadTL = clamped
	events := []Event{PlayheadChanged{PositionTL: clamped}}

	request, err := e.project.PreviewRequestAt(clamped)
	if errors.Is(err, timeline.ErrSegmentNotFound) {
		// Playhead parked in a gap: position moves, no frame to show.
		return events, nil
	}
	if err != nil {
		return nil, err
	}

	key := e.frames.KeyFor(request.Path, request.SourceTL)
	if frame, hit := e.frames.Get(key); hit {
		events = append(events, PreviewFrameReady{PositionTL: clamped, Frame: frame})
		e.prefetchOne(ctx, key, e.scrubDirection(key))
		e.lastPreview = &lastPreview{path: key.Path, bucket: key.Bucket}
		return events, nil
	}

	frame, err := e.backend.DecodePreviewFrame(ctx, request.Path, request.SourceSeconds)
	if err != nil {
		return nil, err
	}
	e.frames.Insert(key, frame)
	e.lastPreview = &lastPreview{path: key.Path, bucket: key.Bucket}
	events = append(events, PreviewFrameReady{PositionTL: clamped, Frame: frame})
	return events, nil
}

// scrubDirection derives the scrub direction from the previous preview
// position. A repeated bucket or a jump to another file gives no direction.
func (e *Engine) scrubDirection(key cache.Key) cache.ScrubDirection {
	if e.lastPreview == nil || e.lastPreview.path != key.Path {
		return cache.ScrubUnknown
	}
	switch {
	case key.Bucket > e.lastPreview.bucket:
		return cache.ScrubForward
	case key.Bucket < e.lastPreview.bucket:
		return cache.ScrubBackward
	default:
		return cache.ScrubUnknown
	}
}

// prefetchOne warms at most one bucket near the hit: the first uncached
// candidate from the policy that decodes successfully. Decode failures are
// logged and skipped so a short asset cannot wedge prefetching near its ends.
func (e *Engine) prefetchOne(ctx context.Context, origin cache.Key, direction cache.ScrubDirection) {
	bucketSize := e.frames.BucketSizeTL()
	for _, offset := range e.prefetch.Offsets(direction) {
		bucket := origin.Bucket + offset
		if bucket < 0 {
			continue
		}
		candidate := cache.Key{Path: origin.Path, Bucket: bucket}
		if e.frames.Contains(candidate) {
			continue
		}

		seconds := float64(bucket*bucketSize) / 1_000_000
		frame, err := e.backend.DecodePreviewFrame(ctx, candidate.Path, seconds)
		if err != nil {
			e.log.Debug().Err(err).Int64("bucket", bucket).Msg("prefetch decode failed")
			continue
		}
		e.frames.Insert(candidate, frame)
		return
	}
}

func (e *Engine) split(atTL int64) ([]Event, error) {
	if e.project == nil {
		return nil, merry.Wrap(ErrProjectNotLoaded)
	}
	// The new segment id is only consumed if the split lands.
	if err := e.project.Split(atTL, e.nextSegmentID); err != nil {
		return nil, err
	}
	e.nextSegmentID++
	e.frames.Clear()

	e.log.Info().
		Int64("at_tl", atTL).
		Int("segment_count", len(e.project.Timeline.Segments)).
		Msg("split applied")

	return []Event{ProjectChanged{Snapshot: e.project.Snapshot()}}, nil
}

func (e *Engine) cut(atTL int64) ([]Event, error) {
	if e.project == nil {
		return nil, merry.Wrap(ErrProjectNotLoaded)
	}
	removed, err := e.project.Cut(atTL)
	if err != nil {
		return nil, err
	}
	e.playheadTL = project.NormalizePlayhead(e.playheadTL, e.project.DurationTL())
	e.frames.Clear()

	e.log.Info().
		Int64("at_tl", atTL).
		Uint64("segment_id", removed.ID).
		Int64("playhead_tl", e.playheadTL).
		Msg("cut applied")

	return []Event{ProjectChanged{Snapshot: e.project.Snapshot()}}, nil
}

// edit runs one mutating timeline operation and does the shared bookkeeping:
// playhead re-clamping, cache invalidation, change notification.
func (e *Engine) edit(apply func(*project.Project) error) ([]Event, error) {
	if e.project == nil {
		return nil, merry.Wrap(ErrProjectNotLoaded)
	}
	if err := apply(e.project); err != nil {
		return nil, err
	}
	e.playheadTL = project.NormalizePlayhead(e.playheadTL, e.project.DurationTL())
	e.frames.Clear()
	return []Event{ProjectChanged{Snapshot: e.project.Snapshot()}}, nil
}

func (e *Engine) export(ctx context.Context, outputPath string) ([]Event, error) {
	if e.project == nil {
		return nil, merry.Wrap(ErrProjectNotLoaded)
	}
	plan, err := export.BuildVideoPlan(e.project, outputPath)
	if err != nil {
		return nil, err
	}
	total := len(plan.Segments)

	var events []Event
	lastDone := -1
	progress := func(done, _ int) {
		events = append(events, ExportProgress{Done: done, Total: total})
		lastDone = done
	}
	if err := e.backend.ExportVideo(ctx, plan, progress); err != nil {
		return nil, err
	}
	if lastDone != total {
		events = append(events, ExportProgress{Done: total, Total: total})
	}
	events = append(events, ExportFinished{OutputPath: outputPath})

	e.log.Info().Str("output", outputPath).Int("segments", total).Msg("export finished")
	return events, nil
}

func (e *Engine) saveProject(path string) ([]Event, error) {
	if e.project == nil {
		return nil, merry.Wrap(ErrProjectNotLoaded)
	}
	if err := e.project.SaveToFile(path); err != nil {
		return nil, err
	}
	e.log.Info().Str("path", path).Msg("project saved")
	return []Event{ProjectSaved{Path: path}}, nil
}

func (e *Engine) loadProject(path string) ([]Event, error) {
	loaded, err := project.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	e.project = loaded
	e.nextAssetID = nextID(loaded.Assets, func(a project.MediaAsset) uint64 { return a.ID })
	e.nextSegmentID = nextID(loaded.Timeline.Segments, func(s timeline.Segment) uint64 { return s.ID })
	e.resetPlayback()

	e.log.Info().Str("path", path).Msg("project loaded")

	return []Event{
		ProjectChanged{Snapshot: loaded.Snapshot()},
		PlayheadChanged{PositionTL: 0},
	}, nil
}

func nextID[T any](items []T, id func(T) uint64) uint64 {
	next := uint64(1)
	for _, item := range items {
		if id(item) >= next {
			next = id(item) + 1
		}
	}
	return next
}
