package engine

import (
	"errors"

	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/project"
	"github.com/klippmedia/klipp-engine/timeline"
	"github.com/orsinium-labs/enum"
)

// Event is one notification emitted by the engine. ProjectChanged always
// precedes any playhead or preview event derived from the same command.
type Event interface {
	isEvent()
}

type ProjectChanged struct {
	Snapshot project.ProjectSnapshot `json:"snapshot"`
}

type PlayheadChanged struct {
	PositionTL int64 `json:"position_tl"`
}

type PreviewFrameReady struct {
	PositionTL int64               `json:"position_tl"`
	Frame      *media.PreviewFrame `json:"-"`
}

type ExportProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type ExportFinished struct {
	OutputPath string `json:"output_path"`
}

type ProjectSaved struct {
	Path string `json:"path"`
}

type ErrorEvent struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (ProjectChanged) isEvent()    {}
func (PlayheadChanged) isEvent()   {}
func (PreviewFrameReady) isEvent() {}
func (ExportProgress) isEvent()    {}
func (ExportFinished) isEvent()    {}
func (ProjectSaved) isEvent()      {}
func (ErrorEvent) isEvent()        {}

type ErrorKind enum.Member[string]

var (
	ErrorKindSplitPointAtBoundary = ErrorKind{"split_point_at_boundary"}
	ErrorKindSegmentNotFound      = ErrorKind{"segment_not_found"}
	ErrorKindOther                = ErrorKind{"other"}
	ErrorKinds                    = enum.New(ErrorKindSplitPointAtBoundary, ErrorKindSegmentNotFound, ErrorKindOther)
)

// ErrorKindFor maps an engine error onto the user-facing kind. Unknown
// segment ids surface the same way as positions outside any segment.
func ErrorKindFor(err error) ErrorKind {
	switch {
	case errors.Is(err, timeline.ErrSplitPointAtBoundary):
		return ErrorKindSplitPointAtBoundary
	case errors.Is(err, timeline.ErrSegmentNotFound), errors.Is(err, timeline.ErrSegmentIDNotFound):
		return ErrorKindSegmentNotFound
	default:
		return ErrorKindOther
	}
}

// ErrorEventFor wraps an error as the event emitted on the worker's event
// stream.
func ErrorEventFor(err error) ErrorEvent {
	return ErrorEvent{Kind: ErrorKindFor(err), Message: err.Error()}
}
