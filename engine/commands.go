package engine

// Command is one request to the editing core. Commands are plain data so they
// can cross queue and transport boundaries unchanged.
type Command interface {
	isCommand()
}

type Import struct {
	Path string `json:"path"`
}

type SetPlayhead struct {
	PositionTL int64 `json:"position_tl"`
}

type Split struct {
	AtTL int64 `json:"at_tl"`
}

type Cut struct {
	AtTL int64 `json:"at_tl"`
}

type MoveSegment struct {
	SegmentID  uint64 `json:"segment_id"`
	NewStartTL int64  `json:"new_start_tl"`
}

type TrimSegmentStart struct {
	SegmentID  uint64 `json:"segment_id"`
	NewStartTL int64  `json:"new_start_tl"`
}

type TrimSegmentEnd struct {
	SegmentID uint64 `json:"segment_id"`
	NewEndTL  int64  `json:"new_end_tl"`
}

type Export struct {
	OutputPath string `json:"output_path"`
}

type CancelExport struct{}

type SaveProject struct {
	Path string `json:"path"`
}

type LoadProject struct {
	Path string `json:"path"`
}

func (Import) isCommand()           {}
func (SetPlayhead) isCommand()      {}
func (Split) isCommand()            {}
func (Cut) isCommand()              {}
func (MoveSegment) isCommand()      {}
func (TrimSegmentStart) isCommand() {}
func (TrimSegmentEnd) isCommand()   {}
func (Export) isCommand()           {}
func (CancelExport) isCommand()     {}
func (SaveProject) isCommand()      {}
func (LoadProject) isCommand()      {}
