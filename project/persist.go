package project

import (
	"encoding/json"
	"math"
	"os"

	"github.com/ansel1/merry/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/klippmedia/klipp-engine/timeline"
)

// SchemaVersion is bumped on any incompatible change to the file layout.
const SchemaVersion = 1

var (
	ErrInvalidProjectFile   = merry.Sentinel("invalid project file")
	ErrProjectIO            = merry.Sentinel("project file io failed")
	ErrProjectSerialization = merry.Sentinel("project serialization failed")
)

// ProjectFile is the on-disk layout. The timeline is flattened to its segment
// list so the file stays stable if the in-memory timeline grows fields.
type ProjectFile struct {
	SchemaVersion int                `json:"schema_version"`
	Assets        []MediaAsset       `json:"assets"`
	Segments      []timeline.Segment `json:"segments"`
	Settings      ProjectSettings    `json:"settings"`
}

// SaveToFile validates the project and writes it as versioned JSON. Nothing
// is written when validation fails.
func (p *Project) SaveToFile(path string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	file := ProjectFile{
		SchemaVersion: SchemaVersion,
		Assets:        p.Assets,
		Segments:      p.Timeline.Segments,
		Settings:      p.Settings,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return merry.Wrap(ErrProjectSerialization, merry.AppendMessagef("%v", err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return merry.Wrap(ErrProjectIO, merry.AppendMessagef("%v", err))
	}
	return nil
}

// LoadFromFile reads and validates a project file. A schema version mismatch
// is rejected before any structural validation runs.
func LoadFromFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, merry.Wrap(ErrProjectIO, merry.AppendMessagef("%v", err))
	}

	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, merry.Wrap(ErrProjectSerialization, merry.AppendMessagef("%v", err))
	}
	if header.SchemaVersion != SchemaVersion {
		return nil, merry.Wrap(ErrInvalidProjectFile,
			merry.AppendMessagef("schema version %d, want %d", header.SchemaVersion, SchemaVersion))
	}

	var file ProjectFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, merry.Wrap(ErrProjectSerialization, merry.AppendMessagef("%v", err))
	}

	loaded := &Project{
		Assets:   file.Assets,
		Timeline: timeline.Timeline{Segments: file.Segments},
		Settings: file.Settings,
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Validate checks structural integrity: unique ids, consistent stream
// metadata, ordered non-overlapping segments, and source ranges matching the
// streams their assets actually have.
func (p *Project) Validate() error {
	assetIDs := mapset.NewThreadUnsafeSet[uint64]()
	for _, asset := range p.Assets {
		if !assetIDs.Add(asset.ID) {
			return merry.Wrap(ErrInvalidProjectFile, merry.AppendMessagef("duplicate asset id %d", asset.ID))
		}
		if (asset.VideoStreamIndex == nil) != (asset.Video == nil) {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("asset %d: video stream index and stream info disagree", asset.ID))
		}
		if (asset.AudioStreamIndex == nil) != (asset.Audio == nil) {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("asset %d: audio stream index and stream info disagree", asset.ID))
		}
		if asset.DurationTL <= 0 {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("asset %d: non-positive duration %d", asset.ID, asset.DurationTL))
		}
	}

	segmentIDs := mapset.NewThreadUnsafeSet[uint64]()
	previousEnd := int64(0)
	for _, segment := range p.Timeline.Segments {
		if !segmentIDs.Add(segment.ID) {
			return merry.Wrap(ErrInvalidProjectFile, merry.AppendMessagef("duplicate segment id %d", segment.ID))
		}
		if segment.TimelineStart < 0 {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("segment %d: negative start %d", segment.ID, segment.TimelineStart))
		}
		if segment.TimelineDuration <= 0 {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("segment %d: non-positive duration %d", segment.ID, segment.TimelineDuration))
		}
		if segment.TimelineStart > math.MaxInt64-segment.TimelineDuration {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("segment %d: start plus duration overflows", segment.ID))
		}
		if segment.TimelineStart < previousEnd {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("segment %d: overlaps previous segment", segment.ID))
		}
		previousEnd = segment.End()

		asset := p.AssetByID(segment.AssetID)
		if asset == nil {
			return merry.Wrap(ErrMissingAsset,
				merry.AppendMessagef("segment %d: asset %d", segment.ID, segment.AssetID))
		}
		if err := validateSourceRange(segment.ID, "video", asset.Video != nil, segment.SrcInVideo, segment.SrcOutVideo); err != nil {
			return err
		}
		if err := validateSourceRange(segment.ID, "audio", asset.Audio != nil, segment.SrcInAudio, segment.SrcOutAudio); err != nil {
			return err
		}
	}
	return nil
}

func validateSourceRange(segmentID uint64, stream string, hasStream bool, srcIn, srcOut *int64) error {
	if !hasStream {
		if srcIn != nil || srcOut != nil {
			return merry.Wrap(ErrInvalidProjectFile,
				merry.AppendMessagef("segment %d: %s range set but asset has no %s stream", segmentID, stream, stream))
		}
		return nil
	}
	if srcIn == nil || srcOut == nil {
		return merry.Wrap(ErrInvalidProjectFile,
			merry.AppendMessagef("segment %d: incomplete %s source range", segmentID, stream))
	}
	// Negative in-points are legal, some containers start before zero. Only
	// ordering is enforced.
	if *srcOut < *srcIn {
		return merry.Wrap(ErrInvalidProjectFile,
			merry.AppendMessagef("segment %d: invalid %s source range [%d, %d)", segmentID, stream, *srcIn, *srcOut))
	}
	return nil
}
