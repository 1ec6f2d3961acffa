package ingesting

import "fmt"

// Stage names the pipeline step an item is in, or failed at.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageResolve   Stage = "resolve_album"
	StageTranscode Stage = "transcode"
	StageUpload    Stage = "upload"
	StageLink      Stage = "link"
)

// ItemStatus is the terminal outcome of one batch item.
type ItemStatus string

const (
	// ItemCompleted means every configured tier was stored and linked.
	ItemCompleted ItemStatus = "completed"
	// ItemPartial means the track is catalogued but one or more optional
	// tiers are missing.
	ItemPartial ItemStatus = "partial"
	// ItemFailed means nothing of the item survived; any objects uploaded
	// before the failure were removed.
	ItemFailed ItemStatus = "failed"
)

// ItemReport is the per-file outcome of a batch ingest.
type ItemReport struct {
	Path         string     `json:"path"`
	TrackID      string     `json:"trackId,omitempty"`
	AlbumID      string     `json:"albumId,omitempty"`
	Status       ItemStatus `json:"status"`
	FailedStage  Stage      `json:"failedStage,omitempty"`
	MissingTiers []string   `json:"missingTiers,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// BatchStats summarizes a finished batch.
type BatchStats struct {
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Partial   int          `json:"partial"`
	Failed    int          `json:"failed"`
	Reports   []ItemReport `json:"reports"`
}

func (s BatchStats) String() string {
	return fmt.Sprintf("%d processed (%d completed, %d partial, %d failed)",
		s.Total, s.Completed, s.Partial, s.Failed)
}
