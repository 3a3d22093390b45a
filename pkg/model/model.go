// Package model provides the shared data structures of the clmsfetch
// preloader: dataset keys, download jobs and their lifecycle states, and the
// progress notifications emitted while a dataset is materialized.
package model

import (
	"strings"
	"time"
)

// KeySeparator joins the product and file identifiers inside a dataset key.
// Cache entries on disk are named exactly after the key, so the separator
// must be a character that never appears in either identifier.
const KeySeparator = "|"

// MakeKey builds the dataset key for a product/file pair.
func MakeKey(datasetID, fileID string) string {
	return datasetID + KeySeparator + fileID
}

// SplitKey splits a dataset key into its product and file identifiers.
// The second return value is false when the key does not embed a separator.
func SplitKey(key string) (datasetID, fileID string, ok bool) {
	datasetID, fileID, ok = strings.Cut(key, KeySeparator)
	if !ok || datasetID == "" || fileID == "" {
		return "", "", false
	}
	return datasetID, fileID, true
}

// JobState is the lifecycle state of a download job as reported by the
// remote service. Transitions are owned by the service; clients only
// observe them through polling.
type JobState string

// Wire values of the job status field.
const (
	JobQueued     JobState = "Queued"
	JobInProgress JobState = "In_progress"
	JobFinished   JobState = "Finished_ok"
	JobCancelled  JobState = "Cancelled"
)

// Terminal reports whether the state can no longer change.
func (s JobState) Terminal() bool {
	return s == JobFinished || s == JobCancelled
}

// Status is the reduced answer for a dataset key after folding all of its
// historical jobs into one definitive state.
type Status int

// Reduced status values, in precedence order.
const (
	// StatusUndefined means no job matched the key.
	StatusUndefined Status = iota
	// StatusComplete means a non-expired finished job exists.
	StatusComplete
	// StatusPending means a queued or in-progress job exists.
	StatusPending
	// StatusCancelled means only cancelled jobs exist.
	StatusCancelled
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPending:
		return "pending"
	case StatusCancelled:
		return "cancelled"
	default:
		return "undefined"
	}
}

// DownloadJob is one historical download request known to the remote
// service. FinalizedAt is only meaningful for terminal states; the
// timestamp on pending jobs carries no dependable ordering.
type DownloadJob struct {
	ID          string
	DatasetID   string
	FileID      string
	State       JobState
	FinalizedAt time.Time
	ResultURL   string
	FileSize    int64
}

// Key returns the dataset key the job belongs to.
func (j DownloadJob) Key() string {
	return MakeKey(j.DatasetID, j.FileID)
}

// Expired reports whether a terminal job finalized longer than window ago.
// Non-terminal jobs never expire.
func (j DownloadJob) Expired(now time.Time, window time.Duration) bool {
	if !j.State.Terminal() || j.FinalizedAt.IsZero() {
		return false
	}
	return j.FinalizedAt.Add(window).Before(now)
}

// DatasetItem identifies one downloadable artifact together with the
// source it is hosted on. Source is validated against a static allow-list
// before any network call.
type DatasetItem struct {
	DatasetID string
	FileID    string
	Source    string
}

// Key returns the dataset key of the item.
func (i DatasetItem) Key() string {
	return MakeKey(i.DatasetID, i.FileID)
}

// PreloadState is one progress notification for a dataset key. Progress
// runs from 0 to 1; Terminal marks the last notification the key will
// ever emit (done, cached, cancelled or failed).
type PreloadState struct {
	Key      string
	Progress float64
	Message  string
	Terminal bool
	Err      error
}
