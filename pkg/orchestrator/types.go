//go:generate mockgen -destination=./mocks/orchestrator.go -package=mocks . TaskManager,StatusPoller,Merger,CacheLookup

package orchestrator

import (
	"context"
	"time"

	"github.com/xcube-dev/clmsfetch/pkg/jobs"
	"github.com/xcube-dev/clmsfetch/pkg/model"
)

// DefaultPollInterval is the delay between job status polls.
const DefaultPollInterval = 15 * time.Second

// DefaultConcurrency bounds the number of datasets preloaded in parallel.
const DefaultConcurrency = 4

// StagingDirName is the directory below the cache root holding per-key
// staging areas. Its name carries no key separator, so the cache index
// never mistakes it for an artifact.
const StagingDirName = ".staging"

// TaskManager is the subset of the download manager used by the
// orchestrator.
type TaskManager interface {
	RequestDownload(ctx context.Context, item model.DatasetItem) (string, error)
	DownloadURL(ctx context.Context, jobID string) (string, int64, error)
	DownloadAndExtract(ctx context.Context, url, stagingDir string) ([]string, error)
}

// StatusPoller answers job status questions. Satisfied by jobs.Tracker.
type StatusPoller interface {
	ResolveStatus(ctx context.Context, m jobs.Matcher) (model.Status, string, error)
}

// Merger turns a staging directory into a cache artifact.
type Merger interface {
	MergeDir(ctx context.Context, key, stagingDir string) error
}

// CacheLookup is the subset of the cache index used by the orchestrator.
type CacheLookup interface {
	Refresh() error
	Lookup(key string) (string, bool)
	Root() string
}

// Hooks carries callbacks for progress notifications.
type Hooks struct {
	OnState func(model.PreloadState)
}

// Options control preload execution.
type Options struct {
	PollInterval time.Duration
	Concurrency  int
}
