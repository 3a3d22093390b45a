// Package orchestrator drives the full preload pipeline for dataset keys:
// request a download job, poll it to completion, fetch and stage the
// payload, merge the tiles and refresh the cache index. Progress is
// reported through hooks; every key emits exactly one terminal
// notification.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/jobs"
	"github.com/xcube-dev/clmsfetch/pkg/model"
)

// Progress milestones emitted while a key is materialized.
const (
	progressQueued  = 0.1
	progressFetched = 0.4
	progressStaged  = 0.8
	progressDone    = 1.0
)

// Orchestrator ties the download manager, status tracker, mosaicker and
// cache index together for preloads.
type Orchestrator struct {
	Tasks  TaskManager
	Status StatusPoller
	Merger Merger
	Cache  CacheLookup
	Hooks  Hooks // Hooks for progress notifications

	pollInterval time.Duration
	concurrency  int

	mu sync.Mutex
}

// New constructs an Orchestrator from existing managers. Hooks can be
// zero-valued if no progress handling is needed.
func New(tasks TaskManager, status StatusPoller, merger Merger, cache CacheLookup, hooks Hooks, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		Tasks:        tasks,
		Status:       status,
		Merger:       merger,
		Cache:        cache,
		Hooks:        hooks,
		pollInterval: opts.PollInterval,
		concurrency:  opts.Concurrency,
	}
}

// StagingRoot returns the directory holding per-key staging areas.
func (o *Orchestrator) StagingRoot() string {
	return filepath.Join(o.Cache.Root(), StagingDirName)
}

// Preload materializes every dataset item into the cache. Items already
// cached finish immediately; the rest run concurrently, each isolated
// from the failures of the others. Returns an error when any item failed.
func (o *Orchestrator) Preload(ctx context.Context, items []model.DatasetItem) error {
	if err := o.Cache.Refresh(); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	var mu sync.Mutex
	var failed []string

	for _, item := range items {
		key := item.Key()
		if _, ok := o.Cache.Lookup(key); ok {
			logger.Info("dataset already cached", logger.Fields{"key": key})
			o.emit(model.PreloadState{Key: key, Progress: progressDone, Message: "already cached", Terminal: true})
			continue
		}

		g.Go(func() error {
			if err := o.preloadOne(ctx, item); err != nil {
				logger.Error("preload failed", logger.Fields{"key": key, "error": err})
				o.emit(model.PreloadState{Key: key, Message: "preload failed", Terminal: true, Err: err})
				mu.Lock()
				failed = append(failed, key)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d datasets failed to preload", len(failed), len(items))
	}
	return nil
}

// preloadOne runs the pipeline for a single dataset item.
func (o *Orchestrator) preloadOne(ctx context.Context, item model.DatasetItem) error {
	key := item.Key()

	jobID, err := o.Tasks.RequestDownload(ctx, item)
	if err != nil {
		return err
	}
	o.emit(model.PreloadState{Key: key, Progress: progressQueued, Message: "download request in queue"})

	if err := o.awaitJob(ctx, key, jobID); err != nil {
		return err
	}

	url, size, err := o.Tasks.DownloadURL(ctx, jobID)
	if err != nil {
		return err
	}
	if url == "" {
		return errors.Wrapf(errors.ErrDownloadFailed, "job %s finished without a download link", jobID)
	}
	o.emit(model.PreloadState{Key: key, Progress: progressFetched, Message: "downloading and extracting"})

	stagingDir := filepath.Join(o.StagingRoot(), key)
	if _, err := o.Tasks.DownloadAndExtract(ctx, url, stagingDir); err != nil {
		return err
	}
	logger.Debug("payload staged", logger.Fields{"key": key, "bytes_expected": size})
	o.emit(model.PreloadState{Key: key, Progress: progressStaged, Message: "merging tiles"})

	if err := o.Merger.MergeDir(ctx, key, stagingDir); err != nil {
		return err
	}

	if err := o.refreshCache(); err != nil {
		return err
	}
	o.emit(model.PreloadState{Key: key, Progress: progressDone, Message: "preload complete", Terminal: true})
	return nil
}

// awaitJob polls the job until it finishes. A job the service cancels
// will never produce a payload, so cancellation is terminal.
func (o *Orchestrator) awaitJob(ctx context.Context, key, jobID string) error {
	for {
		status, _, err := o.Status.ResolveStatus(ctx, jobs.ForJob(jobID))
		if err != nil {
			return err
		}

		switch status {
		case model.StatusComplete:
			return nil
		case model.StatusCancelled:
			return errors.Wrapf(errors.ErrDownloadFailed, "job %s was cancelled by the service", jobID)
		case model.StatusPending, model.StatusUndefined:
			logger.Debug("job still pending", logger.Fields{"key": key, "job_id": jobID})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
}

// refreshCache serializes index refreshes across concurrent preloads.
func (o *Orchestrator) refreshCache() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Cache.Refresh()
}

// Close removes the staging area and everything in it. Artifacts already
// merged into the cache are untouched.
func (o *Orchestrator) Close() error {
	logger.Info("cleaning up", logger.Fields{"dir": o.StagingRoot()})
	if err := os.RemoveAll(o.StagingRoot()); err != nil {
		return errors.Wrap(err, "failed to remove staging area")
	}
	logger.Info("cleaning up finished")
	return nil
}

func (o *Orchestrator) emit(state model.PreloadState) {
	if o.Hooks.OnState != nil {
		o.Hooks.OnState(state)
	}
}
