package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/model"
	"github.com/xcube-dev/clmsfetch/pkg/orchestrator/mocks"
)

// stateRecorder collects progress notifications from concurrent preloads.
type stateRecorder struct {
	mu     sync.Mutex
	states []model.PreloadState
}

func (r *stateRecorder) hooks() Hooks {
	return Hooks{OnState: func(s model.PreloadState) {
		r.mu.Lock()
		r.states = append(r.states, s)
		r.mu.Unlock()
	}}
}

func (r *stateRecorder) forKey(key string) []model.PreloadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PreloadState
	for _, s := range r.states {
		if s.Key == key {
			out = append(out, s)
		}
	}
	return out
}

func terminals(states []model.PreloadState) int {
	n := 0
	for _, s := range states {
		if s.Terminal {
			n++
		}
	}
	return n
}

func newOrchestrator(tasks TaskManager, status StatusPoller, merger Merger, cache CacheLookup, hooks Hooks) *Orchestrator {
	return New(tasks, status, merger, cache, hooks, Options{
		PollInterval: time.Millisecond,
		Concurrency:  1,
	})
}

func TestPreloadCachedKeySkipsPipeline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	item := model.DatasetItem{DatasetID: "prod", FileID: "swi.tif", Source: "EEA"}

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Refresh().Return(nil)
	cache.EXPECT().Lookup(item.Key()).Return("/cache/prod|swi.tif", true)

	rec := &stateRecorder{}
	// No expectations on tasks, status or merger: any call fails the test.
	o := newOrchestrator(
		mocks.NewMockTaskManager(ctrl),
		mocks.NewMockStatusPoller(ctrl),
		mocks.NewMockMerger(ctrl),
		cache,
		rec.hooks(),
	)

	require.NoError(t, o.Preload(context.Background(), []model.DatasetItem{item}))

	states := rec.forKey(item.Key())
	require.Len(t, states, 1)
	assert.True(t, states[0].Terminal)
	assert.Equal(t, 1.0, states[0].Progress)
	assert.Equal(t, "already cached", states[0].Message)
}

func TestPreloadFullPipeline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	item := model.DatasetItem{DatasetID: "prod", FileID: "swi.tif", Source: "EEA"}
	key := item.Key()
	cacheRoot := t.TempDir()
	stagingDir := filepath.Join(cacheRoot, StagingDirName, key)

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Root().Return(cacheRoot).AnyTimes()
	cache.EXPECT().Refresh().Return(nil).Times(2)
	cache.EXPECT().Lookup(key).Return("", false)

	tasks := mocks.NewMockTaskManager(ctrl)
	tasks.EXPECT().RequestDownload(gomock.Any(), item).Return("j1", nil)
	tasks.EXPECT().DownloadURL(gomock.Any(), "j1").Return("http://payload", int64(1024), nil)
	tasks.EXPECT().DownloadAndExtract(gomock.Any(), "http://payload", stagingDir).
		Return([]string{filepath.Join(stagingDir, "swi_E10N10.tif")}, nil)

	status := mocks.NewMockStatusPoller(ctrl)
	gomock.InOrder(
		status.EXPECT().ResolveStatus(gomock.Any(), gomock.Any()).Return(model.StatusPending, "j1", nil),
		status.EXPECT().ResolveStatus(gomock.Any(), gomock.Any()).Return(model.StatusPending, "j1", nil),
		status.EXPECT().ResolveStatus(gomock.Any(), gomock.Any()).Return(model.StatusComplete, "j1", nil),
	)

	merger := mocks.NewMockMerger(ctrl)
	merger.EXPECT().MergeDir(gomock.Any(), key, stagingDir).Return(nil)

	rec := &stateRecorder{}
	o := newOrchestrator(tasks, status, merger, cache, rec.hooks())

	require.NoError(t, o.Preload(context.Background(), []model.DatasetItem{item}))

	states := rec.forKey(key)
	require.Len(t, states, 4)
	assert.Equal(t, 0.1, states[0].Progress)
	assert.Equal(t, 0.4, states[1].Progress)
	assert.Equal(t, 0.8, states[2].Progress)
	assert.Equal(t, 1.0, states[3].Progress)
	assert.Equal(t, 1, terminals(states))
	assert.True(t, states[3].Terminal)
	assert.NoError(t, states[3].Err)
}

func TestPreloadFinishedJobWithoutLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	item := model.DatasetItem{DatasetID: "prod", FileID: "swi.tif", Source: "EEA"}

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Refresh().Return(nil)
	cache.EXPECT().Lookup(item.Key()).Return("", false)

	tasks := mocks.NewMockTaskManager(ctrl)
	tasks.EXPECT().RequestDownload(gomock.Any(), item).Return("j1", nil)
	tasks.EXPECT().DownloadURL(gomock.Any(), "j1").Return("", int64(0), nil)

	status := mocks.NewMockStatusPoller(ctrl)
	status.EXPECT().ResolveStatus(gomock.Any(), gomock.Any()).Return(model.StatusComplete, "j1", nil)

	rec := &stateRecorder{}
	o := newOrchestrator(tasks, status, mocks.NewMockMerger(ctrl), cache, rec.hooks())

	err := o.Preload(context.Background(), []model.DatasetItem{item})
	assert.Error(t, err)

	states := rec.forKey(item.Key())
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.True(t, last.Terminal)
	assert.ErrorIs(t, last.Err, errors.ErrDownloadFailed)
	assert.Equal(t, 1, terminals(states))
}

func TestPreloadCancelledJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	item := model.DatasetItem{DatasetID: "prod", FileID: "swi.tif", Source: "EEA"}

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Refresh().Return(nil)
	cache.EXPECT().Lookup(item.Key()).Return("", false)

	tasks := mocks.NewMockTaskManager(ctrl)
	tasks.EXPECT().RequestDownload(gomock.Any(), item).Return("j1", nil)

	status := mocks.NewMockStatusPoller(ctrl)
	status.EXPECT().ResolveStatus(gomock.Any(), gomock.Any()).Return(model.StatusCancelled, "j1", nil)

	rec := &stateRecorder{}
	o := newOrchestrator(tasks, status, mocks.NewMockMerger(ctrl), cache, rec.hooks())

	err := o.Preload(context.Background(), []model.DatasetItem{item})
	assert.Error(t, err)

	states := rec.forKey(item.Key())
	last := states[len(states)-1]
	assert.True(t, last.Terminal)
	assert.ErrorIs(t, last.Err, errors.ErrDownloadFailed)
}

func TestPreloadIsolatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bad := model.DatasetItem{DatasetID: "prod", FileID: "bad.tif", Source: "EEA"}
	good := model.DatasetItem{DatasetID: "prod", FileID: "good.tif", Source: "EEA"}
	cacheRoot := t.TempDir()
	goodStaging := filepath.Join(cacheRoot, StagingDirName, good.Key())

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Root().Return(cacheRoot).AnyTimes()
	cache.EXPECT().Refresh().Return(nil).Times(2)
	cache.EXPECT().Lookup(bad.Key()).Return("", false)
	cache.EXPECT().Lookup(good.Key()).Return("", false)

	tasks := mocks.NewMockTaskManager(ctrl)
	tasks.EXPECT().RequestDownload(gomock.Any(), bad).Return("", errors.ErrUnsupportedSource)
	tasks.EXPECT().RequestDownload(gomock.Any(), good).Return("j2", nil)
	tasks.EXPECT().DownloadURL(gomock.Any(), "j2").Return("http://payload", int64(10), nil)
	tasks.EXPECT().DownloadAndExtract(gomock.Any(), "http://payload", goodStaging).
		Return([]string{"a.tif"}, nil)

	status := mocks.NewMockStatusPoller(ctrl)
	status.EXPECT().ResolveStatus(gomock.Any(), gomock.Any()).Return(model.StatusComplete, "j2", nil)

	merger := mocks.NewMockMerger(ctrl)
	merger.EXPECT().MergeDir(gomock.Any(), good.Key(), goodStaging).Return(nil)

	rec := &stateRecorder{}
	o := newOrchestrator(tasks, status, merger, cache, rec.hooks())

	err := o.Preload(context.Background(), []model.DatasetItem{bad, good})
	assert.Error(t, err)

	badStates := rec.forKey(bad.Key())
	require.Len(t, badStates, 1)
	assert.True(t, badStates[0].Terminal)
	assert.ErrorIs(t, badStates[0].Err, errors.ErrUnsupportedSource)

	goodStates := rec.forKey(good.Key())
	require.Len(t, goodStates, 4)
	assert.True(t, goodStates[3].Terminal)
	assert.NoError(t, goodStates[3].Err)
}

func TestPreloadRefreshError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Refresh().Return(os.ErrPermission)

	o := newOrchestrator(
		mocks.NewMockTaskManager(ctrl),
		mocks.NewMockStatusPoller(ctrl),
		mocks.NewMockMerger(ctrl),
		cache,
		Hooks{},
	)

	err := o.Preload(context.Background(), []model.DatasetItem{{DatasetID: "p", FileID: "f", Source: "EEA"}})
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	staging := filepath.Join(cacheRoot, StagingDirName, "prod|swi.tif")
	require.NoError(t, os.MkdirAll(staging, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "leftover.tif"), []byte("x"), 0o644))

	cache := mocks.NewMockCacheLookup(ctrl)
	cache.EXPECT().Root().Return(cacheRoot).AnyTimes()

	o := newOrchestrator(
		mocks.NewMockTaskManager(ctrl),
		mocks.NewMockStatusPoller(ctrl),
		mocks.NewMockMerger(ctrl),
		cache,
		Hooks{},
	)

	require.NoError(t, o.Close())

	_, err := os.Stat(filepath.Join(cacheRoot, StagingDirName))
	assert.True(t, os.IsNotExist(err))

	// Finished artifacts outside the staging area survive.
	_, err = os.Stat(cacheRoot)
	assert.NoError(t, err)
}
