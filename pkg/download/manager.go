// Package download submits dataset download requests to the remote
// service and turns the resulting zip payloads into staged raster tiles.
package download

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/archive"
	"github.com/xcube-dev/clmsfetch/pkg/auth"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/fsutil"
	"github.com/xcube-dev/clmsfetch/pkg/httpclient"
	"github.com/xcube-dev/clmsfetch/pkg/jobs"
	"github.com/xcube-dev/clmsfetch/pkg/model"
	"github.com/xcube-dev/clmsfetch/pkg/raster"
)

// streamChunkSize is the buffer size for streaming payloads to disk.
const streamChunkSize = 1 << 20

// resultsDir is the archive directory holding the payload of a finished
// job. The service wraps the actual data zip inside an outer zip under
// this directory.
const resultsDir = "Results"

// DefaultRetryAttempts bounds payload download retries.
const DefaultRetryAttempts = 7

// DefaultRetryDelay is the initial delay between payload download
// attempts; it doubles per attempt.
const DefaultRetryDelay = time.Second

// defaultSources lists the dataset sources the service can package for
// download.
var defaultSources = []string{"EEA"}

// Wire shapes of the download request endpoint.
type requestBody struct {
	Datasets []datasetSpec `json:"Datasets"`
}

type datasetSpec struct {
	DatasetID string `json:"DatasetID"`
	FileID    string `json:"FileID"`
}

type requestResponse struct {
	TaskIDs []taskRef `json:"TaskIds"`
}

type taskRef struct {
	TaskID string `json:"TaskID"`
}

// Manager submits download jobs and fetches their payloads.
type Manager struct {
	requestURL string
	http       *httpclient.Client
	tokens     auth.TokenSource
	resolver   JobResolver
	walker     *archive.Walker
	sources    []string

	retryAttempts int
	retryDelay    time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithSources overrides the accepted dataset sources.
func WithSources(sources []string) Option {
	return func(m *Manager) { m.sources = sources }
}

// WithRetry overrides the payload retry policy.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		m.retryAttempts = attempts
		m.retryDelay = delay
	}
}

// NewManager creates a download manager against the given request endpoint.
func NewManager(requestURL string, client *httpclient.Client, tokens auth.TokenSource, resolver JobResolver, opts ...Option) *Manager {
	m := &Manager{
		requestURL:    requestURL,
		http:          client,
		tokens:        tokens,
		resolver:      resolver,
		walker:        archive.NewWalker(),
		sources:       defaultSources,
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequestDownload submits a download job for the dataset item and returns
// the job id. Submission is idempotent: when the job history already
// carries a finished or pending job for the item, its id is returned and
// nothing is submitted.
func (m *Manager) RequestDownload(ctx context.Context, item model.DatasetItem) (string, error) {
	if !m.sourceAllowed(item.Source) {
		return "", errors.Wrapf(errors.ErrUnsupportedSource, "source %q of %s cannot be packaged for download", item.Source, item.Key())
	}

	status, jobID, err := m.resolver.ResolveStatus(ctx, jobs.ForItem(item))
	if err != nil {
		return "", err
	}
	if status == model.StatusComplete || status == model.StatusPending {
		logger.Info("download job already exists, skipping submission", logger.Fields{
			"key":    item.Key(),
			"job_id": jobID,
			"status": status.String(),
		})
		return jobID, nil
	}

	return m.submit(ctx, item)
}

// submit posts the download request. The service accepts batches but is
// asked for one dataset at a time, so anything but exactly one task id in
// the response breaks the exchange contract.
func (m *Manager) submit(ctx context.Context, item model.DatasetItem) (string, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	body := requestBody{Datasets: []datasetSpec{{DatasetID: item.DatasetID, FileID: item.FileID}}}
	var resp requestResponse
	if err := m.http.PostJSON(ctx, m.requestURL, auth.BearerAuth{Token: token}, body, &resp); err != nil {
		return "", errors.Wrapf(err, "failed to submit download request for %s", item.Key())
	}

	if len(resp.TaskIDs) != 1 {
		return "", errors.Wrapf(errors.ErrProtocol, "expected exactly one task id for %s, got %d", item.Key(), len(resp.TaskIDs))
	}

	jobID := resp.TaskIDs[0].TaskID
	logger.Info("download job submitted", logger.Fields{"key": item.Key(), "job_id": jobID})
	return jobID, nil
}

// DownloadURL returns the payload URL and size of a finished job.
func (m *Manager) DownloadURL(ctx context.Context, jobID string) (string, int64, error) {
	return m.resolver.Result(ctx, jobID)
}

// DownloadAndExtract fetches the payload zip behind url and stages its
// raster files into stagingDir. The payload is an outer zip whose Results
// directory holds exactly one inner data zip; any other shape leaves
// nothing staged. Returns the staged file paths.
func (m *Manager) DownloadAndExtract(ctx context.Context, url, stagingDir string) ([]string, error) {
	if err := fsutil.EnsureDir(stagingDir); err != nil {
		return nil, errors.Wrapf(err, "failed to create staging directory %s", stagingDir)
	}

	outer, err := os.CreateTemp("", "payload-*.zip")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create payload temp file")
	}
	outerPath := outer.Name()
	_ = outer.Close()
	defer func() { _ = os.Remove(outerPath) }()

	if err := m.DownloadFile(ctx, url, outerPath); err != nil {
		return nil, err
	}

	innerPath, err := m.stageInner(ctx, outerPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(innerPath) }()

	files, err := m.walker.ExtractMatching(ctx, innerPath, stagingDir, raster.Extensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(errors.ErrNoFilesFound, "payload %s holds no raster files", url)
	}

	logger.Info("payload staged", logger.Fields{"files": len(files), "dir": stagingDir})
	return files, nil
}

// stageInner locates the single data zip under the Results directory of
// the outer payload and copies it to a temp file. Zero or several inner
// zips mean the payload cannot be interpreted.
func (m *Manager) stageInner(ctx context.Context, outerPath string) (string, error) {
	inner, err := m.walker.FindEntries(ctx, outerPath, func(path string) bool {
		return strings.EqualFold(filepath.Ext(path), ".zip") && underResults(path)
	})
	if err != nil {
		return "", err
	}
	if len(inner) != 1 {
		logger.Warn("payload does not hold exactly one data archive, nothing extracted", logger.Fields{"archives": len(inner)})
		return "", errors.Wrapf(errors.ErrNoFilesFound, "expected one data archive in payload, found %d", len(inner))
	}

	tmp, err := os.CreateTemp("", "data-*.zip")
	if err != nil {
		return "", errors.Wrap(err, "failed to create data temp file")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := m.walker.ExtractEntry(ctx, outerPath, inner[0], tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

// DownloadFile streams the payload behind url to destPath, retrying
// transient failures with a doubling delay. Client errors such as a
// missing or forbidden resource fail immediately.
func (m *Manager) DownloadFile(ctx context.Context, url, destPath string) error {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	delay := m.retryDelay
	for attempt := 1; attempt <= m.retryAttempts; attempt++ {
		if attempt > 1 {
			logger.Debug("retrying payload download", logger.Fields{"attempt": attempt, "url": url})
			if err := m.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}

		err := m.fetchOnce(ctx, url, token, destPath)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return errors.Wrapf(err, "failed to download %s", url)
		}
		lastErr = err
	}
	return errors.Wrapf(errors.ErrDownloadFailed, "giving up on %s after %d attempts: %v", url, m.retryAttempts, lastErr)
}

// fetchOnce performs one streaming download attempt.
func (m *Manager) fetchOnce(ctx context.Context, url, token, destPath string) error {
	body, size, err := m.http.GetStream(ctx, url, auth.BearerAuth{Token: token})
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	dst, err := fsutil.CreateFilePerm(destPath, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", destPath)
	}

	written, err := io.CopyBuffer(dst, body, make([]byte, streamChunkSize))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to stream payload to %s", destPath)
	}

	logger.Debug("payload downloaded", logger.Fields{"bytes": written, "expected": size, "file": destPath})
	return nil
}

func (m *Manager) sourceAllowed(source string) bool {
	for _, s := range m.sources {
		if strings.EqualFold(s, source) {
			return true
		}
	}
	return false
}

// retryable reports whether a download attempt is worth repeating.
func retryable(err error) bool {
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return false
	case stderrors.Is(err, httpclient.ErrNotFound),
		stderrors.Is(err, httpclient.ErrForbidden),
		stderrors.Is(err, httpclient.ErrUnauthorized):
		return false
	default:
		return true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// underResults reports whether the archive member sits below the Results
// directory.
func underResults(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.EqualFold(part, resultsDir) {
			return true
		}
	}
	return false
}
