// Package jobs queries the remote job-status endpoint and reduces the flat
// list of historical download jobs for a dataset key into one definitive
// status using priority and recency rules.
package jobs

import (
	"context"
	"time"

	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/auth"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/httpclient"
	"github.com/xcube-dev/clmsfetch/pkg/model"
)

// DefaultExpiry is how long a finished job's download link stays usable
// after finalization.
const DefaultExpiry = 24 * time.Hour

// Matcher selects jobs either by explicit job id or by dataset/file pair.
// JobID wins when both are set.
type Matcher struct {
	JobID     string
	DatasetID string
	FileID    string
}

// ForJob builds a matcher for an explicit job id.
func ForJob(jobID string) Matcher {
	return Matcher{JobID: jobID}
}

// ForItem builds a matcher for a dataset/file pair.
func ForItem(item model.DatasetItem) Matcher {
	return Matcher{DatasetID: item.DatasetID, FileID: item.FileID}
}

func (m Matcher) matches(job model.DownloadJob) bool {
	if m.JobID != "" {
		return job.ID == m.JobID
	}
	return job.DatasetID == m.DatasetID && job.FileID == m.FileID
}

// Wire shapes of the status endpoint. The endpoint returns a mapping of
// job id to record.
type statusRecord struct {
	Status               string       `json:"Status"`
	Datasets             []datasetRef `json:"Datasets"`
	FinalizationDateTime int64        `json:"FinalizationDateTime"`
	DownloadURL          string       `json:"DownloadURL"`
	FileSize             int64        `json:"FileSize"`
}

type datasetRef struct {
	DatasetID string `json:"DatasetID"`
	FileID    string `json:"FileID"`
}

// Tracker resolves the definitive status of download jobs by polling the
// remote status endpoint.
type Tracker struct {
	statusURL string
	http      *httpclient.Client
	tokens    auth.TokenSource
	expiry    time.Duration
	now       func() time.Time
}

// NewTracker creates a tracker against the given status endpoint.
func NewTracker(statusURL string, client *httpclient.Client, tokens auth.TokenSource) *Tracker {
	return &Tracker{
		statusURL: statusURL,
		http:      client,
		tokens:    tokens,
		expiry:    DefaultExpiry,
		now:       time.Now,
	}
}

// ResolveStatus fetches all historical jobs for the account, filters them
// with the matcher and reduces them to a single status and job id.
func (t *Tracker) ResolveStatus(ctx context.Context, m Matcher) (model.Status, string, error) {
	jobs, err := t.fetch(ctx)
	if err != nil {
		return model.StatusUndefined, "", err
	}
	status, jobID := Reduce(jobs, m, t.now(), t.expiry)
	logger.Debug("resolved job status", logger.Fields{
		"job_id": jobID,
		"status": status.String(),
	})
	return status, jobID, nil
}

// Result returns the download URL and file size for a finished job. A job
// that is not finished yet fails with ErrNotReady; a finished job whose
// record lacks the URL or size fields yields an empty sentinel result,
// which callers must check for.
func (t *Tracker) Result(ctx context.Context, jobID string) (string, int64, error) {
	jobs, err := t.fetch(ctx)
	if err != nil {
		return "", 0, err
	}
	for _, job := range jobs {
		if job.ID != jobID {
			continue
		}
		if job.State != model.JobFinished {
			return "", 0, errors.Wrapf(errors.ErrNotReady, "job %s is %s", jobID, job.State)
		}
		if job.ResultURL == "" || job.FileSize == 0 {
			logger.Warn("finished job carries no download link", logger.Fields{"job_id": jobID})
			return "", 0, nil
		}
		return job.ResultURL, job.FileSize, nil
	}
	return "", 0, errors.Wrapf(errors.ErrNotReady, "job %s not listed by status endpoint", jobID)
}

// fetch retrieves all job records for the account in one request.
// Transport retry lives in the HTTP client; a response that does not
// decode is a protocol error.
func (t *Tracker) fetch(ctx context.Context) ([]model.DownloadJob, error) {
	token, err := t.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	var records map[string]statusRecord
	if err := t.http.GetJSON(ctx, t.statusURL, auth.BearerAuth{Token: token}, &records); err != nil {
		return nil, err
	}

	jobs := make([]model.DownloadJob, 0, len(records))
	for id, rec := range records {
		job := model.DownloadJob{
			ID:        id,
			State:     model.JobState(rec.Status),
			ResultURL: rec.DownloadURL,
			FileSize:  rec.FileSize,
		}
		if rec.FinalizationDateTime > 0 {
			job.FinalizedAt = time.UnixMilli(rec.FinalizationDateTime).UTC()
		}
		if len(rec.Datasets) > 0 {
			job.DatasetID = rec.Datasets[0].DatasetID
			job.FileID = rec.Datasets[0].FileID
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Reduce folds matching jobs into one definitive status:
//
//  1. finished jobs outrank pending jobs, which outrank cancelled jobs;
//  2. among finished and cancelled jobs only the most recently finalized
//     entry counts (timestamps on pending jobs carry no dependable meaning);
//  3. a finished job older than the expiry window is treated as absent and
//     the reduction falls through to the next class;
//  4. no matching job at all yields StatusUndefined with an empty id.
func Reduce(jobs []model.DownloadJob, m Matcher, now time.Time, expiry time.Duration) (model.Status, string) {
	var finished, cancelled *model.DownloadJob
	pendingID := ""

	for i := range jobs {
		job := jobs[i]
		if !m.matches(job) {
			continue
		}
		switch job.State {
		case model.JobFinished:
			if job.Expired(now, expiry) {
				continue
			}
			if finished == nil || job.FinalizedAt.After(finished.FinalizedAt) {
				finished = &jobs[i]
			}
		case model.JobQueued, model.JobInProgress:
			pendingID = job.ID
		case model.JobCancelled:
			if cancelled == nil || job.FinalizedAt.After(cancelled.FinalizedAt) {
				cancelled = &jobs[i]
			}
		}
	}

	switch {
	case finished != nil:
		return model.StatusComplete, finished.ID
	case pendingID != "":
		return model.StatusPending, pendingID
	case cancelled != nil:
		return model.StatusCancelled, cancelled.ID
	default:
		return model.StatusUndefined, ""
	}
}
