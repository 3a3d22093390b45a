package download

import (
	"context"

	"github.com/xcube-dev/clmsfetch/pkg/jobs"
	"github.com/xcube-dev/clmsfetch/pkg/model"
)

//go:generate mockgen -destination=./mocks/download.go -package=mocks . JobResolver

// JobResolver answers status questions about download jobs. Satisfied by
// jobs.Tracker.
type JobResolver interface {
	// ResolveStatus reduces the account's job history for the matcher to
	// one definitive status and job id.
	ResolveStatus(ctx context.Context, m jobs.Matcher) (model.Status, string, error)

	// Result returns the download URL and file size of a finished job.
	// A finished job without a usable link yields ("", 0, nil).
	Result(ctx context.Context, jobID string) (string, int64, error)
}
