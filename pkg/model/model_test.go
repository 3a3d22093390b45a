package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		datasetID string
		fileID    string
		ok        bool
	}{
		{name: "valid key", key: "product|file.zip", datasetID: "product", fileID: "file.zip", ok: true},
		{name: "no separator", key: "productfile", ok: false},
		{name: "empty dataset id", key: "|file", ok: false},
		{name: "empty file id", key: "product|", ok: false},
		{name: "empty key", key: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			datasetID, fileID, ok := SplitKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.datasetID, datasetID)
			assert.Equal(t, tt.fileID, fileID)
		})
	}
}

func TestMakeKeyRoundTrip(t *testing.T) {
	key := MakeKey("clms_global_swi", "swi_12.5km_v1.zip")
	datasetID, fileID, ok := SplitKey(key)
	assert.True(t, ok)
	assert.Equal(t, "clms_global_swi", datasetID)
	assert.Equal(t, "swi_12.5km_v1.zip", fileID)
}

func TestJobExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	tests := []struct {
		name    string
		job     DownloadJob
		expired bool
	}{
		{
			name:    "fresh finished job",
			job:     DownloadJob{State: JobFinished, FinalizedAt: now.Add(-time.Hour)},
			expired: false,
		},
		{
			name:    "stale finished job",
			job:     DownloadJob{State: JobFinished, FinalizedAt: now.Add(-25 * time.Hour)},
			expired: true,
		},
		{
			name:    "pending jobs never expire",
			job:     DownloadJob{State: JobInProgress, FinalizedAt: now.Add(-48 * time.Hour)},
			expired: false,
		},
		{
			name:    "terminal without timestamp",
			job:     DownloadJob{State: JobCancelled},
			expired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, tt.job.Expired(now, window))
		})
	}
}
