// Package testutil provides a fake remote dataset service for integration
// tests: download request submission, job status polling and payload
// delivery, backed by an httptest server.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// jobRecord is one download job tracked by the fake service.
type jobRecord struct {
	datasetID    string
	fileID       string
	status       string
	pollsLeft    int
	finalizedAt  time.Time
	downloadPath string
}

// JobServer is a fake remote dataset service. Submitted jobs start out
// queued and finish after a configurable number of status polls.
type JobServer struct {
	srv *httptest.Server

	mu            sync.Mutex
	jobs          map[string]*jobRecord
	payload       []byte
	pollsToFinish int
	nextID        int
}

// NewJobServer starts a fake service that is shut down with the test.
func NewJobServer(t *testing.T) *JobServer {
	t.Helper()

	s := &JobServer{
		jobs:          make(map[string]*jobRecord),
		pollsToFinish: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/request", s.handleRequest)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/download/", s.handleDownload)

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// RequestURL returns the submission endpoint.
func (s *JobServer) RequestURL() string { return s.srv.URL + "/request" }

// StatusURL returns the status endpoint.
func (s *JobServer) StatusURL() string { return s.srv.URL + "/status" }

// SetPayload sets the bytes served for every finished job.
func (s *JobServer) SetPayload(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = data
}

// SetPollsUntilFinished controls how many status polls a job stays
// pending before it finishes.
func (s *JobServer) SetPollsUntilFinished(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollsToFinish = n
}

// Submissions returns the number of jobs created so far.
func (s *JobServer) Submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

func (s *JobServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Datasets []struct {
			DatasetID string `json:"DatasetID"`
			FileID    string `json:"FileID"`
		} `json:"Datasets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Datasets) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("task-%d", s.nextID)
	s.jobs[id] = &jobRecord{
		datasetID:    body.Datasets[0].DatasetID,
		fileID:       body.Datasets[0].FileID,
		status:       "Queued",
		pollsLeft:    s.pollsToFinish,
		downloadPath: "/download/" + id,
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"TaskIds": []map[string]string{{"TaskID": id}},
	})
}

func (s *JobServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	records := make(map[string]any, len(s.jobs))
	for id, job := range s.jobs {
		if job.status != "Finished_ok" {
			job.pollsLeft--
			if job.pollsLeft <= 0 {
				job.status = "Finished_ok"
				job.finalizedAt = time.Now()
			} else {
				job.status = "In_progress"
			}
		}

		rec := map[string]any{
			"Status": job.status,
			"Datasets": []map[string]string{
				{"DatasetID": job.datasetID, "FileID": job.fileID},
			},
		}
		if job.status == "Finished_ok" {
			rec["FinalizationDateTime"] = job.finalizedAt.UnixMilli()
			rec["DownloadURL"] = s.srv.URL + job.downloadPath
			rec["FileSize"] = len(s.payload)
		}
		records[id] = rec
	}
	s.mu.Unlock()

	writeJSON(w, records)
}

func (s *JobServer) handleDownload(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	payload := s.payload
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/zip")
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
