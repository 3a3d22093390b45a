package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcube-dev/clmsfetch/pkg/auth"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
)

func fastOptions() Options {
	opts := DefaultOptions()
	opts.RetryAttempts = 2
	opts.RetryBackoff = time.Millisecond
	opts.RetryMaxBackoff = 5 * time.Millisecond
	return opts
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer server.Close()

	c := NewClient(fastOptions())
	var out struct {
		Value int `json:"value"`
	}
	err := c.GetJSON(context.Background(), server.URL, auth.BearerAuth{Token: "tok"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
}

func TestGetJSONRejectsTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer server.Close()

	c := NewClient(fastOptions())
	var out map[string]any
	err := c.GetJSON(context.Background(), server.URL, nil, &out)
	assert.ErrorIs(t, err, errors.ErrProtocol)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(fastOptions())
	var out map[string]any
	err := c.GetJSON(context.Background(), server.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(fastOptions())
	err := c.GetJSON(context.Background(), server.URL, nil, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"Datasets":[{"DatasetID":"d1","FileID":"f1"}]}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"TaskIds":[{"TaskID":"t1"}]}`))
	}))
	defer server.Close()

	type datasetRef struct {
		DatasetID string `json:"DatasetID"`
		FileID    string `json:"FileID"`
	}
	reqBody := map[string][]datasetRef{"Datasets": {{DatasetID: "d1", FileID: "f1"}}}

	c := NewClient(fastOptions())
	var out struct {
		TaskIds []struct {
			TaskID string `json:"TaskID"`
		} `json:"TaskIds"`
	}
	err := c.PostJSON(context.Background(), server.URL, nil, reqBody, &out)
	require.NoError(t, err)
	require.Len(t, out.TaskIds, 1)
	assert.Equal(t, "t1", out.TaskIds[0].TaskID)
}

func TestGetStream(t *testing.T) {
	payload := []byte("raster bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	c := NewClient(fastOptions())
	body, size, err := c.GetStream(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int64(len(payload)), size)
}

func TestGetStreamStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(fastOptions())
	_, _, err := c.GetStream(context.Background(), server.URL, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
