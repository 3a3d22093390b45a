package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
)

func TestBearerAuthApply(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	require.NoError(t, BearerAuth{Token: "abc123"}.Apply(req))
	assert.Equal(t, "Bearer abc123", req.Header.Get("Authorization"))
	assert.Equal(t, BearerAuthType, BearerAuth{}.Type())
}

func TestHeaderAuthApply(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	h := HeaderAuth{Headers: map[string]string{"X-Api-Key": "k1", "Accept": "application/json"}}
	require.NoError(t, h.Apply(req))
	assert.Equal(t, "k1", req.Header.Get("X-Api-Key"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "creds.json")
		creds := Credentials{ClientID: "cid", UserID: "uid", TokenURI: "https://example.com/token", PrivateKey: testKeyPEM(t)}
		data, err := json.Marshal(creds)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		got, err := LoadCredentials(path)
		require.NoError(t, err)
		assert.Equal(t, "cid", got.ClientID)
	})

	t.Run("missing fields", func(t *testing.T) {
		path := filepath.Join(dir, "partial.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"client_id":"cid"}`), 0o600))

		_, err := LoadCredentials(path)
		assert.ErrorIs(t, err, errors.ErrMissingCredentials)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadCredentials("")
		assert.ErrorIs(t, err, errors.ErrMissingCredentials)
	})
}

func TestJWTTokenSource(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, jwtGrantType, r.FormValue("grant_type"))
		assert.NotEmpty(t, r.FormValue("assertion"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer server.Close()

	creds := &Credentials{ClientID: "cid", UserID: "uid", TokenURI: server.URL, PrivateKey: testKeyPEM(t)}
	ts, err := NewJWTTokenSource(creds, 5*time.Second)
	require.NoError(t, err)

	ctx := context.Background()

	token, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int32(1), calls.Load())

	// Cached token is reused while valid.
	token, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int32(1), calls.Load())

	// Refresh always performs a round trip.
	_, err = ts.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestJWTTokenSourceExpiredTokenRefetches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":30}`))
	}))
	defer server.Close()

	creds := &Credentials{ClientID: "cid", UserID: "uid", TokenURI: server.URL, PrivateKey: testKeyPEM(t)}
	ts, err := NewJWTTokenSource(creds, 5*time.Second)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	_, err = ts.Token(context.Background())
	require.NoError(t, err)

	// Within the refresh margin of expiry the cached token no longer counts.
	now = now.Add(30 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestJWTTokenSourceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := &Credentials{ClientID: "cid", UserID: "uid", TokenURI: server.URL, PrivateKey: testKeyPEM(t)}
	ts, err := NewJWTTokenSource(creds, 5*time.Second)
	require.NoError(t, err)

	_, err = ts.Token(context.Background())
	assert.ErrorIs(t, err, errors.ErrTokenRequest)
}
