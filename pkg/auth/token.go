package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
)

// jwtGrantType is the OAuth2 grant used by the token endpoint.
const jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionTTL is the validity window claimed by the signed assertion.
const assertionTTL = time.Hour

// refreshMargin is how long before expiry a cached token is considered stale.
const refreshMargin = time.Minute

// Credentials is a service-account credential export as downloaded from the
// remote portal.
type Credentials struct {
	ClientID   string `json:"client_id"`
	UserID     string `json:"user_id"`
	TokenURI   string `json:"token_uri"`
	PrivateKey string `json:"private_key"`
}

// LoadCredentials reads and validates a credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrMissingCredentials, "no credentials path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read credentials file %s", path)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrap(errors.ErrMissingCredentials, err.Error())
	}
	if creds.ClientID == "" || creds.UserID == "" || creds.TokenURI == "" || creds.PrivateKey == "" {
		return nil, errors.ErrMissingCredentials
	}
	return &creds, nil
}

// JWTTokenSource exchanges a signed JWT assertion for a bearer token and
// caches it until shortly before expiry.
type JWTTokenSource struct {
	creds  *Credentials
	key    *rsa.PrivateKey
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTTokenSource builds a token source from the given credentials.
// The private key must be a PEM-encoded RSA key.
func NewJWTTokenSource(creds *Credentials, timeout time.Duration) (*JWTTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, errors.Wrap(errors.ErrMissingCredentials, err.Error())
	}
	return &JWTTokenSource{
		creds:  creds,
		key:    key,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}, nil
}

// Token returns the cached token while it is valid, refreshing otherwise.
func (ts *JWTTokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.token != "" && ts.now().Before(ts.expires.Add(-refreshMargin)) {
		token := ts.token
		ts.mu.Unlock()
		return token, nil
	}
	ts.mu.Unlock()
	return ts.Refresh(ctx)
}

// Refresh obtains a fresh token from the token endpoint and caches it.
func (ts *JWTTokenSource) Refresh(ctx context.Context) (string, error) {
	assertion, err := ts.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrTokenRequest, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(errors.ErrTokenRequest, "token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(errors.ErrTokenRequest, err.Error())
	}
	if body.AccessToken == "" {
		return "", errors.Wrap(errors.ErrTokenRequest, "token endpoint returned no access_token")
	}

	ts.mu.Lock()
	ts.token = body.AccessToken
	ts.expires = ts.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	ts.mu.Unlock()

	logger.Debug("access token refreshed", logger.Fields{"expires_in": body.ExpiresIn})
	return body.AccessToken, nil
}

// signAssertion builds the RS256-signed JWT grant for the token endpoint.
func (ts *JWTTokenSource) signAssertion() (string, error) {
	now := ts.now()
	claims := jwt.MapClaims{
		"iss": ts.creds.ClientID,
		"sub": ts.creds.UserID,
		"aud": ts.creds.TokenURI,
		"iat": now.Unix(),
		"exp": now.Add(assertionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token assertion")
	}
	return signed, nil
}
