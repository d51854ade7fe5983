package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusrooms/internal/config"
)

func authConfig(rps float64, burst int) config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "portal-key-1", Name: "portal"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: rps, Burst: burst},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func getWithKey(t *testing.T, url, key string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthAPIKey(t *testing.T) {
	auth := NewHTTPAuth(authConfig(0, 0))
	ts := httptest.NewServer(auth.Wrap(okHandler()))
	defer ts.Close()

	assert.Equal(t, http.StatusUnauthorized, getWithKey(t, ts.URL+"/api/v1/rooms", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, getWithKey(t, ts.URL+"/api/v1/rooms", "wrong-key").StatusCode)
	assert.Equal(t, http.StatusOK, getWithKey(t, ts.URL+"/api/v1/rooms", "portal-key-1").StatusCode)
}

func TestAuthSkipsHealthz(t *testing.T) {
	auth := NewHTTPAuth(authConfig(0, 0))
	ts := httptest.NewServer(auth.Wrap(okHandler()))
	defer ts.Close()

	assert.Equal(t, http.StatusOK, getWithKey(t, ts.URL+"/healthz", "").StatusCode)
}

func TestAuthDisabled(t *testing.T) {
	cfg := authConfig(0, 0)
	cfg.Auth.Enabled = false
	auth := NewHTTPAuth(cfg)
	ts := httptest.NewServer(auth.Wrap(okHandler()))
	defer ts.Close()

	assert.Equal(t, http.StatusOK, getWithKey(t, ts.URL+"/api/v1/rooms", "").StatusCode)
}

func TestRateLimitPerKey(t *testing.T) {
	// 1 rps with burst 2: the third immediate request must be rejected.
	auth := NewHTTPAuth(authConfig(1, 2))
	ts := httptest.NewServer(auth.Wrap(okHandler()))
	defer ts.Close()

	assert.Equal(t, http.StatusOK, getWithKey(t, ts.URL+"/api/v1/rooms", "portal-key-1").StatusCode)
	assert.Equal(t, http.StatusOK, getWithKey(t, ts.URL+"/api/v1/rooms", "portal-key-1").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, getWithKey(t, ts.URL+"/api/v1/rooms", "portal-key-1").StatusCode)
}
