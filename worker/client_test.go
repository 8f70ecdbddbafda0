package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		APIKey:         "secret",
		TimeoutSeconds: 2,
	})
}

func TestDispatchSendsTaskWithAPIKey(t *testing.T) {
	var gotPath, gotKey string
	var gotBody taskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":"OTP sent"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Dispatch(context.Background(), "send_otp", map[string]any{
		"service": "snappfood",
		"phone":   "09123456789",
	})
	require.NoError(t, err)
	assert.Equal(t, "OTP sent", result)
	assert.Equal(t, "/execute", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "send_otp", gotBody.Command)
	assert.Equal(t, "09123456789", gotBody.Params["phone"])
}

func TestDispatchLegacyResultOnlyBodyIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"logged in"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Dispatch(context.Background(), "login", nil)
	require.NoError(t, err)
	assert.Equal(t, "logged in", result)
}

func TestDispatchErrorStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","result":"bad otp"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Dispatch(context.Background(), "login", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad otp")
}

func TestDispatchNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Dispatch(context.Background(), "send_otp", nil)
	assert.Error(t, err)
}

func TestDispatchMalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Dispatch(context.Background(), "send_otp", nil)
	assert.Error(t, err)
}

func TestDispatchTransportFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Dispatch(context.Background(), "send_otp", nil)
	assert.Error(t, err)
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{BaseURL: "  "}.Enabled())
	assert.True(t, Config{BaseURL: "http://worker:8080"}.Enabled())
}
