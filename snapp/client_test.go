package snapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		TimeoutSeconds: 2,
	})
}

func TestSendOTPPostsFormWithFingerprint(t *testing.T) {
	var gotPath, gotCellphone, gotUDID, gotClient string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUDID = r.URL.Query().Get("UDID")
		gotClient = r.URL.Query().Get("client")
		require.NoError(t, r.ParseForm())
		gotCellphone = r.PostFormValue("cellphone")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SendOTP(context.Background(), "09123456789")
	require.NoError(t, err)
	assert.Equal(t, otpPath, gotPath)
	assert.Equal(t, "09123456789", gotCellphone)
	assert.Equal(t, "WEBSITE", gotClient)
	assert.NotEmpty(t, gotUDID)
}

func TestSendOTPFreshUDIDPerCall(t *testing.T) {
	udids := make([]string, 0, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		udids = append(udids, r.URL.Query().Get("UDID"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.SendOTP(context.Background(), "09123456789"))
	require.NoError(t, c.SendOTP(context.Background(), "09123456789"))
	require.Len(t, udids, 2)
	assert.NotEqual(t, udids[0], udids[1])
}

func TestSendOTPNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SendOTP(context.Background(), "09123456789")
	assert.Error(t, err)
}

func TestVerifyOTPExtractsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, loginPath, r.URL.Path)
		assert.Equal(t, "09123456789", r.PostFormValue("cellphone"))
		assert.Equal(t, "54321", r.PostFormValue("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"oauth2_token":{"access_token":"abc"}}}`))
	}))
	defer srv.Close()

	tok, err := newTestClient(srv.URL).VerifyOTP(context.Background(), "09123456789", "54321")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, "abc", tok.AccessToken)
}

func TestVerifyOTPMissingTokenIsErrNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).VerifyOTP(context.Background(), "09123456789", "54321")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestVerifyOTPTransportErrorIsNotErrNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).VerifyOTP(context.Background(), "09123456789", "54321")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestActiveVouchersSendsBearerAndParses(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, vouchersPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"vouchers":[
			{"title":"t1","customer_code":"C1","description":"d1","expired_at":"2026-01-01"},
			{"title":"t2","customer_code":"C2","description":"d2","expired_at":"2026-02-01"}
		]}}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).ActiveVouchers(context.Background(), TokenInfo{TokenType: "bearer", AccessToken: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
	require.Len(t, got, 2)
	assert.Equal(t, "C1", got[0].Code)
	assert.Equal(t, "t2", got[1].Title)
}

func TestActiveVouchersEmptyListIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"vouchers":[]}}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).ActiveVouchers(context.Background(), TokenInfo{AccessToken: "abc"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
