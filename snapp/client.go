package snapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/farhoodi/voucherbot/core/logger"

	"log/slog"
)

// ErrNoToken reports a login response that parsed fine but carried no access
// token. It is distinct from transport failures so callers can word the reply
// accordingly.
var ErrNoToken = errors.New("snapp: no access token in login response")

const (
	otpPath      = "/mobile/v4/user/loginMobileWithNoPass"
	loginPath    = "/mobile/v2/user/loginMobileWithToken"
	vouchersPath = "/mobile/v2/user/activeVouchers"
)

// Client talks to the Snappfood endpoints. It is stateless; every call uses a
// short-lived HTTP client and a fresh device identifier.
type Client struct {
	cfg Config
}

// NewClient builds a Client with defaults applied.
func NewClient(cfg Config) *Client {
	cfg.Normalize()
	return &Client{cfg: cfg}
}

// SendOTP asks the upstream to text an OTP to the given phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	start := time.Now()
	form := url.Values{"cellphone": {phone}}
	resp, err := c.postForm(ctx, otpPath, form)
	if err != nil {
		logger.Warn(ctx, "snapp", "otp.send",
			slog.String("status", "fail"),
			slog.String("phone", phone),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("snapp: otp send status %s", resp.Status)
		logger.Warn(ctx, "snapp", "otp.send",
			slog.String("status", "fail"),
			slog.String("phone", phone),
			slog.String("err", err.Error()),
		)
		return err
	}

	logger.Info(ctx, "snapp", "otp.send",
		slog.String("status", "ok"),
		slog.String("phone", phone),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// VerifyOTP exchanges an OTP code for a credential.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (TokenInfo, error) {
	start := time.Now()
	form := url.Values{
		"cellphone": {phone},
		"code":      {code},
	}
	resp, err := c.postForm(ctx, loginPath, form)
	if err != nil {
		return TokenInfo{}, err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenInfo{}, fmt.Errorf("snapp: login status %s", resp.Status)
	}

	var body struct {
		Data struct {
			OAuth2Token struct {
				AccessToken string `json:"access_token"`
			} `json:"oauth2_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return TokenInfo{}, fmt.Errorf("snapp: login response decode: %w", err)
	}

	token := body.Data.OAuth2Token.AccessToken
	if token == "" {
		logger.Warn(ctx, "snapp", "otp.verify",
			slog.String("status", "fail"),
			slog.String("phone", phone),
			slog.String("err", ErrNoToken.Error()),
		)
		return TokenInfo{}, ErrNoToken
	}

	logger.Info(ctx, "snapp", "otp.verify",
		slog.String("status", "ok"),
		slog.String("phone", phone),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return TokenInfo{TokenType: "bearer", AccessToken: token}, nil
}

// ActiveVouchers lists the vouchers currently active for the credential.
// Zero vouchers is an empty slice, not an error.
func (c *Client) ActiveVouchers(ctx context.Context, token TokenInfo) ([]Voucher, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+vouchersPath+"?"+c.fingerprint().Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("snapp: vouchers request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapp: vouchers fetch: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("snapp: vouchers status %s", resp.Status)
	}

	var body struct {
		Data struct {
			Vouchers []Voucher `json:"vouchers"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("snapp: vouchers response decode: %w", err)
	}

	logger.Info(ctx, "snapp", "vouchers.fetch",
		slog.String("status", "ok"),
		slog.Int("count", len(body.Data.Vouchers)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return body.Data.Vouchers, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	endpoint := c.cfg.BaseURL + path + "?" + c.fingerprint().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("snapp: request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapp: request: %w", err)
	}
	return resp, nil
}

// fingerprint builds the fixed query parameter set with a fresh UDID.
func (c *Client) fingerprint() url.Values {
	return url.Values{
		"lat":            {c.cfg.Latitude},
		"long":           {c.cfg.Longitude},
		"optionalClient": {c.cfg.ClientName},
		"client":         {c.cfg.ClientName},
		"deviceType":     {c.cfg.ClientName},
		"appVersion":     {c.cfg.AppVersion},
		"UDID":           {uuid.NewString()},
	}
}

// httpClient returns a client scoped to a single call.
func (c *Client) httpClient() *http.Client {
	return &http.Client{Timeout: time.Duration(c.cfg.TimeoutSeconds) * time.Second}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
