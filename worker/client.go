// Package worker forwards structured tasks to a remote executor over HTTP.
// The bot acts as a dispatcher; the worker does the actual login and scraping.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farhoodi/voucherbot/core/logger"

	"log/slog"
)

// Config locates the worker and carries its shared secret.
type Config struct {
	BaseURL        string `yaml:"base_url" envconfig:"WORKER_URL"`
	APIKey         string `yaml:"api_key" envconfig:"WORKER_API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"WORKER_TIMEOUT_SECONDS"`
}

// Enabled reports whether a worker endpoint is configured at all.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

type taskRequest struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// taskResponse is the canonical result contract. Older workers reply with a
// bare result field and no status; those are treated as ok.
type taskResponse struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// Client dispatches one task at a time, single attempt, bounded wait.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a Client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 90
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Dispatch sends the task and returns the worker's textual result. Transport
// failures, non-2xx statuses, malformed bodies, and explicit error statuses
// all come back as errors; the caller decides what they mean for state.
func (c *Client) Dispatch(ctx context.Context, command string, params map[string]any) (string, error) {
	start := time.Now()

	body, err := json.Marshal(taskRequest{Command: command, Params: params})
	if err != nil {
		return "", fmt.Errorf("worker: encode task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("worker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, "worker", "dispatch",
			slog.String("status", "fail"),
			slog.String("task", command),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("worker: dispatch %s: %w", command, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn(ctx, "worker", "dispatch",
			slog.String("status", "fail"),
			slog.String("task", command),
			slog.String("err", resp.Status),
		)
		return "", fmt.Errorf("worker: dispatch %s: status %s", command, resp.Status)
	}

	var out taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("worker: decode result for %s: %w", command, err)
	}

	switch strings.ToLower(strings.TrimSpace(out.Status)) {
	case "", "ok":
	case "error":
		msg := out.Result
		if msg == "" {
			msg = "worker reported an error with no detail"
		}
		logger.Warn(ctx, "worker", "dispatch",
			slog.String("status", "fail"),
			slog.String("task", command),
			slog.String("err", msg),
		)
		return "", fmt.Errorf("worker: task %s failed: %s", command, msg)
	default:
		return "", fmt.Errorf("worker: task %s returned unknown status %q", command, out.Status)
	}

	if out.Result == "" {
		return "", fmt.Errorf("worker: task %s returned no result", command)
	}

	logger.Info(ctx, "worker", "dispatch",
		slog.String("status", "ok"),
		slog.String("task", command),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return out.Result, nil
}
