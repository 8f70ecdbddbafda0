// Package sentry wires optional error tracking. A missing DSN disables the
// integration without failing startup.
package sentry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	sentrygo "github.com/getsentry/sentry-go"

	"github.com/farhoodi/voucherbot/core/buildinfo"
	coreconfig "github.com/farhoodi/voucherbot/core/config"
	"github.com/farhoodi/voucherbot/core/logger"
	"log/slog"
)

var enabled atomic.Bool

// Init configures the Sentry client when a DSN is present.
func Init(cfg coreconfig.SentryConfig) error {
	if cfg.DSN == "" {
		logger.Info(context.Background(), "sentry", "sentry.init",
			slog.String("status", "skip"),
		)
		return nil
	}

	rate := cfg.TracesSampleRate
	if rate == 0 {
		rate = 1.0
	}
	err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          buildinfo.Version,
		TracesSampleRate: rate,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled.Store(true)
	logger.Info(context.Background(), "sentry", "sentry.init",
		slog.String("status", "ok"),
	)
	return nil
}

// Enabled reports whether a Sentry client is active.
func Enabled() bool {
	return enabled.Load()
}

// CaptureError forwards an error to Sentry when the integration is active.
func CaptureError(err error) {
	if err == nil || !enabled.Load() {
		return
	}
	sentrygo.CaptureException(err)
}

// Flush drains pending events; called on shutdown.
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentrygo.Flush(timeout)
}
