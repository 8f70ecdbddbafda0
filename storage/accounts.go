// Package storage owns the two durable tables: one token record per phone,
// and fetched vouchers deduplicated by code. Nothing else writes them.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/farhoodi/voucherbot/core/logger"
	"github.com/farhoodi/voucherbot/snapp"

	"log/slog"
)

// Accounts persists one credential per phone number, last write wins.
type Accounts struct {
	db *sqlx.DB
}

// NewAccounts binds the store to a database handle.
func NewAccounts(db *sqlx.DB) *Accounts {
	return &Accounts{db: db}
}

// Upsert inserts the credential or replaces the existing one for the phone.
func (s *Accounts) Upsert(ctx context.Context, phone string, token snapp.TokenInfo) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("accounts: encode token: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO snappfood_tokens (phone_number, token_info)
		VALUES (?, ?)
		ON CONFLICT (phone_number)
		DO UPDATE SET token_info = excluded.token_info, updated_at = CURRENT_TIMESTAMP`)

	if _, err := s.db.ExecContext(ctx, query, phone, payload); err != nil {
		logger.Warn(ctx, "store.accounts", "upsert",
			slog.String("status", "fail"),
			slog.String("phone", phone),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("accounts: upsert %s: %w", phone, err)
	}

	logger.Info(ctx, "store.accounts", "upsert",
		slog.String("status", "ok"),
		slog.String("phone", phone),
	)
	return nil
}

// Get returns the stored credential for the phone. A missing row is reported
// through the boolean, not as an error.
func (s *Accounts) Get(ctx context.Context, phone string) (snapp.TokenInfo, bool, error) {
	query := s.db.Rebind(`SELECT token_info FROM snappfood_tokens WHERE phone_number = ?`)

	var payload []byte
	err := s.db.QueryRowxContext(ctx, query, phone).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return snapp.TokenInfo{}, false, nil
	}
	if err != nil {
		return snapp.TokenInfo{}, false, fmt.Errorf("accounts: get %s: %w", phone, err)
	}

	var token snapp.TokenInfo
	if err := json.Unmarshal(payload, &token); err != nil {
		return snapp.TokenInfo{}, false, fmt.Errorf("accounts: decode token for %s: %w", phone, err)
	}
	return token, true, nil
}
