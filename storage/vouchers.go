package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/farhoodi/voucherbot/core/logger"
	"github.com/farhoodi/voucherbot/snapp"

	"log/slog"
)

// Vouchers persists fetched vouchers, skipping codes already on record.
type Vouchers struct {
	db *sqlx.DB
}

// NewVouchers binds the store to a database handle.
func NewVouchers(db *sqlx.DB) *Vouchers {
	return &Vouchers{db: db}
}

// SaveNew inserts each voucher independently and returns how many were
// actually new. A conflict on the code column is a skip, not an error.
func (s *Vouchers) SaveNew(ctx context.Context, phone string, entries []snapp.Voucher) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	query := s.db.Rebind(`
		INSERT INTO snappfood_vouchers (phone_number, title, code, description, expired_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`)

	saved := 0
	for _, v := range entries {
		res, err := s.db.ExecContext(ctx, query, phone, v.Title, v.Code, v.Description, v.ExpiredAt)
		if err != nil {
			return saved, fmt.Errorf("vouchers: insert %s: %w", v.Code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return saved, fmt.Errorf("vouchers: rows affected for %s: %w", v.Code, err)
		}
		if n > 0 {
			saved++
		}
	}

	logger.Info(ctx, "store.vouchers", "save",
		slog.String("status", "ok"),
		slog.String("phone", phone),
		slog.Int("vouchers_new", saved),
		slog.Int("vouchers_seen", len(entries)-saved),
	)
	return saved, nil
}
