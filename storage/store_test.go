package storage

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/farhoodi/voucherbot/snapp"
)

const testSchema = `
CREATE TABLE snappfood_tokens (
	id INTEGER PRIMARY KEY,
	phone_number VARCHAR(20) UNIQUE NOT NULL,
	token_info TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE snappfood_vouchers (
	id INTEGER PRIMARY KEY,
	phone_number VARCHAR(20) NOT NULL,
	title VARCHAR(255),
	code VARCHAR(100) UNIQUE,
	description TEXT,
	expired_at VARCHAR(100),
	fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// concurrent access to one in-memory handle is not under test here
	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func TestAccountsUpsertLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccounts(db)
	ctx := context.Background()

	require.NoError(t, accounts.Upsert(ctx, "09123456789", snapp.TokenInfo{TokenType: "bearer", AccessToken: "t1"}))
	require.NoError(t, accounts.Upsert(ctx, "09123456789", snapp.TokenInfo{TokenType: "bearer", AccessToken: "t2"}))

	var rows int
	require.NoError(t, db.Get(&rows, `SELECT COUNT(*) FROM snappfood_tokens WHERE phone_number = '09123456789'`))
	assert.Equal(t, 1, rows)

	token, found, err := accounts.Get(ctx, "09123456789")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "t2", token.AccessToken)
}

func TestAccountsGetAbsentIsNotError(t *testing.T) {
	accounts := NewAccounts(newTestDB(t))

	_, found, err := accounts.Get(context.Background(), "09990000000")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAccountsIsolatedPerPhone(t *testing.T) {
	accounts := NewAccounts(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, accounts.Upsert(ctx, "09111111111", snapp.TokenInfo{AccessToken: "a"}))
	require.NoError(t, accounts.Upsert(ctx, "09222222222", snapp.TokenInfo{AccessToken: "b"}))

	token, found, err := accounts.Get(ctx, "09111111111")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", token.AccessToken)
}

func TestVouchersSaveNewCountsOnlyInserts(t *testing.T) {
	vouchers := NewVouchers(newTestDB(t))
	ctx := context.Background()

	first := []snapp.Voucher{
		{Title: "t1", Code: "C1", Description: "d1", ExpiredAt: "2026-01-01"},
		{Title: "t2", Code: "C2", Description: "d2", ExpiredAt: "2026-02-01"},
	}
	n, err := vouchers.SaveNew(ctx, "09123456789", first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second := []snapp.Voucher{
		{Title: "t2", Code: "C2"},
		{Title: "t3", Code: "C3"},
		{Title: "t4", Code: "C4"},
	}
	n, err = vouchers.SaveNew(ctx, "09123456789", second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVouchersCodeUniqueAcrossPhones(t *testing.T) {
	vouchers := NewVouchers(newTestDB(t))
	ctx := context.Background()

	n, err := vouchers.SaveNew(ctx, "09111111111", []snapp.Voucher{{Title: "t", Code: "SHARED"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = vouchers.SaveNew(ctx, "09222222222", []snapp.Voucher{{Title: "t", Code: "SHARED"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestVouchersSaveNewEmptyInput(t *testing.T) {
	vouchers := NewVouchers(newTestDB(t))

	n, err := vouchers.SaveNew(context.Background(), "09123456789", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
