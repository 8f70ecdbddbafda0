package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhoodi/voucherbot/core/telegram/state"
	"github.com/farhoodi/voucherbot/snapp"
)

type fakeOTP struct {
	mu sync.Mutex

	sendErr   error
	sendCalls []string

	verifyToken snapp.TokenInfo
	verifyErr   error
	verifyCalls int

	vouchers    []snapp.Voucher
	vouchersErr error
	fetchCalls  int
}

func (f *fakeOTP) SendOTP(ctx context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, phone)
	return f.sendErr
}

func (f *fakeOTP) VerifyOTP(ctx context.Context, phone, code string) (snapp.TokenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return snapp.TokenInfo{}, f.verifyErr
	}
	return f.verifyToken, nil
}

func (f *fakeOTP) ActiveVouchers(ctx context.Context, token snapp.TokenInfo) ([]snapp.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.vouchers, f.vouchersErr
}

type fakeAccounts struct {
	mu        sync.Mutex
	tokens    map[string]snapp.TokenInfo
	upsertErr error
	getErr    error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{tokens: make(map[string]snapp.TokenInfo)}
}

func (f *fakeAccounts) Upsert(ctx context.Context, phone string, token snapp.TokenInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.tokens[phone] = token
	return nil
}

func (f *fakeAccounts) Get(ctx context.Context, phone string) (snapp.TokenInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return snapp.TokenInfo{}, false, f.getErr
	}
	t, ok := f.tokens[phone]
	return t, ok, nil
}

type fakeVouchers struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	saveErr error
}

func newFakeVouchers() *fakeVouchers {
	return &fakeVouchers{seen: make(map[string]struct{})}
}

func (f *fakeVouchers) SaveNew(ctx context.Context, phone string, entries []snapp.Voucher) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	saved := 0
	for _, v := range entries {
		if _, dup := f.seen[v.Code]; dup {
			continue
		}
		f.seen[v.Code] = struct{}{}
		saved++
	}
	return saved, nil
}

type dispatched struct {
	command string
	params  map[string]any
}

type fakeWorker struct {
	mu     sync.Mutex
	result string
	err    error
	calls  []dispatched
}

func (f *fakeWorker) Dispatch(ctx context.Context, command string, params map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatched{command: command, params: params})
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fixture struct {
	svc      *Service
	otp      *fakeOTP
	accounts *fakeAccounts
	vouchers *fakeVouchers
}

func newInlineFixture() *fixture {
	otp := &fakeOTP{}
	accounts := newFakeAccounts()
	vouchers := newFakeVouchers()
	svc := New(Options{
		OTP:      otp,
		Accounts: accounts,
		Vouchers: vouchers,
	})
	return &fixture{svc: svc, otp: otp, accounts: accounts, vouchers: vouchers}
}

const chat = int64(1001)

func TestStartReturnsHelp(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "/start")
	require.NoError(t, err)
	assert.Equal(t, replyHelp, reply)
	assert.Empty(t, f.otp.sendCalls)
}

func TestAddWithoutArgsIsUsage(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "/add")
	require.NoError(t, err)
	assert.Equal(t, replyAddUsage, reply)
	_, pending := f.svc.Pending().Peek(chat)
	assert.False(t, pending)
}

func TestAddSetsPendingAndPrompts(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyOTPPrompt("09123456789"), reply)

	p, ok := f.svc.Pending().Peek(chat)
	require.True(t, ok)
	assert.Equal(t, state.StepAwaitingOTP, p.Step)
	assert.Equal(t, "09123456789", p.Phone)
	assert.Equal(t, "snappfood", p.Service)
}

func TestAddNormalizesPhone(t *testing.T) {
	f := newInlineFixture()
	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 9123456789")
	require.NoError(t, err)
	require.Equal(t, []string{"09123456789"}, f.otp.sendCalls)

	p, ok := f.svc.Pending().Peek(chat)
	require.True(t, ok)
	assert.Equal(t, "09123456789", p.Phone)
}

func TestAddOverwritesPriorPending(t *testing.T) {
	f := newInlineFixture()
	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09111111111")
	require.NoError(t, err)
	_, err = f.svc.HandleInbound(context.Background(), chat, "/add 09222222222")
	require.NoError(t, err)

	p, ok := f.svc.Pending().Peek(chat)
	require.True(t, ok)
	assert.Equal(t, "09222222222", p.Phone)
}

func TestAddFailedSendLeavesNoPending(t *testing.T) {
	f := newInlineFixture()
	f.otp.sendErr = errors.New("upstream down")

	reply, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.Error(t, err)
	assert.Equal(t, replyOTPSendFailed, reply)

	reply, err = f.svc.HandleInbound(context.Background(), chat, "54321")
	require.NoError(t, err)
	assert.Equal(t, replyFallback, reply)
	assert.Zero(t, f.otp.verifyCalls)
}

func TestAddUnknownServiceRejected(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "/add tapsi 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyUnknownService("tapsi"), reply)
	assert.Empty(t, f.otp.sendCalls)
}

func TestOTPVerifySuccessPersistsAndClears(t *testing.T) {
	f := newInlineFixture()
	f.otp.verifyToken = snapp.TokenInfo{TokenType: "bearer", AccessToken: "abc"}

	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	reply, err := f.svc.HandleInbound(context.Background(), chat, "54321")
	require.NoError(t, err)
	assert.Equal(t, replyLoginOK("09123456789"), reply)

	token, ok, err := f.accounts.Get(context.Background(), "09123456789")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", token.AccessToken)

	_, pending := f.svc.Pending().Peek(chat)
	assert.False(t, pending)
}

func TestOTPConsumedExactlyOnce(t *testing.T) {
	f := newInlineFixture()
	f.otp.verifyToken = snapp.TokenInfo{AccessToken: "abc"}

	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	_, err = f.svc.HandleInbound(context.Background(), chat, "54321")
	require.NoError(t, err)

	reply, err := f.svc.HandleInbound(context.Background(), chat, "54321")
	require.NoError(t, err)
	assert.Equal(t, replyFallback, reply)
	assert.Equal(t, 1, f.otp.verifyCalls)
}

func TestOTPMissingTokenHasDistinctReply(t *testing.T) {
	f := newInlineFixture()
	f.otp.verifyErr = snapp.ErrNoToken

	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	reply, err := f.svc.HandleInbound(context.Background(), chat, "54321")
	require.ErrorIs(t, err, snapp.ErrNoToken)
	assert.Equal(t, replyNoTokenField, reply)
}

func TestOTPVerifyFailureStillClearsPending(t *testing.T) {
	f := newInlineFixture()
	f.otp.verifyErr = errors.New("boom")

	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	reply, err := f.svc.HandleInbound(context.Background(), chat, "54321")
	require.Error(t, err)
	assert.Equal(t, replyLoginFailed("09123456789"), reply)

	_, pending := f.svc.Pending().Peek(chat)
	assert.False(t, pending)
}

func TestOTPStoreFailureIsLoud(t *testing.T) {
	f := newInlineFixture()
	f.otp.verifyToken = snapp.TokenInfo{AccessToken: "abc"}
	f.accounts.upsertErr = errors.New("connection refused")

	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	reply, err := f.svc.HandleInbound(context.Background(), chat, "54321")
	require.Error(t, err)
	assert.Equal(t, replyLoginNotSaved("09123456789"), reply)
}

func TestConcurrentOTPMessagesVerifyOnce(t *testing.T) {
	f := newInlineFixture()
	f.otp.verifyToken = snapp.TokenInfo{AccessToken: "abc"}

	_, err := f.svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	var wg sync.WaitGroup
	replies := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _ := f.svc.HandleInbound(context.Background(), chat, "54321")
			replies[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.otp.verifyCalls)
	assert.ElementsMatch(t, []string{replyLoginOK("09123456789"), replyFallback}, replies)
}

func TestCheckWithoutCredentialIsInformational(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyAddFirst("09123456789"), reply)
	assert.Zero(t, f.otp.fetchCalls)
}

func TestCheckReportsOnlyNewVouchers(t *testing.T) {
	f := newInlineFixture()
	require.NoError(t, f.accounts.Upsert(context.Background(), "09123456789", snapp.TokenInfo{AccessToken: "abc"}))
	_, err := f.vouchers.SaveNew(context.Background(), "09123456789", []snapp.Voucher{{Code: "C1"}})
	require.NoError(t, err)

	f.otp.vouchers = []snapp.Voucher{
		{Title: "t1", Code: "C1"},
		{Title: "t2", Code: "C2"},
		{Title: "t3", Code: "C3"},
	}

	reply, err := f.svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyVouchersSaved("09123456789", 2), reply)
}

func TestCheckDistinguishesEmptyFromNothingNew(t *testing.T) {
	f := newInlineFixture()
	require.NoError(t, f.accounts.Upsert(context.Background(), "09123456789", snapp.TokenInfo{AccessToken: "abc"}))

	reply, err := f.svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyNoVouchers("09123456789"), reply)

	f.otp.vouchers = []snapp.Voucher{{Code: "C1"}, {Code: "C2"}}
	_, err = f.svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.NoError(t, err)

	reply, err = f.svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyNothingNew("09123456789", 2), reply)
}

func TestCheckFetchFailure(t *testing.T) {
	f := newInlineFixture()
	require.NoError(t, f.accounts.Upsert(context.Background(), "09123456789", snapp.TokenInfo{AccessToken: "abc"}))
	f.otp.vouchersErr = errors.New("upstream 502")

	reply, err := f.svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.Error(t, err)
	assert.Equal(t, replyFetchFailed("09123456789"), reply)
}

func TestUnknownTextWithoutPendingIsFallback(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "hello there")
	require.NoError(t, err)
	assert.Equal(t, replyFallback, reply)
}

func TestUnknownCommandIsFallback(t *testing.T) {
	f := newInlineFixture()
	reply, err := f.svc.HandleInbound(context.Background(), chat, "/frobnicate")
	require.NoError(t, err)
	assert.Equal(t, replyFallback, reply)
}

func TestWorkerAddDispatchesSendOTP(t *testing.T) {
	w := &fakeWorker{result: "OTP sent"}
	svc := New(Options{Worker: w})

	reply, err := svc.HandleInbound(context.Background(), chat, "/add snappfood 09123456789")
	require.NoError(t, err)
	assert.Equal(t, replyOTPPrompt("09123456789"), reply)

	require.Len(t, w.calls, 1)
	assert.Equal(t, "send_otp", w.calls[0].command)
	assert.Equal(t, "snappfood", w.calls[0].params["service"])
	assert.Equal(t, "09123456789", w.calls[0].params["phone"])

	_, pending := svc.Pending().Peek(chat)
	assert.True(t, pending)
}

func TestWorkerAddFailureLeavesNoPending(t *testing.T) {
	w := &fakeWorker{err: errors.New("connect: refused")}
	svc := New(Options{Worker: w})

	reply, err := svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.Error(t, err)
	assert.Equal(t, replyOTPSendFailed, reply)

	_, pending := svc.Pending().Peek(chat)
	assert.False(t, pending)
}

func TestWorkerLoginRelaysResult(t *testing.T) {
	w := &fakeWorker{result: "OTP sent"}
	svc := New(Options{Worker: w})

	_, err := svc.HandleInbound(context.Background(), chat, "/add 09123456789")
	require.NoError(t, err)

	w.result = "✅ snappfood account for 09123456789 added!"
	reply, err := svc.HandleInbound(context.Background(), chat, "54321")
	require.NoError(t, err)
	assert.Equal(t, "✅ snappfood account for 09123456789 added!", reply)

	require.Len(t, w.calls, 2)
	login := w.calls[1]
	assert.Equal(t, "login", login.command)
	assert.Equal(t, "54321", login.params["otp"])
	assert.Equal(t, chat, login.params["chat_id"])

	_, pending := svc.Pending().Peek(chat)
	assert.False(t, pending)
}

func TestWorkerCheckRelaysResult(t *testing.T) {
	w := &fakeWorker{result: "✅ Checked 09123456789: Found and saved 2 new voucher(s)."}
	svc := New(Options{Worker: w})

	reply, err := svc.HandleInbound(context.Background(), chat, "/check 09123456789")
	require.NoError(t, err)
	assert.Equal(t, w.result, reply)

	require.Len(t, w.calls, 1)
	assert.Equal(t, "fetch_vouchers", w.calls[0].command)
}

func TestRepliesAreNeverEmpty(t *testing.T) {
	f := newInlineFixture()
	f.otp.sendErr = errors.New("down")

	for _, text := range []string{"/start", "/add", "/add 0912", "/check", "random", "/nope"} {
		reply, _ := f.svc.HandleInbound(context.Background(), chat, text)
		assert.NotEmpty(t, reply, fmt.Sprintf("text %q", text))
	}
}
