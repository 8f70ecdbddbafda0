// Package bridge is the conversation state machine. It interprets each
// inbound message either as a command or as the continuation of a pending
// operation, drives the login and fetch work, and composes the reply.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farhoodi/voucherbot/core/logger"
	"github.com/farhoodi/voucherbot/core/telegram/state"
	"github.com/farhoodi/voucherbot/snapp"

	"log/slog"
)

// OTPClient is the inline login path against the third-party site.
type OTPClient interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (snapp.TokenInfo, error)
	ActiveVouchers(ctx context.Context, token snapp.TokenInfo) ([]snapp.Voucher, error)
}

// Dispatcher is the remote executor path.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, params map[string]any) (string, error)
}

// AccountStore persists credentials keyed by phone.
type AccountStore interface {
	Upsert(ctx context.Context, phone string, token snapp.TokenInfo) error
	Get(ctx context.Context, phone string) (snapp.TokenInfo, bool, error)
}

// VoucherStore persists fetched vouchers with insert-or-skip semantics.
type VoucherStore interface {
	SaveNew(ctx context.Context, phone string, entries []snapp.Voucher) (int, error)
}

// Options wires the state machine to its collaborators. Worker takes
// precedence over OTP when both are set: the bot then acts purely as a
// dispatcher.
type Options struct {
	OTP      OTPClient
	Worker   Dispatcher
	Accounts AccountStore
	Vouchers VoucherStore
	Pending  state.Manager

	// DefaultService is used when /add carries no service argument.
	DefaultService string
	// Services lists the accepted service identifiers.
	Services []string
}

// Service is the orchestrator behind every inbound message.
type Service struct {
	otp      OTPClient
	worker   Dispatcher
	accounts AccountStore
	vouchers VoucherStore
	pending  state.Manager
	locks    *chatLocks

	defaultService string
	services       map[string]struct{}
}

// New builds the state machine. Pending defaults to an in-memory manager.
func New(opts Options) *Service {
	pending := opts.Pending
	if pending == nil {
		pending = state.NewMemoryManager()
	}
	def := strings.ToLower(strings.TrimSpace(opts.DefaultService))
	if def == "" {
		def = "snappfood"
	}
	services := make(map[string]struct{}, len(opts.Services)+1)
	services[def] = struct{}{}
	for _, s := range opts.Services {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			services[s] = struct{}{}
		}
	}
	return &Service{
		otp:            opts.OTP,
		worker:         opts.Worker,
		accounts:       opts.Accounts,
		vouchers:       opts.Vouchers,
		pending:        pending,
		locks:          newChatLocks(),
		defaultService: def,
		services:       services,
	}
}

// Pending exposes the pending-state table for routing decisions.
func (s *Service) Pending() state.Manager {
	return s.pending
}

// HandleInbound processes one message and returns the reply for the chat.
// The reply is always non-empty; the error is the internal channel for
// logging and error tracking and never replaces the reply.
func (s *Service) HandleInbound(ctx context.Context, chatID int64, text string) (string, error) {
	mu := s.locks.get(chatID)
	mu.Lock()
	defer mu.Unlock()

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return s.handleCommand(ctx, chatID, text)
	}
	return s.handleFollowUp(ctx, chatID, text)
}

func (s *Service) handleCommand(ctx context.Context, chatID int64, text string) (string, error) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		return replyHelp, nil
	case "/add":
		return s.handleAdd(ctx, chatID, args)
	case "/check":
		return s.handleCheck(ctx, chatID, args)
	default:
		return replyFallback, nil
	}
}

// handleAdd starts the OTP flow. Pending state is only set once the OTP send
// succeeded; a failed send must leave the chat with nothing pending.
func (s *Service) handleAdd(ctx context.Context, chatID int64, args []string) (string, error) {
	var service, phone string
	switch len(args) {
	case 1:
		service, phone = s.defaultService, args[0]
	case 2:
		service, phone = strings.ToLower(args[0]), args[1]
	default:
		return replyAddUsage, nil
	}
	if _, ok := s.services[service]; !ok {
		return replyUnknownService(service), nil
	}
	phone = normalizePhone(phone)

	var err error
	if s.worker != nil {
		_, err = s.worker.Dispatch(ctx, "send_otp", map[string]any{
			"service": service,
			"phone":   phone,
		})
	} else {
		err = s.otp.SendOTP(ctx, phone)
	}
	if err != nil {
		logger.Warn(ctx, "bridge", "add",
			slog.String("outcome", "otp_send_failed"),
			slog.Int64("chat_id", chatID),
			slog.String("phone", phone),
			slog.String("err", err.Error()),
		)
		return replyOTPSendFailed, fmt.Errorf("bridge: otp send for %s: %w", phone, err)
	}

	s.pending.Set(chatID, state.Pending{
		Step:    state.StepAwaitingOTP,
		Service: service,
		Phone:   phone,
	})
	logger.Info(ctx, "bridge", "add",
		slog.String("outcome", "awaiting_otp"),
		slog.Int64("chat_id", chatID),
		slog.String("service", service),
		slog.String("phone", phone),
	)
	return replyOTPPrompt(phone), nil
}

// handleFollowUp treats the message as the OTP for the chat's pending
// operation. The pending entry is consumed before the verify call so a
// duplicate message can never re-submit the same step.
func (s *Service) handleFollowUp(ctx context.Context, chatID int64, text string) (string, error) {
	p, ok := s.pending.Take(chatID)
	if !ok || text == "" {
		return replyFallback, nil
	}

	if s.worker != nil {
		result, err := s.worker.Dispatch(ctx, "login", map[string]any{
			"service": p.Service,
			"phone":   p.Phone,
			"otp":     text,
			"chat_id": chatID,
		})
		if err != nil {
			return replyLoginFailed(p.Phone), fmt.Errorf("bridge: worker login for %s: %w", p.Phone, err)
		}
		return result, nil
	}

	token, err := s.otp.VerifyOTP(ctx, p.Phone, text)
	if err != nil {
		if errors.Is(err, snapp.ErrNoToken) {
			return replyNoTokenField, fmt.Errorf("bridge: verify for %s: %w", p.Phone, err)
		}
		return replyLoginFailed(p.Phone), fmt.Errorf("bridge: verify for %s: %w", p.Phone, err)
	}

	if err := s.accounts.Upsert(ctx, p.Phone, token); err != nil {
		return replyLoginNotSaved(p.Phone), fmt.Errorf("bridge: save credential for %s: %w", p.Phone, err)
	}

	logger.Info(ctx, "bridge", "login",
		slog.String("outcome", "ok"),
		slog.Int64("chat_id", chatID),
		slog.String("service", p.Service),
		slog.String("phone", p.Phone),
	)
	return replyLoginOK(p.Phone), nil
}

// handleCheck fetches vouchers for an already-added account.
func (s *Service) handleCheck(ctx context.Context, chatID int64, args []string) (string, error) {
	if len(args) < 1 {
		return replyCheckUsage, nil
	}
	phone := normalizePhone(args[0])

	if s.worker != nil {
		result, err := s.worker.Dispatch(ctx, "fetch_vouchers", map[string]any{
			"service": s.defaultService,
			"phone":   phone,
			"chat_id": chatID,
		})
		if err != nil {
			return replyFetchFailed(phone), fmt.Errorf("bridge: worker fetch for %s: %w", phone, err)
		}
		return result, nil
	}

	token, found, err := s.accounts.Get(ctx, phone)
	if err != nil {
		return replyFetchFailed(phone), fmt.Errorf("bridge: load credential for %s: %w", phone, err)
	}
	if !found {
		return replyAddFirst(phone), nil
	}

	entries, err := s.otp.ActiveVouchers(ctx, token)
	if err != nil {
		return replyFetchFailed(phone), fmt.Errorf("bridge: fetch vouchers for %s: %w", phone, err)
	}
	if len(entries) == 0 {
		return replyNoVouchers(phone), nil
	}

	saved, err := s.vouchers.SaveNew(ctx, phone, entries)
	if err != nil {
		return replyFetchFailed(phone), fmt.Errorf("bridge: save vouchers for %s: %w", phone, err)
	}

	logger.Info(ctx, "bridge", "check",
		slog.String("outcome", "ok"),
		slog.Int64("chat_id", chatID),
		slog.String("phone", phone),
		slog.Int("vouchers_new", saved),
		slog.Int("vouchers_seen", len(entries)-saved),
	)
	if saved == 0 {
		return replyNothingNew(phone, len(entries)), nil
	}
	return replyVouchersSaved(phone, saved), nil
}

// normalizePhone ensures the national leading zero.
func normalizePhone(phone string) string {
	if !strings.HasPrefix(phone, "0") {
		return "0" + phone
	}
	return phone
}
