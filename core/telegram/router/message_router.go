package router

import (
	"time"

	tg "github.com/farhoodi/voucherbot/core/telegram"
	"github.com/farhoodi/voucherbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// PendingChecker reports whether a chat is mid-conversation.
type PendingChecker interface {
	InProgress(chatID int64) bool
}

// TextOptions controls routing for plain text updates.
type TextOptions struct {
	// PendingReply handles text from chats that owe us a follow-up (an OTP).
	PendingReply tele.HandlerFunc
	// UnknownText handles text that is neither a command nor a follow-up.
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text updates: follow-up replies for
// chats with a pending conversation, command aliases typed as text, then the
// fallback.
func TextRoutes(pending PendingChecker, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if pending != nil && opts.PendingReply != nil {
			chat := c.Chat()
			if chat != nil && pending.InProgress(chat.ID) {
				return handleWithSummary(c, "otp_reply", start, func() error {
					return opts.PendingReply(c)
				})
			}
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
