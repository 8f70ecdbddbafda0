package bot

import (
	"github.com/farhoodi/voucherbot/core/logger"
	coresentry "github.com/farhoodi/voucherbot/core/sentry"
	tghelpers "github.com/farhoodi/voucherbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// handleMessage feeds every update through the state machine. The bridge
// always produces a reply; its error return is internal and only feeds
// logging and error tracking, never the acknowledgment to Telegram.
func (a *App) handleMessage(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	reply, err := a.bridge.HandleInbound(ctx, chat.ID, c.Text())
	if err != nil {
		logger.Warn(ctx, "bridge", "inbound",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chat.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		coresentry.CaptureError(err)
	}
	if reply == "" {
		return nil
	}
	return tghelpers.SendText(c, reply)
}
