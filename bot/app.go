package bot

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/farhoodi/voucherbot/bridge"
	"github.com/farhoodi/voucherbot/core/bootstrap"
	coretelegram "github.com/farhoodi/voucherbot/core/telegram"
	"github.com/farhoodi/voucherbot/core/telegram/commands"
	"github.com/farhoodi/voucherbot/core/telegram/router"
	"github.com/farhoodi/voucherbot/snapp"
	"github.com/farhoodi/voucherbot/storage"
	"github.com/farhoodi/voucherbot/worker"
)

// App holds the wired application.
type App struct {
	cfg    *Config
	db     *sqlx.DB
	bridge *bridge.Service
}

// Bootstrap initializes logger, error tracking, database, and migrations,
// then wires the state machine to its collaborators.
func Bootstrap(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	opts := bridge.Options{
		Accounts: storage.NewAccounts(res.DB),
		Vouchers: storage.NewVouchers(res.DB),
		Services: cfg.Services,
	}
	if cfg.Worker.Enabled() {
		opts.Worker = worker.NewClient(cfg.Worker)
	} else {
		opts.OTP = snapp.NewClient(cfg.Snapp)
	}

	return &App{
		cfg:    cfg,
		db:     res.DB,
		bridge: bridge.New(opts),
	}, nil
}

// TelegramRunOptions assembles the bot runtime: commands, text routing for
// pending OTP replies, and the shared middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleMessage,
		Description: "Show usage help",
	})
	reg.RegisterCommand("/add", commands.Command{
		Handler:     a.handleMessage,
		Description: "Add a Snappfood account (starts the OTP flow)",
		Aliases:     []string{"/login"},
	})
	reg.RegisterCommand("/check", commands.Command{
		Handler:     a.handleMessage,
		Description: "Fetch new vouchers for a phone",
	})
	reg.SetTextFallback(a.handleMessage)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.bridge.Pending(), reg, router.TextOptions{
		PendingReply: a.handleMessage,
	})...)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
