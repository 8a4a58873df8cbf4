package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/csvio"
	"github.com/manicko/mko-birth-reminder-bot/internal/metrics"
	"github.com/manicko/mko-birth-reminder-bot/internal/operator"
	"github.com/manicko/mko-birth-reminder-bot/internal/scheduler"
	"github.com/manicko/mko-birth-reminder-bot/internal/store"
	"github.com/manicko/mko-birth-reminder-bot/internal/telegram"
)

const sessionSweepInterval = 10 * time.Minute

type App struct {
	cfg        config.Config
	log        *zap.Logger
	bot        *tgbotapi.BotAPI
	httpSrv    *http.Server
	repo       store.Repo
	csv        *csvio.Handler
	router     *telegram.Router
	dispatcher *scheduler.Dispatcher
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = cfg.Telegram.Debug

	a := &App{cfg: cfg, log: log, bot: bot}
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		mux.Handle("/metrics", metrics.Handler())
		a.httpSrv = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      mux,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}
	return a, nil
}

// InitDB creates the database file and applies migrations.
func InitDB(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	repo, err := store.OpenSQLite(ctx, cfg.Database.DSN(), log)
	if err != nil {
		return err
	}
	log.Info("database ready", zap.String("path", cfg.Database.DSN()))
	return repo.Close()
}

func (a *App) Run(ctx context.Context) error {
	metrics.MarkBoot(time.Now())
	a.log.Info("starting birthday reminder bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("home", a.cfg.Home),
		zap.String("http", a.cfg.HTTPAddr),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.Database.DSN(), a.log)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready", zap.String("path", a.cfg.Database.DSN()))

	loc, err := a.cfg.Reminder.Location()
	if err != nil {
		_ = repo.Close()
		return err
	}
	if err := telegram.CheckMenus(a.cfg.Telegram.Menu); err != nil {
		_ = repo.Close()
		return err
	}
	a.csv = csvio.New(a.cfg.CSV, a.log)
	op := operator.New(repo, a.csv, operator.Options{
		RecordsLimit: a.cfg.Database.RecordsLimit,
		UsersLimit:   a.cfg.Database.UsersLimit,
		UpcomingDays: a.cfg.Reminder.UpcomingDays,
		Location:     loc,
	}, a.log)
	a.router = telegram.NewRouter(a.bot, a.log, op, a.cfg.Telegram, a.cfg.Messages)

	a.dispatcher, err = scheduler.New(repo, a.router, a.cfg.Reminder, a.cfg.Database.DefaultNoticeDays, a.log)
	if err != nil {
		_ = repo.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.bot.Request(tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Main menu"},
		tgbotapi.BotCommand{Command: "help", Description: "How to use the bot"},
		tgbotapi.BotCommand{Command: "lookahead", Description: "Days covered by upcoming birthdays"},
	)); err != nil {
		a.log.Warn("set bot commands failed", zap.Error(err))
	}

	if _, err := a.dispatcher.CatchUp(ctx, time.Now()); err != nil {
		a.log.Warn("reminder catch-up failed", zap.Error(err))
	}
	if err := a.dispatcher.Every(sessionSweepInterval, a.router.Sweep); err != nil {
		a.log.Warn("session sweep not scheduled", zap.Error(err))
	}
	if err := a.dispatcher.Start(ctx); err != nil {
		_ = repo.Close()
		return err
	}

	if a.httpSrv != nil {
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server error", zap.Error(err))
			}
		}()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.Telegram.PollTimeout
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) shutdown() {
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.dispatcher.Stop(shCtx)
	a.bot.StopReceivingUpdates()
	if err := a.router.Wait(shCtx); err != nil {
		a.log.Warn("background imports still running", zap.Error(err))
	}

	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
	}
	if err := a.csv.Close(); err != nil {
		a.log.Warn("tmp cleanup failed", zap.Error(err))
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("close sqlite", zap.Error(err))
	}
}
