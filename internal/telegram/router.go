package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/metrics"
	"github.com/manicko/mko-birth-reminder-bot/internal/operator"
)

// BotAPI is the subset of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Router wires Telegram updates to handlers and holds the conversations.
type Router struct {
	bot      BotAPI
	log      *zap.Logger
	op       *operator.Operator
	sessions *Sessions
	throttle *Throttler
	menus    config.Menus
	msgs     config.Messages
	http     *http.Client

	jobs sync.WaitGroup // imports running off the update loop
}

// NewRouter creates a new Telegram router.
func NewRouter(bot BotAPI, log *zap.Logger, op *operator.Operator, cfg config.Telegram, msgs config.Messages) *Router {
	return &Router{
		bot:      bot,
		log:      log.Named("telegram"),
		op:       op,
		sessions: NewSessions(cfg.SessionTTL),
		throttle: NewThrottler(cfg.Throttle),
		menus:    cfg.Menu,
		msgs:     msgs,
		http:     &http.Client{Timeout: time.Minute},
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		userID := senderID(msg.From, msg.Chat)
		metrics.Updates.WithLabelValues(kindText).Inc()
		if !r.throttle.Allow(userID, kindText) {
			metrics.Throttled.WithLabelValues(kindText).Inc()
			r.sendText(msg.Chat.ID, textThrottled)
			return
		}
		if msg.Document != nil {
			r.handleDocument(ctx, userID, msg)
			return
		}

		text := strings.TrimSpace(msg.Text)
		switch {
		case msg.IsCommand() && msg.Command() == "start":
			r.handleStart(ctx, userID, msg.Chat.ID)
		case msg.IsCommand() && msg.Command() == "help":
			r.sendText(msg.Chat.ID, r.msgs.Help)
		case msg.IsCommand() && msg.Command() == "lookahead":
			r.handleLookahead(ctx, userID, msg.Chat.ID, msg.CommandArguments())
		default:
			r.handleText(ctx, userID, msg.Chat.ID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil || cb.From == nil {
			return
		}
		metrics.Updates.WithLabelValues(kindCallback).Inc()
		if !r.throttle.Allow(cb.From.ID, kindCallback) {
			metrics.Throttled.WithLabelValues(kindCallback).Inc()
			_, _ = r.bot.Request(tgbotapi.NewCallbackWithAlert(cb.ID, textThrottled))
			return
		}
		_ = r.answerCallback(cb.ID, "")
		r.handleCallback(ctx, cb.From.ID, cb.Message.Chat.ID, Action(cb.Data))
	}
}

// SendMessage sends an HTML message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := r.bot.Send(msg)
	return err
}

// Sweep forgets idle conversations and rate limiters that have refilled.
func (r *Router) Sweep() {
	if n := r.sessions.Sweep(); n > 0 {
		r.log.Debug("sessions expired", zap.Int("count", n))
	}
	if n := r.throttle.Prune(); n > 0 {
		r.log.Debug("rate limiters pruned", zap.Int("count", n))
	}
}

// Wait blocks until background imports finish or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) background(fn func()) {
	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		fn()
	}()
}

func senderID(from *tgbotapi.User, chat *tgbotapi.Chat) int64 {
	if from != nil {
		return from.ID
	}
	return chat.ID
}
