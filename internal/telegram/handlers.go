package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
	"github.com/manicko/mko-birth-reminder-bot/internal/operator"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

func (r *Router) showStart(chatID int64) {
	r.sendWithKeyboard(chatID, textSelectOption, inlineKeyboard(r.menus.Start))
}

func (r *Router) showRecordMenu(chatID int64, text string) {
	r.sendWithKeyboard(chatID, text, inlineKeyboard(r.menus.AddRecord))
}

// --- Commands ---

func (r *Router) handleStart(ctx context.Context, userID, chatID int64) {
	if err := r.op.Init(ctx, userID); err != nil {
		if errors.Is(err, operator.ErrUsersLimit) {
			r.sendText(chatID, textUsersLimit)
			return
		}
		r.log.Error("init subscriber failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, operator.MsgUnexpected)
		return
	}
	r.sessions.Reset(userID)
	r.showStart(chatID)
}

func (r *Router) handleLookahead(ctx context.Context, userID, chatID int64, args string) {
	if strings.TrimSpace(args) == "" {
		r.sendText(chatID, textLookaheadUsage)
		return
	}
	r.sendText(chatID, r.op.SetLookahead(ctx, userID, args))
}

// --- Callbacks ---

func (r *Router) handleCallback(ctx context.Context, userID, chatID int64, a Action) {
	switch a {
	case ActionAddRecord:
		r.sessions.Start(userID, StateAddRecord)
		r.showRecordMenu(chatID, textSelectField)

	case ActionUpdateRecord:
		r.sessions.Start(userID, StateUpdateRecord)
		r.sendText(chatID, textEnterID)

	case ActionDeleteRecord:
		r.sessions.Start(userID, StateDeleteRecord)
		r.sendText(chatID, textEnterID)

	case ActionImportCSV:
		r.sessions.Start(userID, StateImportCSV)
		r.sendText(chatID, r.msgs.HelpImport)

	case ActionExportCSV:
		r.sessions.Start(userID, StateExportCSV)
		r.exportCSV(ctx, userID, chatID)
		r.sessions.Reset(userID)

	case ActionDeleteAllRecords:
		r.sessions.Start(userID, StateDeleteAllRecords)
		r.sendText(chatID, r.op.FlushData(ctx, userID))
		r.sessions.Reset(userID)

	case ActionDeleteUser:
		r.sessions.Start(userID, StateDeleteUser)
		r.sendText(chatID, r.op.DeleteSubscriber(ctx, userID))
		r.sessions.Reset(userID)
		r.throttle.Forget(userID)

	case ActionUpcoming:
		r.sessions.Start(userID, StateUpcoming)
		r.sendText(chatID, r.op.Upcoming(ctx, userID))
		r.sessions.Reset(userID)

	case ActionConfirm:
		r.confirm(ctx, userID, chatID)

	case ActionBackToStart:
		r.sessions.Reset(userID)
		r.showStart(chatID)

	default:
		f, ok := domain.ParseField(string(a))
		if !ok {
			r.log.Warn("unknown callback", zap.String("data", string(a)), zap.Int64("user_id", userID))
			return
		}
		r.askField(userID, chatID, f)
	}
}

// askField starts waiting for a field value when a record menu is active.
func (r *Router) askField(userID, chatID int64, f domain.Field) {
	sess := r.sessions.Get(userID)
	switch {
	case sess.State == StateAddRecord:
	case sess.State == StateUpdateRecord && sess.RecordID != "":
	default:
		r.sendText(chatID, textDefault)
		return
	}
	r.sessions.Update(userID, func(s *Session) { s.Awaiting = f })
	r.sendText(chatID, fieldPrompt(r.menus.AddRecord, f))
}

func (r *Router) confirm(ctx context.Context, userID, chatID int64) {
	sess := r.sessions.Get(userID)
	switch sess.State {
	case StateAddRecord:
		if _, ok := sess.Params[domain.FieldBirthDate]; !ok {
			r.sendText(chatID, missingFieldText(r.menus.AddRecord, domain.FieldBirthDate))
			r.askField(userID, chatID, domain.FieldBirthDate)
			return
		}
		r.sendText(chatID, r.op.AddRecord(ctx, userID, sess.Params))

	case StateUpdateRecord:
		if sess.RecordID == "" {
			r.sendText(chatID, textEnterID)
			return
		}
		if len(sess.Params) == 0 {
			r.sendText(chatID, textNothingEntered)
		} else {
			r.sendText(chatID, r.op.UpdateRecordByID(ctx, userID, sess.RecordID, sess.Params))
		}

	default:
		r.sendText(chatID, textDefault)
		return
	}
	r.sessions.Reset(userID)
	r.showStart(chatID)
}

// --- Free-form text ---

func (r *Router) handleText(ctx context.Context, userID, chatID int64, text string) {
	sess := r.sessions.Get(userID)
	switch sess.State {
	case StateAddRecord, StateUpdateRecord:
		if sess.State == StateUpdateRecord && sess.RecordID == "" {
			r.loadRecordForUpdate(ctx, userID, chatID, text)
			return
		}
		if sess.Awaiting == "" {
			r.showRecordMenu(chatID, textSelectField)
			return
		}
		var params map[domain.Field]string
		r.sessions.Update(userID, func(s *Session) {
			s.Params[s.Awaiting] = text
			s.Awaiting = ""
			params = s.clone().Params
		})
		r.showRecordMenu(chatID, enteredText(params))

	case StateDeleteRecord:
		if _, err := domain.ParseRecordID(text); err != nil {
			r.sendText(chatID, operator.Describe(err))
			return
		}
		r.sendText(chatID, r.op.DeleteRecordByID(ctx, userID, text))
		r.sessions.Reset(userID)
		r.showStart(chatID)

	case StateImportCSV:
		r.sendText(chatID, textNoFile)

	case StateImporting:
		r.sendText(chatID, textImportRunning)

	default:
		r.sendText(chatID, textDefault)
	}
}

func (r *Router) loadRecordForUpdate(ctx context.Context, userID, chatID int64, text string) {
	rec, err := r.op.GetRecordByID(ctx, userID, text)
	if err != nil {
		r.sendText(chatID, operator.Describe(err))
		return
	}
	rid := fmt.Sprint(rec.ID)
	r.sessions.Update(userID, func(s *Session) { s.RecordID = rid })
	r.sendText(chatID, recordText(*rec))
	r.showRecordMenu(chatID, textSelectField)
}

// --- CSV files ---

func (r *Router) handleDocument(ctx context.Context, userID int64, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch r.sessions.Get(userID).State {
	case StateImportCSV:
	case StateImporting:
		r.sendText(chatID, textImportRunning)
		return
	default:
		r.sendText(chatID, textDefault)
		return
	}
	doc := msg.Document
	if !isCSV(doc) {
		r.sendText(chatID, textNotCSV)
		return
	}

	r.sessions.Update(userID, func(s *Session) { s.State = StateImporting })
	r.background(func() { r.importDocument(ctx, userID, chatID, doc) })
}

// importDocument downloads and imports an uploaded file off the update loop.
func (r *Router) importDocument(ctx context.Context, userID, chatID int64, doc *tgbotapi.Document) {
	path := r.op.UploadPath()
	if err := r.download(ctx, doc.FileID, path); err != nil {
		r.log.Error("download failed", zap.Int64("user_id", userID), zap.String("file", doc.FileName), zap.Error(err))
		r.sendText(chatID, operator.MsgUnexpected)
		r.sessions.Update(userID, func(s *Session) { s.State = StateImportCSV })
		return
	}
	r.sendText(chatID, textFileSaved)
	r.sendText(chatID, r.op.ImportData(ctx, userID, path))
	r.sessions.Reset(userID)
	r.showStart(chatID)
}

func isCSV(doc *tgbotapi.Document) bool {
	if doc.MimeType == "text/csv" {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.FileName), ".csv")
}

func (r *Router) download(ctx context.Context, fileID, dest string) error {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}

func (r *Router) exportCSV(ctx context.Context, userID, chatID int64) {
	path, err := r.op.ExportData(ctx, userID)
	if err != nil {
		r.log.Error("export failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, textExportFailed)
		return
	}
	defer r.op.RemoveTmpFile(path)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = textExportCaption
	if _, err := r.bot.Send(doc); err != nil {
		r.log.Error("send export failed", zap.Int64("user_id", userID), zap.Error(err))
		r.sendText(chatID, textExportFailed)
	}
}
