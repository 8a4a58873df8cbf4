package telegram

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

// Action is a callback token carried by an inline button.
type Action string

// Start menu.
const (
	ActionAddRecord        Action = "add_record"
	ActionUpdateRecord     Action = "update_record_by_id"
	ActionDeleteRecord     Action = "delete_record_by_id"
	ActionImportCSV        Action = "import_csv"
	ActionExportCSV        Action = "export_csv"
	ActionDeleteAllRecords Action = "delete_all_records"
	ActionDeleteUser       Action = "delete_user"
	ActionUpcoming         Action = "upcoming"
)

// Record menu, besides the field names.
const (
	ActionConfirm     Action = "confirm_data"
	ActionBackToStart Action = "back_to_start"
)

const (
	textSelectOption   = "Select an option:"
	textSelectField    = "Select a field to enter data:"
	textEnterID        = "Enter the ID of the record."
	textDefault        = "⚠️ Please read /help and use /start command to get the main menu."
	textThrottled      = "⏳ Too many actions! Please wait a moment."
	textDateFormat     = "\nFormat: dd/mm/yyyy (e.g. 01/03/2000)"
	textFileSaved      = "File successfully saved. Proceeding with data loading."
	textNotCSV         = "Error: Please upload a CSV file."
	textNoFile         = "⚠️ No file found. Please upload a CSV file."
	textImportRunning  = "⏳ Your file is still being imported."
	textExportCaption  = "Here is your data file in CSV format."
	textExportFailed   = "Failed to export the file. Please contact the developers for assistance."
	textUsersLimit     = "Sorry, the bot is not accepting new subscribers right now."
	textNothingEntered = "No data was entered."
	textLookaheadUsage = "Usage: /lookahead <days>, e.g. /lookahead 30"
)

// CheckMenus rejects menu buttons the router has no handler for.
func CheckMenus(m config.Menus) error {
	start := mapset.NewThreadUnsafeSet(
		string(ActionAddRecord), string(ActionUpdateRecord), string(ActionDeleteRecord),
		string(ActionImportCSV), string(ActionExportCSV), string(ActionDeleteAllRecords),
		string(ActionDeleteUser), string(ActionUpcoming),
	)
	record := mapset.NewThreadUnsafeSet(string(ActionConfirm), string(ActionBackToStart))
	for _, f := range domain.Fields {
		record.Add(string(f))
	}

	if bad := m.Start.Unknown(start); len(bad) > 0 {
		return fmt.Errorf("menu start: unknown buttons %s", strings.Join(bad, ", "))
	}
	if bad := m.AddRecord.Unknown(record); len(bad) > 0 {
		return fmt.Errorf("menu add_record: unknown buttons %s", strings.Join(bad, ", "))
	}
	return nil
}

func inlineKeyboard(m config.Menu) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m))
	for _, row := range m {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Caption, b.Token))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// fieldPrompt asks for a single field using its menu caption.
func fieldPrompt(m config.Menu, f domain.Field) string {
	caption, ok := m.Caption(string(f))
	if !ok {
		caption = string(f)
	}
	text := "Send me " + caption
	if f == domain.FieldBirthDate {
		text += textDateFormat
	}
	return text
}

func missingFieldText(m config.Menu, f domain.Field) string {
	caption, ok := m.Caption(string(f))
	if !ok {
		caption = string(f)
	}
	return "You did not fill in the required field: " + caption
}

// enteredText lists collected values in schema order.
func enteredText(params map[domain.Field]string) string {
	var b strings.Builder
	b.WriteString("Entered data:")
	for _, f := range domain.Fields {
		if v, ok := params[f]; ok {
			fmt.Fprintf(&b, "\n %s: %s", f, v)
		}
	}
	return b.String()
}

func recordText(rec domain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record #%d:", rec.ID)
	for _, f := range domain.Fields {
		fmt.Fprintf(&b, "\n %s: %s", f, rec.Get(f))
	}
	return b.String()
}
