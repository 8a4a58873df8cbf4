package operator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/csvio"
	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
	"github.com/manicko/mko-birth-reminder-bot/internal/store"
)

// ErrUsersLimit is returned by Init when the registry is full.
var ErrUsersLimit = errors.New("subscriber limit reached")

// Options are the tunables the operator enforces.
type Options struct {
	RecordsLimit int
	UsersLimit   int // 0 = unlimited
	UpcomingDays int
	Location     *time.Location
}

// Operator is the seam between the conversation and storage. It enforces
// per-subscriber limits and turns errors into replies.
type Operator struct {
	repo store.Repo
	csv  *csvio.Handler
	log  *zap.Logger
	opts Options
	now  func() time.Time
}

func New(repo store.Repo, csv *csvio.Handler, opts Options, log *zap.Logger) *Operator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Operator{
		repo: repo,
		csv:  csv,
		log:  log.Named("operator"),
		opts: opts,
		now:  time.Now,
	}
}

// Init registers the subscriber on first contact and touches it afterwards.
func (o *Operator) Init(ctx context.Context, sid int64) error {
	if o.opts.UsersLimit > 0 {
		_, err := o.repo.GetSubscriber(ctx, sid)
		switch {
		case errors.Is(err, store.ErrNotFound):
			n, err := o.repo.CountSubscribers(ctx)
			if err != nil {
				return err
			}
			if n >= o.opts.UsersLimit {
				o.log.Warn("subscriber refused", zap.Int64("subscriber_id", sid), zap.Int("limit", o.opts.UsersLimit))
				return ErrUsersLimit
			}
		case err != nil:
			return err
		}
	}
	_, err := o.repo.EnsureSubscriber(ctx, sid, o.now())
	return err
}

// ImportData loads a CSV file. Nothing is written when the subscriber would
// exceed the record limit.
func (o *Operator) ImportData(ctx context.Context, sid int64, path string) string {
	defer o.csv.Close()

	rows, err := o.csv.Read(path)
	if err != nil {
		o.log.Warn("csv import failed", zap.Int64("subscriber_id", sid), zap.String("path", path), zap.Error(err))
		var cm *csvio.ColumnMismatchError
		if errors.As(err, &cm) {
			return fmt.Sprintf("Unexpected error occurred while importing the file: Expected %d columns, but got %d.",
				cm.Expected, cm.Got)
		}
		return "Unexpected error occurred while importing the file: the file could not be read as CSV."
	}
	recs, _ := o.csv.Prepare(rows)

	count, err := o.repo.CountRecords(ctx, sid)
	if err != nil {
		return msgUnexpected
	}
	if count+len(recs) > o.opts.RecordsLimit {
		return fmt.Sprintf("Unable to load records due to the maximum record limit being reached."+
			"\nThe file contains %d records, and you already have %d in the database."+
			"\nThe allowed maximum is %d.", len(recs), count, o.opts.RecordsLimit)
	}
	if len(recs) > 0 {
		if _, err := o.repo.AddRecords(ctx, sid, recs); err != nil {
			return msgUnexpected
		}
	}
	return fmt.Sprintf("Data successfully imported. Number of rows: %d.", len(recs))
}

// AddRecord inserts one record built from conversation input.
func (o *Operator) AddRecord(ctx context.Context, sid int64, fields map[domain.Field]string) string {
	count, err := o.repo.CountRecords(ctx, sid)
	if err != nil {
		return msgUnexpected
	}
	if count+1 > o.opts.RecordsLimit {
		return fmt.Sprintf("Maximum record limit reached: %d.", o.opts.RecordsLimit)
	}
	if _, err := o.repo.AddRecord(ctx, sid, fields); err != nil {
		return describe(err)
	}
	return "Record successfully added."
}

// GetRecordByID parses the user supplied id and loads the record.
func (o *Operator) GetRecordByID(ctx context.Context, sid int64, rid string) (*domain.Record, error) {
	id, err := domain.ParseRecordID(rid)
	if err != nil {
		return nil, err
	}
	return o.repo.GetRecordByID(ctx, sid, id)
}

// UpdateRecordByID applies a partial update.
func (o *Operator) UpdateRecordByID(ctx context.Context, sid int64, rid string, fields map[domain.Field]string) string {
	id, err := domain.ParseRecordID(rid)
	if err != nil {
		return describe(err)
	}
	if err := o.repo.UpdateRecordByID(ctx, sid, id, fields); err != nil {
		return describe(err)
	}
	return "Record successfully updated."
}

// DeleteRecordByID removes one record; a missing id still reports success.
func (o *Operator) DeleteRecordByID(ctx context.Context, sid int64, rid string) string {
	id, err := domain.ParseRecordID(rid)
	if err != nil {
		return describe(err)
	}
	if err := o.repo.DeleteRecordByID(ctx, sid, id); err != nil {
		return describe(err)
	}
	return "Record was successfully deleted."
}

// ExportData writes all records to a randomly named CSV file.
func (o *Operator) ExportData(ctx context.Context, sid int64) (string, error) {
	recs, err := o.repo.GetAllRecords(ctx, sid)
	if err != nil {
		return "", err
	}
	return o.csv.Export(recs, csvio.ExportName())
}

// RemoveTmpFile deletes a file produced by ExportData or an upload.
func (o *Operator) RemoveTmpFile(path string) {
	o.csv.RemoveFile(path)
}

// FlushData deletes every record of the subscriber.
func (o *Operator) FlushData(ctx context.Context, sid int64) string {
	if err := o.repo.Flush(ctx, sid); err != nil {
		return msgUnexpected
	}
	return "All your data has been deleted."
}

// DeleteSubscriber removes the subscriber and all their records.
func (o *Operator) DeleteSubscriber(ctx context.Context, sid int64) string {
	if err := o.repo.DeleteSubscriber(ctx, sid); err != nil {
		return msgUnexpected
	}
	return "All your data has been deleted, and you have been successfully unsubscribed."
}

// Upcoming lists birthdays from today through the subscriber's look-ahead
// window (their notify_before_days, or the configured default).
func (o *Operator) Upcoming(ctx context.Context, sid int64) string {
	days := o.opts.UpcomingDays
	if s, err := o.repo.GetSubscriber(ctx, sid); err == nil && s.NotifyBeforeDays > 0 {
		days = s.NotifyBeforeDays
	}
	today := o.now().In(o.opts.Location)
	recs, err := o.repo.IntervalRecords(ctx, sid, domain.IntervalFrom(today, days))
	if err != nil {
		return msgUnexpected
	}
	if len(recs) == 0 {
		return fmt.Sprintf("No birthdays in the next %d days.", days)
	}

	type item struct {
		rec  domain.Record
		left int
	}
	items := make([]item, 0, len(recs))
	for _, r := range recs {
		left, err := domain.DaysUntil(r.BirthDate, today)
		if err != nil {
			continue
		}
		items = append(items, item{r, left})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].left < items[j].left })

	var b strings.Builder
	fmt.Fprintf(&b, "📅 Birthdays in the next %d days:\n", days)
	for _, it := range items {
		fmt.Fprintf(&b, "\n%s: %s (#%d)", WhenText(it.left), FullName(it.rec), it.rec.ID)
	}
	return b.String()
}

// SetLookahead stores the subscriber's preferred window for Upcoming.
func (o *Operator) SetLookahead(ctx context.Context, sid int64, raw string) string {
	n, err := domain.ParseNotice(raw)
	if err != nil || n == nil || *n == 0 {
		return "⚠️ Please send a whole number of days between 1 and 366."
	}
	if err := o.repo.SetNotifyBeforeDays(ctx, sid, *n); err != nil {
		return describe(err)
	}
	return fmt.Sprintf("Upcoming birthdays will now cover %d days.", *n)
}

// FullName renders a record for humans.
func FullName(r domain.Record) string {
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name == "" {
		name = "(no name)"
	}
	if r.Company != "" {
		name += " (" + r.Company + ")"
	}
	return name
}

// WhenText describes a distance in days.
func WhenText(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", days)
}

// UploadPath returns where an incoming CSV document should be stored.
func (o *Operator) UploadPath() string {
	return o.csv.UploadPath()
}
