package operator

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/csvio"
	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
	"github.com/manicko/mko-birth-reminder-bot/internal/store"
)

const sub int64 = 42

type fixture struct {
	op   *Operator
	repo *store.SQLiteRepo
	dir  string
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := store.OpenSQLite(ctx, filepath.Join(dir, "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	h := csvio.New(config.CSV{
		Import: config.CSVImport{Path: filepath.Join(dir, "import"), Separator: ",", Encoding: "utf-8", SkipHeader: true},
		Export: config.CSVExport{Path: filepath.Join(dir, "export"), Separator: ",", Encoding: "utf-8", Header: true},
	}, zap.NewNop())

	if opts.RecordsLimit == 0 {
		opts.RecordsLimit = 10
	}
	op := New(repo, h, opts, zap.NewNop())
	op.now = func() time.Time { return time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, op.Init(ctx, sub))
	return fixture{op: op, repo: repo, dir: dir}
}

func (f fixture) writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	body := strings.Join(domainHeader(), ",") + "\n" + strings.Join(rows, "\n") + "\n"
	path := filepath.Join(f.dir, "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func domainHeader() []string {
	out := make([]string, len(domain.Fields))
	for i, f := range domain.Fields {
		out[i] = string(f)
	}
	return out
}

func TestInit_UsersLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{UsersLimit: 1})

	assert.NoError(t, f.op.Init(ctx, sub), "known subscriber passes")
	assert.ErrorIs(t, f.op.Init(ctx, sub+1), ErrUsersLimit)

	n, err := f.repo.CountSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	path := f.writeCSV(t,
		"Beta Inc,Doe,Jane,Developer,Tech,1990-03-22,14",
		"Alpha,Roe,Rick,QA,Games,21/03/1991,",
		"Gamma,Poe,Ann,PM,Wine,never,",
	)
	assert.Equal(t, "Data successfully imported. Number of rows: 2.", f.op.ImportData(ctx, sub, path))

	n, err := f.repo.CountRecords(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportData_OverLimitWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{RecordsLimit: 2})

	assert.Equal(t, "Record successfully added.",
		f.op.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldBirthDate: "01/01/2000"}))

	path := f.writeCSV(t,
		"A,A,A,A,A,1990-01-01,",
		"B,B,B,B,B,1990-01-02,",
	)
	msg := f.op.ImportData(ctx, sub, path)
	assert.Equal(t, "Unable to load records due to the maximum record limit being reached."+
		"\nThe file contains 2 records, and you already have 1 in the database."+
		"\nThe allowed maximum is 2.", msg)

	n, err := f.repo.CountRecords(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportData_ColumnMismatch(t *testing.T) {
	f := newFixture(t, Options{})
	path := filepath.Join(f.dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n"), 0o644))

	assert.Equal(t, "Unexpected error occurred while importing the file: Expected 7 columns, but got 3.",
		f.op.ImportData(context.Background(), sub, path))
}

func TestAddRecord_Limit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{RecordsLimit: 1})
	fields := map[domain.Field]string{domain.FieldFirstName: "Jane", domain.FieldBirthDate: "22.03.1990"}

	assert.Equal(t, "Record successfully added.", f.op.AddRecord(ctx, sub, fields))
	assert.Equal(t, "Maximum record limit reached: 1.", f.op.AddRecord(ctx, sub, fields))
}

func TestAddRecord_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	assert.Equal(t, msgNoBirthDate, f.op.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldFirstName: "Jane"}))
	assert.Equal(t, msgBadDate, f.op.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldBirthDate: "32/13/2000"}))
	assert.Equal(t, msgBadNotice, f.op.AddRecord(ctx, sub, map[domain.Field]string{
		domain.FieldBirthDate: "01/01/2000", domain.FieldNoticeBeforeDays: "a week",
	}))
}

func TestRecordByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	id, err := f.repo.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldFirstName: "Jane", domain.FieldBirthDate: "1990-03-22"})
	require.NoError(t, err)
	rid := " " + strconv.FormatInt(id, 10) + " "

	rec, err := f.op.GetRecordByID(ctx, sub, rid)
	require.NoError(t, err)
	assert.Equal(t, "Jane", rec.FirstName)

	_, err = f.op.GetRecordByID(ctx, sub, "abc")
	assert.Equal(t, msgInvalidID, Describe(err))

	assert.Equal(t, "Record successfully updated.",
		f.op.UpdateRecordByID(ctx, sub, rid, map[domain.Field]string{domain.FieldLastName: "Doe"}))
	assert.Equal(t, msgNotFound,
		f.op.UpdateRecordByID(ctx, sub, "999", map[domain.Field]string{domain.FieldLastName: "Doe"}))

	assert.Equal(t, msgInvalidID, f.op.DeleteRecordByID(ctx, sub, "abc"))
	assert.Equal(t, msgInvalidID, f.op.DeleteRecordByID(ctx, sub, "0"))
	assert.Equal(t, "Record was successfully deleted.", f.op.DeleteRecordByID(ctx, sub, rid))
	assert.Equal(t, "Record was successfully deleted.", f.op.DeleteRecordByID(ctx, sub, "999"))

	_, err = f.op.GetRecordByID(ctx, sub, rid)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExportData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.repo.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldFirstName: "Jane", domain.FieldBirthDate: "1990-03-22"})
	require.NoError(t, err)

	path, err := f.op.ExportData(ctx, sub)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), ",Jane,,,1990-03-22,")

	f.op.RemoveTmpFile(path)
	assert.NoFileExists(t, path)
}

func TestFlushAndDeleteSubscriber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.repo.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldBirthDate: "1990-03-22"})
	require.NoError(t, err)

	assert.Equal(t, "All your data has been deleted.", f.op.FlushData(ctx, sub))
	n, err := f.repo.CountRecords(ctx, sub)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, "All your data has been deleted, and you have been successfully unsubscribed.",
		f.op.DeleteSubscriber(ctx, sub))
	_, err = f.repo.GetSubscriber(ctx, sub)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpcoming(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{UpcomingDays: 3})

	for _, fields := range []map[domain.Field]string{
		{domain.FieldFirstName: "Later", domain.FieldBirthDate: "1990-03-22"},
		{domain.FieldFirstName: "Today", domain.FieldBirthDate: "1985-03-20", domain.FieldCompany: "Beta"},
		{domain.FieldFirstName: "Outside", domain.FieldBirthDate: "1985-04-20"},
	} {
		_, err := f.repo.AddRecord(ctx, sub, fields)
		require.NoError(t, err)
	}

	msg := f.op.Upcoming(ctx, sub)
	assert.True(t, strings.HasPrefix(msg, "📅 Birthdays in the next 3 days:"), msg)
	assert.NotContains(t, msg, "Outside")
	assert.Less(t, strings.Index(msg, "today: Today (Beta)"), strings.Index(msg, "in 2 days: Later"))

	assert.Equal(t, "Upcoming birthdays will now cover 40 days.", f.op.SetLookahead(ctx, sub, "40"))
	assert.Contains(t, f.op.Upcoming(ctx, sub), "Outside")
	assert.Equal(t, "⚠️ Please send a whole number of days between 1 and 366.", f.op.SetLookahead(ctx, sub, "0"))
}

func TestUpcoming_YearLongLookahead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{UpcomingDays: 3})
	_, err := f.repo.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldFirstName: "Summer", domain.FieldBirthDate: "1990-06-15"})
	require.NoError(t, err)
	_, err = f.repo.AddRecord(ctx, sub, map[domain.Field]string{domain.FieldFirstName: "Yesterday", domain.FieldBirthDate: "1990-03-19"})
	require.NoError(t, err)

	for _, days := range []string{"365", "366"} {
		require.Equal(t, "Upcoming birthdays will now cover "+days+" days.", f.op.SetLookahead(ctx, sub, days))
		msg := f.op.Upcoming(ctx, sub)
		assert.Contains(t, msg, "Summer", days)
		assert.Contains(t, msg, "Yesterday", days)
		assert.Less(t, strings.Index(msg, "Summer"), strings.Index(msg, "Yesterday"))
	}
}
