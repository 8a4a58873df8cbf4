package csvio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	return New(config.CSV{
		Import: config.CSVImport{
			Path:            filepath.Join(dir, "import"),
			DeleteAfterDays: 3,
			Separator:       ",",
			Encoding:        "utf-8",
			SkipHeader:      true,
		},
		Export: config.CSVExport{
			Path:      filepath.Join(dir, "export"),
			Separator: ",",
			Encoding:  "utf-8",
			Header:    true,
		},
	}, zap.NewNop())
}

func writeCSV(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const header = "company,last_name,first_name,position,gift_category,birth_date,notice_before_days\n"

func TestRead_ColumnMismatch(t *testing.T) {
	h := newTestHandler(t)
	path := writeCSV(t, t.TempDir(), "a,b,c,d,e,f,g,h\n\"broken")

	_, err := h.Read(path)
	var cm *ColumnMismatchError
	require.True(t, errors.As(err, &cm), "got %v", err)
	assert.Equal(t, 7, cm.Expected)
	assert.Equal(t, 8, cm.Got)
	assert.Equal(t, "csv: expected 7 columns, got 8", cm.Error())
}

func TestRead_MissingFile(t *testing.T) {
	h := newTestHandler(t)
	_, err := h.Read(filepath.Join(t.TempDir(), "nope.csv"))
	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRead_ParseError(t *testing.T) {
	h := newTestHandler(t)
	path := writeCSV(t, t.TempDir(), header+"a,\"b,c,d,e,f,g\n")
	_, err := h.Read(path)
	var re *ReadError
	assert.True(t, errors.As(err, &re), "got %v", err)
}

func TestReadPrepare_CleansAndSkips(t *testing.T) {
	h := newTestHandler(t)
	body := "\ufeff" + header +
		"Beta Inc.,Doe,Jane,Developer,Tech,1990-03-22,14\n" +
		"ООО «Ромашка»,Иванов,Иван!,Менеджер,Книги,05.11.1985,\n" +
		"Gamma,Roe,Rick,QA,Games,not a date,1\n" +
		"Delta,Poe,Ann,PM,Wine,1/2/1999,soon\n" +
		"short,row\n"
	path := writeCSV(t, t.TempDir(), body)

	rows, err := h.Read(path)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	recs, stats := h.Prepare(rows)
	assert.Equal(t, Stats{Loaded: 3, Skipped: 2}, stats)

	assert.Equal(t, "Beta Inc", recs[0].Company)
	require.NotNil(t, recs[0].NoticeBeforeDays)
	assert.Equal(t, 14, *recs[0].NoticeBeforeDays)

	assert.Equal(t, "ООО Ромашка", recs[1].Company)
	assert.Equal(t, "Иван", recs[1].FirstName)
	assert.Equal(t, "1985-11-05", recs[1].BirthDate)
	assert.Nil(t, recs[1].NoticeBeforeDays)

	assert.Equal(t, "1999-02-01", recs[2].BirthDate)
	assert.Nil(t, recs[2].NoticeBeforeDays, "malformed notice is cleared")
}

func TestRead_Windows1251(t *testing.T) {
	h := newTestHandler(t)
	h.read.Encoding = "windows-1251"
	h.read.Separator = ";"

	raw, err := charmap.Windows1251.NewEncoder().String("Альфа;Петров;Пётр;Директор;Часы;1970-01-31;\n")
	require.NoError(t, err)
	path := writeCSV(t, t.TempDir(), raw)
	h.read.SkipHeader = false

	rows, err := h.Read(path)
	require.NoError(t, err)
	recs, _ := h.Prepare(rows)
	require.Len(t, recs, 1)
	assert.Equal(t, "Пётр", recs[0].FirstName)
}

func TestExportImport_RoundTrip(t *testing.T) {
	h := newTestHandler(t)
	seven := 7
	in := []domain.Record{
		{ID: 1, Company: "Beta Inc", LastName: "Doe", FirstName: "Jane", Position: "Developer",
			GiftCategory: "Tech", BirthDate: "1990-03-22", NoticeBeforeDays: &seven},
		{ID: 2, Company: "Альфа", LastName: "Иванова", FirstName: "Анна", BirthDate: "1985-11-05"},
	}

	path, err := h.Export(in, ExportName())
	require.NoError(t, err)
	assert.FileExists(t, path)

	rows, err := h.Read(path)
	require.NoError(t, err)
	out, stats := h.Prepare(rows)
	assert.Equal(t, 0, stats.Skipped)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].Values(), out[i].Values())
	}
}

func TestExport_WithIDAndDateFormat(t *testing.T) {
	h := newTestHandler(t)
	h.write.IncludeID = true
	h.write.DateFormat = "02.01.2006"

	path, err := h.Export([]domain.Record{{ID: 9, FirstName: "Jane", BirthDate: "1990-03-22"}}, "x.csv")
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,"+header+"9,,,Jane,,,22.03.1990,\n", string(b))
}

func TestCleanupTmp(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, os.MkdirAll(h.read.Path, 0o755))

	old := filepath.Join(h.read.Path, "old.csv")
	fresh := filepath.Join(h.read.Path, "fresh.txt")
	other := filepath.Join(h.read.Path, "keep.bin")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().Add(-96 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	assert.Equal(t, 1, h.CleanupTmp())
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	h.read.DeleteAfterDays = 0
	assert.Equal(t, 0, h.CleanupTmp())
}

func TestUploadPath_Unique(t *testing.T) {
	h := newTestHandler(t)
	a, b := h.UploadPath(), h.UploadPath()
	assert.NotEqual(t, a, b)
	assert.Equal(t, h.read.Path, filepath.Dir(a))
	assert.Equal(t, ".csv", filepath.Ext(a))
}
