package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

// Positions of the non-text columns in domain.Fields.
const (
	dateCol   = 5
	noticeCol = 6
)

// Handler converts between CSV files and birthday records.
type Handler struct {
	log   *zap.Logger
	read  config.CSVImport
	write config.CSVExport
	now   func() time.Time
}

// Stats summarises a Prepare run.
type Stats struct {
	Loaded  int
	Skipped int
}

func New(cfg config.CSV, log *zap.Logger) *Handler {
	return &Handler{
		log:   log.Named("csv"),
		read:  cfg.Import,
		write: cfg.Export,
		now:   time.Now,
	}
}

// UploadPath returns a fresh file path in the import directory.
func (h *Handler) UploadPath() string {
	return filepath.Join(h.read.Path, uuid.NewString()+".csv")
}

// Read loads raw rows from path. The first row is checked for arity before
// anything else is parsed; with skip_header it is then dropped.
func (h *Handler) Read(path string) ([][]string, error) {
	enc, err := lookupEncoding(h.read.Encoding)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, enc.NewDecoder()))
	r.Comma = separator(h.read.Separator)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	first[0] = strings.TrimPrefix(first[0], "\ufeff")
	if want := len(domain.Fields); len(first) != want {
		return nil, &ColumnMismatchError{Expected: want, Got: len(first)}
	}

	var rows [][]string
	if !h.read.SkipHeader {
		rows = append(rows, first)
	}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ReadError{Path: path, Err: err}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// Prepare maps raw rows onto records in schema order. Text columns are
// cleaned and dates normalised. Rows with the wrong arity or an unreadable
// date are skipped; an unreadable notice offset is cleared.
func (h *Handler) Prepare(rows [][]string) ([]domain.Record, Stats) {
	var (
		out   = make([]domain.Record, 0, len(rows))
		stats Stats
	)
	for i, row := range rows {
		if len(row) != len(domain.Fields) {
			h.log.Debug("row skipped: arity", zap.Int("row", i), zap.Int("columns", len(row)))
			stats.Skipped++
			continue
		}
		date, ok := domain.NormalizeDate(row[dateCol])
		if !ok {
			h.log.Debug("row skipped: date", zap.Int("row", i), zap.String("value", row[dateCol]))
			stats.Skipped++
			continue
		}
		rec := domain.Record{
			Company:      domain.CleanText(row[0]),
			LastName:     domain.CleanText(row[1]),
			FirstName:    domain.CleanText(row[2]),
			Position:     domain.CleanText(row[3]),
			GiftCategory: domain.CleanText(row[4]),
			BirthDate:    date,
		}
		notice, err := domain.ParseNotice(row[noticeCol])
		if err != nil {
			h.log.Warn("notice offset ignored", zap.Int("row", i), zap.String("value", row[noticeCol]))
		}
		rec.NoticeBeforeDays = notice
		out = append(out, rec)
		stats.Loaded++
	}
	h.log.Info("csv prepared", zap.Int("rows", stats.Loaded), zap.Int("skipped", stats.Skipped))
	return out, stats
}

// Export writes records to name inside the export directory and returns the path.
func (h *Handler) Export(records []domain.Record, name string) (string, error) {
	enc, err := lookupEncoding(h.write.Encoding)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(h.write.Path, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(h.write.Path, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	tw := transform.NewWriter(f, encoding.ReplaceUnsupported(enc.NewEncoder()))
	w := csv.NewWriter(tw)
	w.Comma = separator(h.write.Separator)

	if h.write.Header {
		header := domain.Header()
		if !h.write.IncludeID {
			header = header[1:]
		}
		_ = w.Write(header)
	}
	for _, rec := range records {
		row := rec.Values()
		if h.write.DateFormat != "" {
			if t, err := time.Parse(domain.DateLayout, rec.BirthDate); err == nil {
				row[dateCol] = t.Format(h.write.DateFormat)
			}
		}
		if h.write.IncludeID {
			row = append([]string{fmt.Sprint(rec.ID)}, row...)
		}
		_ = w.Write(row)
	}
	w.Flush()

	err = errors.Join(w.Error(), tw.Close(), f.Close())
	if err != nil {
		h.log.Error("csv export failed", zap.String("path", path), zap.Error(err))
		_ = os.Remove(path)
		return "", err
	}
	h.log.Info("csv exported", zap.String("path", path), zap.Int("rows", len(records)))
	return path, nil
}

// ExportName returns a random file name for an export.
func ExportName() string {
	return uuid.NewString() + ".csv"
}

// RemoveFile deletes a temporary file, logging instead of failing.
func (h *Handler) RemoveFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.log.Warn("remove tmp file", zap.String("path", path), zap.Error(err))
	}
}

// CleanupTmp deletes .csv and .txt files older than delete_after_days from
// the import and export directories. Zero retention disables it.
func (h *Handler) CleanupTmp() int {
	if h.read.DeleteAfterDays <= 0 {
		return 0
	}
	cutoff := h.now().Add(-time.Duration(h.read.DeleteAfterDays) * 24 * time.Hour)
	removed := 0
	for _, dir := range []string{h.read.Path, h.write.Path} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				h.log.Warn("cleanup: read dir", zap.String("path", dir), zap.Error(err))
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".csv", ".txt":
			default:
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				h.log.Warn("cleanup: remove", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		h.log.Info("tmp files removed", zap.Int("count", removed))
	}
	return removed
}

// Close runs the tmp cleanup. It is meant to be deferred by every caller
// that reads an uploaded file.
func (h *Handler) Close() error {
	h.CleanupTmp()
	return nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

func separator(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ','
	}
	return r
}
