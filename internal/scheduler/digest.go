package scheduler

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

const daysColumn = "days_left"

// render builds the HTML digest: a monospace table of the configured
// columns plus the number of days left, nearest birthdays first.
func (d *Dispatcher) render(recs []domain.Record, ref time.Time) (string, error) {
	type row struct {
		cells []string
		left  int
	}
	rows := make([]row, 0, len(recs))
	for _, rec := range recs {
		left, err := domain.DaysUntil(rec.BirthDate, ref)
		if err != nil {
			d.log.Debug("record skipped: birth date", zap.Int64("record_id", rec.ID))
			continue
		}
		cells := make([]string, 0, len(d.cfg.Columns)+1)
		for _, col := range d.cfg.Columns {
			cells = append(cells, cell(rec, col))
		}
		rows = append(rows, row{append(cells, strconv.Itoa(left)), left})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].left < rows[j].left })

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	header := make([]any, 0, len(d.cfg.Columns)+1)
	for _, col := range d.cfg.Columns {
		header = append(header, col)
	}
	table.Header(append(header, daysColumn)...)
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, r.cells)
	}
	if err := table.Bulk(data); err != nil {
		return "", err
	}
	if err := table.Render(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("🎂 <b>Birthday reminders for ")
	b.WriteString(ref.Format("02.01.2006"))
	b.WriteString("</b>\n<pre>")
	b.WriteString(html.EscapeString(buf.String()))
	b.WriteString("</pre>")
	return b.String(), nil
}

func cell(rec domain.Record, col string) string {
	if col == "id" {
		return strconv.FormatInt(rec.ID, 10)
	}
	return rec.Get(domain.Field(col))
}
