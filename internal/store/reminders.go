package store

import (
	"context"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

const monthDayExpr = `strftime('%m-%d', birth_date)`

// DefaultReminders returns records whose birthday falls on ref+k days for
// any k in offsets. The target month-days are computed once in Go and matched
// with a single query.
func (r *SQLiteRepo) DefaultReminders(ctx context.Context, sid int64, ref time.Time, offsets []int) ([]domain.Record, error) {
	targets := domain.TargetMonthDays(ref, offsets)
	if len(targets) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(targets)+1)
	args = append(args, sid)
	for _, md := range targets {
		args = append(args, string(md))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(targets)), ", ")

	return r.queryRecords(ctx, "default reminders", sid,
		`SELECT `+recordColumns+` FROM birthdays
		 WHERE subscriber_id = ? AND `+monthDayExpr+` IN (`+placeholders+`)
		 ORDER BY id`,
		args...)
}

// CustomReminders returns records whose own notice offset points at their
// birthday from ref. Malformed offsets never match.
func (r *SQLiteRepo) CustomReminders(ctx context.Context, sid int64, ref time.Time) ([]domain.Record, error) {
	candidates, err := r.queryRecords(ctx, "custom reminders", sid,
		`SELECT `+recordColumns+` FROM birthdays
		 WHERE subscriber_id = ? AND notice_before_days IS NOT NULL
		 ORDER BY id`,
		sid)
	if err != nil {
		return nil, err
	}
	var out []domain.Record
	for _, rec := range candidates {
		if domain.MatchesCustom(rec, ref) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AllReminders unions the default and custom channels, dropping duplicate rows.
func (r *SQLiteRepo) AllReminders(ctx context.Context, sid int64, ref time.Time, offsets []int) (Reminders, error) {
	def, err := r.DefaultReminders(ctx, sid, ref, offsets)
	if err != nil {
		return Reminders{}, err
	}
	custom, err := r.CustomReminders(ctx, sid, ref)
	if err != nil {
		return Reminders{}, err
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	res := Reminders{Header: domain.Header()}
	for _, rec := range append(def, custom...) {
		if !seen.Add(strings.Join(rec.Row(), "\x1f")) {
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// IntervalRecords returns records whose month-day lies in iv. A wrapping
// interval is queried as two ranges joined by OR.
func (r *SQLiteRepo) IntervalRecords(ctx context.Context, sid int64, iv domain.Interval) ([]domain.Record, error) {
	ranges := iv.Ranges()
	conds := make([]string, 0, len(ranges))
	args := []any{sid}
	for _, rg := range ranges {
		conds = append(conds, monthDayExpr+` BETWEEN ? AND ?`)
		args = append(args, string(rg[0]), string(rg[1]))
	}
	return r.queryRecords(ctx, "interval records", sid,
		`SELECT `+recordColumns+` FROM birthdays
		 WHERE subscriber_id = ? AND (`+strings.Join(conds, " OR ")+`)
		 ORDER BY id`,
		args...)
}
