package domain

import (
	"fmt"
	"time"
)

// MonthDay is a zero-padded "MM-DD" string. String order equals calendar order.
type MonthDay string

// MonthDayOf returns the month-day of t in t's location.
func MonthDayOf(t time.Time) MonthDay {
	return MonthDay(t.Format("01-02"))
}

// BirthMonthDay returns the month-day of a canonical birth date.
func BirthMonthDay(birthDate string) (MonthDay, error) {
	t, err := time.Parse(DateLayout, birthDate)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, birthDate)
	}
	return MonthDayOf(t), nil
}

// TargetMonthDay is the month-day of ref shifted by offset days.
// Every reminder query compares a birth month-day against this value.
func TargetMonthDay(ref time.Time, offset int) MonthDay {
	return MonthDayOf(ref.AddDate(0, 0, offset))
}

// TargetMonthDays maps each offset to its target month-day, skipping duplicates.
func TargetMonthDays(ref time.Time, offsets []int) []MonthDay {
	seen := make(map[MonthDay]struct{}, len(offsets))
	out := make([]MonthDay, 0, len(offsets))
	for _, k := range offsets {
		md := TargetMonthDay(ref, k)
		if _, ok := seen[md]; ok {
			continue
		}
		seen[md] = struct{}{}
		out = append(out, md)
	}
	return out
}

// MatchesOffset reports whether the birthday falls on ref+offset days.
func MatchesOffset(birthDate string, ref time.Time, offset int) bool {
	md, err := BirthMonthDay(birthDate)
	if err != nil {
		return false
	}
	return md == TargetMonthDay(ref, offset)
}

// MatchesCustom applies the record's own notice offset. Records without
// one never match.
func MatchesCustom(r Record, ref time.Time) bool {
	if r.NoticeBeforeDays == nil {
		return false
	}
	return MatchesOffset(r.BirthDate, ref, *r.NoticeBeforeDays)
}

// Interval is an inclusive month-day range. End before Start means the
// range wraps over the new year.
type Interval struct {
	Start MonthDay
	End   MonthDay
}

// IntervalFrom returns the window starting at ref and spanning days more days.
// A window of a year or more covers every month-day.
func IntervalFrom(ref time.Time, days int) Interval {
	if days >= 365 {
		return Interval{Start: "01-01", End: "12-31"}
	}
	return Interval{Start: MonthDayOf(ref), End: TargetMonthDay(ref, days)}
}

// Wraps reports whether the interval crosses December 31.
func (i Interval) Wraps() bool { return i.End < i.Start }

// Ranges splits the interval into non-wrapping inclusive bounds.
func (i Interval) Ranges() [][2]MonthDay {
	if !i.Wraps() {
		return [][2]MonthDay{{i.Start, i.End}}
	}
	return [][2]MonthDay{{i.Start, "12-31"}, {"01-01", i.End}}
}

// Contains reports whether md lies inside the interval.
func (i Interval) Contains(md MonthDay) bool {
	for _, r := range i.Ranges() {
		if md >= r[0] && md <= r[1] {
			return true
		}
	}
	return false
}

// DaysUntil returns the number of days from ref to the next occurrence
// of the birthday, 0 when it is today. Feb 29 falls back to Mar 1 in
// common years.
func DaysUntil(birthDate string, ref time.Time) (int, error) {
	b, err := time.Parse(DateLayout, birthDate)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, birthDate)
	}
	y, m, d := ref.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	next := time.Date(y, b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = time.Date(y+1, b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	}
	return int(next.Sub(today).Hours() / 24), nil
}
