package store

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

// columns maps record fields to table columns. SQL is only ever built from
// these constants, never from caller text.
var columns = map[domain.Field]string{
	domain.FieldCompany:          "company",
	domain.FieldLastName:         "last_name",
	domain.FieldFirstName:        "first_name",
	domain.FieldPosition:         "position",
	domain.FieldGiftCategory:     "gift_category",
	domain.FieldBirthDate:        "birth_date",
	domain.FieldNoticeBeforeDays: "notice_before_days",
}

const recordColumns = `id, company, last_name, first_name, position, gift_category, birth_date, notice_before_days`

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row in recordColumns order. A notice value that is
// not an integer is returned in bad and left unset on the record.
func scanRecord(s scanner) (r domain.Record, bad string, err error) {
	var notice sql.NullString
	if err := s.Scan(&r.ID, &r.Company, &r.LastName, &r.FirstName,
		&r.Position, &r.GiftCategory, &r.BirthDate, &notice); err != nil {
		return domain.Record{}, "", err
	}
	if notice.Valid {
		n, err := strconv.Atoi(notice.String)
		if err != nil {
			return r, notice.String, nil
		}
		r.NoticeBeforeDays = &n
	}
	return r, "", nil
}

func toNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
