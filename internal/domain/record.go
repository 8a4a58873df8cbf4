package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Field is a column of a birthday record that users may read or write.
type Field string

const (
	FieldCompany          Field = "company"
	FieldLastName         Field = "last_name"
	FieldFirstName        Field = "first_name"
	FieldPosition         Field = "position"
	FieldGiftCategory     Field = "gift_category"
	FieldBirthDate        Field = "birth_date"
	FieldNoticeBeforeDays Field = "notice_before_days"
)

// Fields lists record columns in schema order (without the id).
// CSV files are read and written in this order.
var Fields = []Field{
	FieldCompany,
	FieldLastName,
	FieldFirstName,
	FieldPosition,
	FieldGiftCategory,
	FieldBirthDate,
	FieldNoticeBeforeDays,
}

// ParseField returns the Field named s. Only schema columns are accepted.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Record is one tracked birthday owned by a subscriber.
type Record struct {
	ID               int64
	Company          string
	LastName         string
	FirstName        string
	Position         string
	GiftCategory     string
	BirthDate        string // canonical YYYY-MM-DD
	NoticeBeforeDays *int   // custom reminder offset, nullable
}

// Header returns column names for tabular output, id first.
func Header() []string {
	h := make([]string, 0, len(Fields)+1)
	h = append(h, "id")
	for _, f := range Fields {
		h = append(h, string(f))
	}
	return h
}

// Get returns the string form of a single field.
func (r Record) Get(f Field) string {
	switch f {
	case FieldCompany:
		return r.Company
	case FieldLastName:
		return r.LastName
	case FieldFirstName:
		return r.FirstName
	case FieldPosition:
		return r.Position
	case FieldGiftCategory:
		return r.GiftCategory
	case FieldBirthDate:
		return r.BirthDate
	case FieldNoticeBeforeDays:
		if r.NoticeBeforeDays == nil {
			return ""
		}
		return strconv.Itoa(*r.NoticeBeforeDays)
	}
	return ""
}

// Values returns field values in schema order.
func (r Record) Values() []string {
	out := make([]string, len(Fields))
	for i, f := range Fields {
		out[i] = r.Get(f)
	}
	return out
}

// Row returns the id followed by Values, matching Header.
func (r Record) Row() []string {
	return append([]string{strconv.FormatInt(r.ID, 10)}, r.Values()...)
}

// NewRecord builds a validated record from raw user input.
// The birth date is mandatory.
func NewRecord(fields map[Field]string) (Record, error) {
	if _, ok := fields[FieldBirthDate]; !ok {
		return Record{}, ErrMissingBirthDate
	}
	var r Record
	if err := r.Apply(fields); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Apply validates and cleans the given fields and writes them into r.
// Nothing is written when any field is invalid.
func (r *Record) Apply(fields map[Field]string) error {
	next := *r
	for f, raw := range fields {
		switch f {
		case FieldCompany:
			next.Company = CleanText(raw)
		case FieldLastName:
			next.LastName = CleanText(raw)
		case FieldFirstName:
			next.FirstName = CleanText(raw)
		case FieldPosition:
			next.Position = CleanText(raw)
		case FieldGiftCategory:
			next.GiftCategory = CleanText(raw)
		case FieldBirthDate:
			d, ok := NormalizeDate(raw)
			if !ok {
				return fmt.Errorf("%w: %q", ErrInvalidDate, raw)
			}
			next.BirthDate = d
		case FieldNoticeBeforeDays:
			n, err := ParseNotice(raw)
			if err != nil {
				return err
			}
			next.NoticeBeforeDays = n
		default:
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	*r = next
	return nil
}

// Subscriber is a bot user who owns a set of records.
type Subscriber struct {
	ID               int64
	LastInteraction  time.Time
	NotifyBeforeDays int
}
