package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DateLayout is the canonical storage form of birth dates.
const DateLayout = "2006-01-02"

// MaxNoticeDays bounds a custom reminder offset.
const MaxNoticeDays = 366

// inputDateLayouts are tried in order. Day and month may be one or two digits.
var inputDateLayouts = []string{
	"2.1.2006",
	"2006.1.2",
	"2-1-2006",
	"2006-1-2",
	"2/1/2006",
	"2006/1/2",
}

// NormalizeDate parses s with the accepted layouts and returns it in
// DateLayout. ok is false when no layout matches.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// CleanText drops every rune outside the safe set (Latin and Cyrillic
// letters, ASCII digits, whitespace, hyphen and en dash) and trims the result.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowedRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-', r == '–':
		return true
	}
	return unicode.IsSpace(r)
}

// ParseRecordID converts user text into a positive record id.
func ParseRecordID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &WrongInputError{Field: "id", Value: s}
	}
	return id, nil
}

// ParseNotice converts user text into a custom offset. Empty input clears it.
func ParseNotice(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxNoticeDays {
		return nil, &WrongInputError{Field: string(FieldNoticeBeforeDays), Value: s}
	}
	return &n, nil
}
