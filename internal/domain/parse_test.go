package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate_AcceptedLayouts(t *testing.T) {
	cases := map[string]string{
		"22.03.1990":   "1990-03-22",
		"1990.03.22":   "1990-03-22",
		"22-03-1990":   "1990-03-22",
		"1990-03-22":   "1990-03-22",
		"22/03/1990":   "1990-03-22",
		"1990/03/22":   "1990-03-22",
		"1.3.2000":     "2000-03-01",
		"  05/11/1985": "1985-11-05",
	}
	for in, want := range cases {
		got, ok := NormalizeDate(in)
		if !ok {
			t.Fatalf("%q: expected to parse", in)
		}
		if got != want {
			t.Fatalf("%q: want %s, got %s", in, want, got)
		}
	}
}

func TestNormalizeDate_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "31.02.2020", "1990-13-01", "22 03 1990", "03/22/1990x"} {
		got, ok := NormalizeDate(in)
		assert.False(t, ok, in)
		assert.Empty(t, got, in)
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Иван Петров", CleanText("  Иван (Петров)!! "))
	assert.Equal(t, "Beta Inc", CleanText("Beta Inc."))
	assert.Equal(t, "Тест-Групп – 2", CleanText("Тест-Групп – 2 ©"))
	assert.Equal(t, "Ёлкин", CleanText("Ёлкин"))
	assert.Equal(t, "DROP TABLE x--", CleanText("DROP TABLE x;--'"))
}

func TestCleanText_Idempotent(t *testing.T) {
	for _, in := range []string{
		"O'Neil & Sons, Ltd.",
		"  Анна-Мария  ",
		"日本語 text 123",
		"tab\tsep\nline",
		"",
	} {
		once := CleanText(in)
		require.Equal(t, once, CleanText(once), in)
		for _, r := range once {
			require.True(t, allowedRune(r), "rune %q left in %q", r, once)
		}
	}
}

func TestCleanText_ComposesDecomposedCyrillic(t *testing.T) {
	// "й" written as "и" + combining breve.
	assert.Equal(t, "Андрей", CleanText("Андре\u0438\u0306"))
}

func TestParseRecordID(t *testing.T) {
	id, err := ParseRecordID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, in := range []string{"abc", "", "1.5", "-3", "0", " 0 "} {
		_, err := ParseRecordID(in)
		var wi *WrongInputError
		require.True(t, errors.As(err, &wi), in)
	}
}

func TestParseNotice(t *testing.T) {
	n, err := ParseNotice("")
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = ParseNotice("14")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, 14, *n)

	for _, in := range []string{"x", "-1", "400"} {
		_, err := ParseNotice(in)
		assert.Error(t, err, in)
	}
}

func TestNewRecord(t *testing.T) {
	r, err := NewRecord(map[Field]string{
		FieldFirstName:        "Jane!",
		FieldBirthDate:        "22/03/1990",
		FieldNoticeBeforeDays: "14",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane", r.FirstName)
	assert.Equal(t, "1990-03-22", r.BirthDate)
	assert.Equal(t, "14", r.Get(FieldNoticeBeforeDays))

	_, err = NewRecord(map[Field]string{FieldFirstName: "Jane"})
	assert.ErrorIs(t, err, ErrMissingBirthDate)

	_, err = NewRecord(map[Field]string{FieldBirthDate: "soon"})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = NewRecord(map[Field]string{FieldBirthDate: "1990-03-22", Field("id; DROP"): "1"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRecordApply_LeavesRecordOnError(t *testing.T) {
	r := Record{FirstName: "Jane", BirthDate: "1990-03-22"}
	err := r.Apply(map[Field]string{FieldFirstName: "John", FieldBirthDate: "bad"})
	require.Error(t, err)
	assert.Equal(t, "Jane", r.FirstName)
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("gift_category")
	assert.True(t, ok)
	assert.Equal(t, FieldGiftCategory, f)

	_, ok = ParseField("id")
	assert.False(t, ok)
}
