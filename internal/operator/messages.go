package operator

import (
	"errors"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
	"github.com/manicko/mko-birth-reminder-bot/internal/store"
)

const (
	msgUnexpected  = "Unexpected error. Repeat the attempt by entering the /start command."
	msgInvalidID   = "⚠️ Invalid ID format. Please enter a valid number."
	msgNotFound    = "Record not found."
	msgNoBirthDate = "You did not fill in the required field: birth date."
	msgBadDate     = "⚠️ Unrecognised date. Use dd/mm/yyyy, e.g. 01/03/2000."
	msgBadNotice   = "⚠️ Notice before days must be a whole number from 0 to 366."
	msgBadField    = "⚠️ Unknown field."
)

// MsgUnexpected is the generic fallback reply.
const MsgUnexpected = msgUnexpected

// describe turns an error into a reply without leaking internals.
func describe(err error) string {
	var wi *domain.WrongInputError
	switch {
	case errors.As(err, &wi):
		if wi.Field == string(domain.FieldNoticeBeforeDays) {
			return msgBadNotice
		}
		return msgInvalidID
	case errors.Is(err, store.ErrNotFound):
		return msgNotFound
	case errors.Is(err, domain.ErrMissingBirthDate):
		return msgNoBirthDate
	case errors.Is(err, domain.ErrInvalidDate):
		return msgBadDate
	case errors.Is(err, domain.ErrUnknownField):
		return msgBadField
	}
	return msgUnexpected
}

// Describe is describe for callers outside the package.
func Describe(err error) string { return describe(err) }
