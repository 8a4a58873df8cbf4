package store

import (
	"context"
	"errors"
	"time"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

// ErrNotFound is returned when a subscriber or record does not exist.
var ErrNotFound = errors.New("not found")

// Reminders is the combined result of the default and custom reminder channels.
type Reminders struct {
	Header  []string
	Records []domain.Record
}

// Repo defines storage operations for subscribers and their birthday records.
// Every record operation is scoped by subscriber id.
type Repo interface {
	// EnsureSubscriber registers the subscriber on first contact and
	// refreshes the last interaction time afterwards.
	EnsureSubscriber(ctx context.Context, id int64, at time.Time) (created bool, err error)
	GetSubscriber(ctx context.Context, id int64) (*domain.Subscriber, error)
	ListSubscriberIDs(ctx context.Context) ([]int64, error)
	CountSubscribers(ctx context.Context) (int, error)
	SetNotifyBeforeDays(ctx context.Context, id int64, days int) error
	// DeleteSubscriber removes the subscriber together with all records.
	DeleteSubscriber(ctx context.Context, id int64) error

	AddRecords(ctx context.Context, sid int64, recs []domain.Record) (int, error)
	AddRecord(ctx context.Context, sid int64, fields map[domain.Field]string) (int64, error)
	GetRecordByID(ctx context.Context, sid, id int64) (*domain.Record, error)
	UpdateRecordByID(ctx context.Context, sid, id int64, fields map[domain.Field]string) error
	DeleteRecordByID(ctx context.Context, sid, id int64) error
	CountRecords(ctx context.Context, sid int64) (int, error)
	GetAllRecords(ctx context.Context, sid int64) ([]domain.Record, error)
	Flush(ctx context.Context, sid int64) error

	DefaultReminders(ctx context.Context, sid int64, ref time.Time, offsets []int) ([]domain.Record, error)
	CustomReminders(ctx context.Context, sid int64, ref time.Time) ([]domain.Record, error)
	AllReminders(ctx context.Context, sid int64, ref time.Time, offsets []int) (Reminders, error)
	IntervalRecords(ctx context.Context, sid int64, iv domain.Interval) ([]domain.Record, error)

	Close() error
}
