package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

func TestSessions_TTL(t *testing.T) {
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	s := NewSessions(30 * time.Minute)
	s.now = func() time.Time { return now }

	s.Start(1, StateAddRecord)
	s.Update(1, func(sess *Session) { sess.Params[domain.FieldFirstName] = "Jane" })

	now = now.Add(29 * time.Minute)
	assert.Equal(t, StateAddRecord, s.Get(1).State)

	now = now.Add(31 * time.Minute)
	assert.Equal(t, StateIdle, s.Get(1).State)
	assert.Empty(t, s.Get(1).Params)
}

func TestSessions_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	s := NewSessions(0)
	s.now = func() time.Time { return now }
	s.Start(1, StateDeleteRecord)

	now = now.Add(365 * 24 * time.Hour)
	assert.Equal(t, StateDeleteRecord, s.Get(1).State)
	assert.Zero(t, s.Sweep())
}

func TestSessions_GetReturnsCopy(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Start(1, StateAddRecord)

	got := s.Get(1)
	got.Params[domain.FieldCompany] = "Beta"
	assert.NotContains(t, s.Get(1).Params, domain.FieldCompany)
}

func TestSessions_Sweep(t *testing.T) {
	now := time.Now()
	s := NewSessions(time.Minute)
	s.now = func() time.Time { return now }
	s.Start(1, StateAddRecord)
	s.Start(2, StateImportCSV)

	now = now.Add(2 * time.Minute)
	s.Update(2, func(*Session) {})
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, StateIdle, s.Get(1).State)
}

func TestThrottler(t *testing.T) {
	th := NewThrottler(map[string]config.Throttle{
		kindText: {Requests: 2, Period: time.Hour},
	})

	assert.True(t, th.Allow(1, kindText))
	assert.True(t, th.Allow(1, kindText))
	assert.False(t, th.Allow(1, kindText))
	assert.True(t, th.Allow(2, kindText), "users have separate budgets")
	assert.True(t, th.Allow(1, kindCallback), "unconfigured kinds pass")

	th.Forget(1)
	assert.True(t, th.Allow(1, kindText))
}

func TestThrottler_PruneRefilled(t *testing.T) {
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	th := NewThrottler(map[string]config.Throttle{
		kindText: {Requests: 2, Period: time.Minute},
	})
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow(1, kindText))
	assert.True(t, th.Allow(2, kindText))
	assert.True(t, th.Allow(2, kindText))
	assert.Zero(t, th.Prune(), "partially drained limiters stay")

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, th.Prune())
	assert.Len(t, th.buckets, 1)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, th.Prune())
	assert.Empty(t, th.buckets)
	assert.True(t, th.Allow(2, kindText))
}
