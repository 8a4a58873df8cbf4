package telegram

import (
	"sync"
	"time"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

// State is the conversation step a subscriber is in.
type State int

const (
	StateIdle State = iota
	StateAddRecord
	StateUpdateRecord
	StateDeleteRecord
	StateImportCSV
	StateImporting
	StateExportCSV
	StateDeleteAllRecords
	StateDeleteUser
	StateUpcoming
)

func (s State) String() string {
	switch s {
	case StateAddRecord:
		return "add_record"
	case StateUpdateRecord:
		return "update_record"
	case StateDeleteRecord:
		return "delete_record"
	case StateImportCSV:
		return "import_csv"
	case StateImporting:
		return "importing"
	case StateExportCSV:
		return "export_csv"
	case StateDeleteAllRecords:
		return "delete_all_records"
	case StateDeleteUser:
		return "delete_user"
	case StateUpcoming:
		return "upcoming"
	}
	return "idle"
}

// Session is the in-memory conversation of one subscriber.
type Session struct {
	State    State
	Awaiting domain.Field // field the next text message fills
	Params   map[domain.Field]string
	RecordID string // set once an update flow has loaded its record

	touched time.Time
}

func (s Session) clone() Session {
	out := s
	out.Params = make(map[domain.Field]string, len(s.Params))
	for k, v := range s.Params {
		out.Params[k] = v
	}
	return out
}

// Sessions keeps conversations per subscriber. Sessions idle for longer than
// ttl are forgotten; a zero ttl keeps them until reset.
type Sessions struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[int64]*Session
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, m: make(map[int64]*Session)}
}

// Get returns a copy of the subscriber's session, idle if none is live.
func (s *Sessions) Get(id int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.live(id); sess != nil {
		return sess.clone()
	}
	return Session{Params: map[domain.Field]string{}}
}

// Update mutates the session under the lock and refreshes its idle timer.
func (s *Sessions) Update(id int64, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(id)
	if sess == nil {
		sess = &Session{Params: map[domain.Field]string{}}
		s.m[id] = sess
	}
	fn(sess)
	sess.touched = s.now()
}

// Start replaces the session with a fresh one in the given state.
func (s *Sessions) Start(id int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = &Session{State: st, Params: map[domain.Field]string{}, touched: s.now()}
}

// Reset drops the session.
func (s *Sessions) Reset(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

// Sweep drops expired sessions and reports how many were removed.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.m {
		if s.expired(sess) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

func (s *Sessions) live(id int64) *Session {
	sess, ok := s.m[id]
	if !ok {
		return nil
	}
	if s.expired(sess) {
		delete(s.m, id)
		return nil
	}
	return sess
}

func (s *Sessions) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.touched) > s.ttl
}
