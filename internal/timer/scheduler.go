// Package timer owns at most one pending single-shot timer per session.
package timer

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrTimerPending = errors.New("timer already pending for session")

// VersionLookup reports the current version of a live session.
type VersionLookup interface {
	Version(sessionID string) (int64, bool)
}

type LookupFunc func(sessionID string) (int64, bool)

func (f LookupFunc) Version(id string) (int64, bool) { return f(id) }

// FireFunc runs when a timer fires for a session whose version still matches
// the one the timer was armed with. It receives only the id and that version.
type FireFunc func(sessionID string, version int64)

type entry struct {
	token   uint64
	version int64
	timer   Timer
}

type Scheduler struct {
	clock  Clock
	lookup VersionLookup
	log    *zap.Logger

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
	closed  bool
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Scheduler) { s.log = l } }

func NewScheduler(lookup VersionLookup, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   RealClock(),
		lookup:  lookup,
		log:     zap.NewNop(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms a timer for the session. It fails with ErrTimerPending if one
// is already armed; use Reschedule to replace it.
func (s *Scheduler) Schedule(sessionID string, expectedVersion int64, delay time.Duration, onFire FireFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if _, ok := s.entries[sessionID]; ok {
		return ErrTimerPending
	}
	s.arm(sessionID, expectedVersion, delay, onFire)
	return nil
}

// Reschedule cancels any pending timer for the session and arms a new one.
// It leaves the pending timer alone when expectedVersion is no longer the
// session's current version: a newer commit owns the timer then.
func (s *Scheduler) Reschedule(sessionID string, expectedVersion int64, delay time.Duration, onFire FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if e, ok := s.entries[sessionID]; ok && e.version > expectedVersion {
		s.log.Debug("skipping rearm behind pending timer",
			zap.String("session_id", sessionID),
			zap.Int64("armed_version", e.version),
			zap.Int64("requested_version", expectedVersion),
		)
		return
	}
	if current, live := s.lookup.Version(sessionID); !live || current != expectedVersion {
		s.log.Debug("skipping stale rearm",
			zap.String("session_id", sessionID),
			zap.Int64("requested_version", expectedVersion),
			zap.Int64("current_version", current),
			zap.Bool("live", live),
		)
		return
	}
	s.stopLocked(sessionID)
	s.arm(sessionID, expectedVersion, delay, onFire)
}

// Cancel is best effort and safe on fired or already cancelled timers.
func (s *Scheduler) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(sessionID)
}

func (s *Scheduler) arm(sessionID string, version int64, delay time.Duration, onFire FireFunc) {
	s.seq++
	token := s.seq
	e := &entry{token: token, version: version}
	s.entries[sessionID] = e
	e.timer = s.clock.AfterFunc(delay, func() { s.fire(sessionID, token, version, onFire) })
}

func (s *Scheduler) stopLocked(sessionID string) {
	if e, ok := s.entries[sessionID]; ok {
		e.timer.Stop()
		delete(s.entries, sessionID)
	}
}

func (s *Scheduler) fire(sessionID string, token uint64, version int64, onFire FireFunc) {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if !ok || e.token != token {
		// Replaced or cancelled after the runtime had already started the callback.
		s.mu.Unlock()
		return
	}
	delete(s.entries, sessionID)
	s.mu.Unlock()

	current, live := s.lookup.Version(sessionID)
	if !live || current != version {
		s.log.Debug("discarding stale timer fire",
			zap.String("session_id", sessionID),
			zap.Int64("armed_version", version),
			zap.Int64("current_version", current),
			zap.Bool("live", live),
		)
		return
	}
	onFire(sessionID, version)
}

// Pending returns how many timers are armed for the session: zero or one.
func (s *Scheduler) Pending(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sessionID]; ok {
		return 1
	}
	return 0
}

// PendingID returns an identifier of the pending timer, if any.
func (s *Scheduler) PendingID(sessionID string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return 0, false
	}
	return e.token, true
}

// Len returns the total number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every timer; later schedules are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		s.stopLocked(id)
	}
	s.closed = true
}
