// Package session holds the live, memory-resident game sessions.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
)

var (
	ErrAlreadyActive = errors.New("session already active")
	ErrNotFound      = errors.New("session not found")
	ErrStaleVersion  = errors.New("stale session version")
)

// OwnerKey is a single actor, or an ordered pair for two-player games.
type OwnerKey struct {
	First  string
	Second string
}

func Solo(id string) OwnerKey { return OwnerKey{First: id} }

func Pair(first, second string) OwnerKey { return OwnerKey{First: first, Second: second} }

// Participants returns the non-empty ids of the key.
func (k OwnerKey) Participants() []string {
	if k.Second == "" {
		return []string{k.First}
	}
	return []string{k.First, k.Second}
}

func (k OwnerKey) Has(id string) bool {
	return id != "" && (k.First == id || k.Second == id)
}

type Session struct {
	ID             string
	Owner          OwnerKey
	Kind           engine.Kind
	State          engine.State
	Payload        engine.Payload
	Version        int64
	CreatedAt      time.Time
	LastActivityAt time.Time
	// PendingTimerID identifies the armed timer, zero when none is pending.
	PendingTimerID uint64
}

// Timers is the part of the timer scheduler the registry drives.
type Timers interface {
	Cancel(sessionID string)
	PendingID(sessionID string) (uint64, bool)
}

type activeKey struct {
	participant string
	kind        engine.Kind
}

type Registry struct {
	timers Timers
	now    func() time.Time
	newID  func() string

	mu       sync.Mutex
	sessions map[string]*Session
	active   map[activeKey]string
}

type Option func(*Registry)

func WithNow(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func WithIDs(newID func() string) Option { return func(r *Registry) { r.newID = newID } }

func NewRegistry(timers Timers, opts ...Option) *Registry {
	r := &Registry{
		timers:   timers,
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
		active:   make(map[activeKey]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a session at version 0. Every participant may hold at most
// one active session per kind.
func (r *Registry) Create(owner OwnerKey, kind engine.Kind, state engine.State, payload engine.Payload) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range owner.Participants() {
		if id, ok := r.active[activeKey{p, kind}]; ok {
			return Session{}, fmt.Errorf("%w: %s already in %s session %s", ErrAlreadyActive, p, kind, id)
		}
	}

	now := r.now()
	s := &Session{
		ID:             r.newID(),
		Owner:          owner,
		Kind:           kind,
		State:          state,
		Payload:        payload,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	r.sessions[s.ID] = s
	for _, p := range owner.Participants() {
		r.active[activeKey{p, kind}] = s.ID
	}
	return *s, nil
}

func (r *Registry) Get(id string) (Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	var out Session
	if ok {
		out = *s
	}
	r.mu.Unlock()

	if !ok {
		return Session{}, ErrNotFound
	}
	if tid, pending := r.timers.PendingID(id); pending {
		out.PendingTimerID = tid
	}
	return out, nil
}

// Version reports the current version of a live session.
func (r *Registry) Version(id string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return 0, false
	}
	return s.Version, true
}

// ActiveFor returns the id of the participant's active session of kind.
func (r *Registry) ActiveFor(participant string, kind engine.Kind) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[activeKey{participant, kind}]
	return id, ok
}

// Commit replaces state and payload and bumps the version by one, only if the
// stored version still equals expected.
func (r *Registry) Commit(id string, expected int64, state engine.State, payload engine.Payload) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.Version != expected {
		return Session{}, fmt.Errorf("%w: expected %d, stored %d", ErrStaleVersion, expected, s.Version)
	}
	s.State = state
	s.Payload = payload
	s.Version++
	s.LastActivityAt = r.now()
	return *s, nil
}

// Remove deletes the session and cancels its timer. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) (Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		r.removeLocked(s)
	}
	r.mu.Unlock()

	r.timers.Cancel(id)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (r *Registry) removeLocked(s *Session) {
	delete(r.sessions, s.ID)
	for _, p := range s.Owner.Participants() {
		k := activeKey{p, s.Kind}
		if r.active[k] == s.ID {
			delete(r.active, k)
		}
	}
}

// Idle returns the sessions whose last activity is older than idle, oldest first.
func (r *Registry) Idle(idle time.Duration) []Session {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	var out []Session
	for _, s := range r.sessions {
		if s.LastActivityAt.Before(cutoff) {
			out = append(out, *s)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	return out
}

// RemoveIfVersion removes the session only if it was not mutated since version.
func (r *Registry) RemoveIfVersion(id string, version int64) (Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Version != version {
		r.mu.Unlock()
		return Session{}, false
	}
	r.removeLocked(s)
	r.mu.Unlock()

	r.timers.Cancel(id)
	return *s, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close removes every session and cancels their timers.
func (r *Registry) Close() []Session {
	r.mu.Lock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	clear(r.sessions)
	clear(r.active)
	r.mu.Unlock()

	for _, s := range out {
		r.timers.Cancel(s.ID)
	}
	return out
}
