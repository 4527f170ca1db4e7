package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

// ErrBadAction is returned for wire actions that cannot be decoded into an
// event.
var ErrBadAction = errors.New("bad action")

// Inbound is an event delivered to Dispatch.
type Inbound interface{ isInbound() }

// UserAction is raised by a front end on behalf of ActorID. ObservedVersion is
// the session version the actor was looking at.
type UserAction struct {
	SessionID       string
	ActorID         string
	ObservedVersion int64
	Event           engine.Event
}

// TimerFired is raised by the timer scheduler.
type TimerFired struct {
	SessionID       string
	ExpectedVersion int64
}

func (UserAction) isInbound() {}
func (TimerFired) isInbound() {}

// Outcome describes what a Dispatch call did.
type Outcome struct {
	Session session.Session
	// Applied is true when at least one transition was committed.
	Applied bool
	// Removed is true when the session reached a terminal state and is gone.
	Removed bool
	// Notice is the short user-facing message for the result.
	Notice string
}

// ActionFromRequest converts a wire action into a UserAction. Columns are
// numbered from 1 on the wire.
func ActionFromRequest(sessionID string, req types.ActionRequest) (UserAction, error) {
	if req.Actor == "" {
		return UserAction{}, fmt.Errorf("%w: actor is required", ErrBadAction)
	}
	evt := engine.Event{Type: engine.EventType(req.Type)}
	switch evt.Type {
	case engine.EvtSpin, engine.EvtAccept, engine.EvtDecline:
	case engine.EvtMove:
		if req.Column == nil {
			return UserAction{}, fmt.Errorf("%w: column is required", ErrBadAction)
		}
		evt.Column = *req.Column - 1
	case engine.EvtGuessLetter:
		letter := strings.TrimSpace(req.Letter)
		if utf8.RuneCountInString(letter) != 1 {
			return UserAction{}, fmt.Errorf("%w: letter must be a single character", ErrBadAction)
		}
		evt.Letter, _ = utf8.DecodeRuneInString(letter)
	case engine.EvtGuessWord:
		evt.Word = req.Word
	default:
		return UserAction{}, fmt.Errorf("%w: unknown action %q", ErrBadAction, req.Type)
	}
	return UserAction{
		SessionID:       sessionID,
		ActorID:         req.Actor,
		ObservedVersion: req.Version,
		Event:           evt,
	}, nil
}
