// Package dispatch is the single entry point that applies user actions and
// timer fires to sessions.
//
// A dispatch never holds a lock across its steps. Correctness comes from the
// optimistic version check in the registry: of two events raced against the
// same version, exactly one commits and the other is discarded as stale.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/ledger"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/internal/timer"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

const tracerName = "github.com/DoyleJ11/arcade-sessions/internal/dispatch"

// Ledger is the balance store the dispatcher settles effects against.
type Ledger interface {
	Balance(ctx context.Context, owner string) (int64, error)
	Credit(ctx context.Context, owner, kind string, amount int64) (int64, error)
	Debit(ctx context.Context, owner, kind string, amount int64) (int64, error)
}

type Renderer interface {
	Render(payload engine.Payload) ([]byte, error)
}

// Presenter shows an update to users. Presenting identical content twice must
// be harmless.
type Presenter interface {
	Present(ctx context.Context, u types.Update) error
}

type WordSource interface {
	RandomWord() string
}

type Config struct {
	SpinInactivity time.Duration
	TurnTimeout    time.Duration
	ChallengeTTL   time.Duration
	WordMaxWrong   int
	DuelReward     int64
	WordReward     int64
	Paytable       engine.Paytable
}

func DefaultConfig() Config {
	return Config{
		SpinInactivity: 2 * time.Minute,
		TurnTimeout:    60 * time.Second,
		ChallengeTTL:   2 * time.Minute,
		WordMaxWrong:   7,
		Paytable:       engine.DefaultPaytable(),
	}
}

type Dispatcher struct {
	cfg      Config
	machines map[engine.Kind]engine.Machine
	sessions *session.Registry
	timers   *timer.Scheduler

	ledger    Ledger
	renderer  Renderer
	presenter Presenter
	policy    engine.SpinPolicy
	words     WordSource
	clock     timer.Clock
	newID     func() string
	log       *zap.Logger
	tracer    trace.Tracer

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(l *zap.Logger) Option       { return func(d *Dispatcher) { d.log = l } }
func WithClock(c timer.Clock) Option        { return func(d *Dispatcher) { d.clock = c } }
func WithRenderer(r Renderer) Option        { return func(d *Dispatcher) { d.renderer = r } }
func WithPresenter(p Presenter) Option      { return func(d *Dispatcher) { d.presenter = p } }
func WithPolicy(p engine.SpinPolicy) Option { return func(d *Dispatcher) { d.policy = p } }
func WithWords(w WordSource) Option         { return func(d *Dispatcher) { d.words = w } }
func WithTracer(t trace.Tracer) Option      { return func(d *Dispatcher) { d.tracer = t } }
func WithSessionIDs(f func() string) Option { return func(d *Dispatcher) { d.newID = f } }

func New(cfg Config, ledger Ledger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		ledger:    ledger,
		presenter: nopPresenter{},
		clock:     timer.RealClock(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if d.policy == nil {
		d.policy = engine.NewOddsPolicy(cfg.Paytable.Symbols, nil)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.machines = engine.Machines(
		engine.NewSpinMachine(engine.SpinConfig{Inactivity: cfg.SpinInactivity, Paytable: cfg.Paytable}),
		engine.NewDuelMachine(engine.DuelConfig{TurnTimeout: cfg.TurnTimeout, ChallengeTTL: cfg.ChallengeTTL, Reward: cfg.DuelReward}),
		engine.NewWordMachine(engine.WordConfig{Reward: cfg.WordReward}),
	)

	// The scheduler looks versions up in the registry, which cancels timers
	// through the scheduler; the closure breaks the construction cycle.
	d.timers = timer.NewScheduler(
		timer.LookupFunc(func(id string) (int64, bool) { return d.sessions.Version(id) }),
		timer.WithClock(d.clock),
		timer.WithLogger(d.log),
	)
	regOpts := []session.Option{session.WithNow(d.clock.Now)}
	if d.newID != nil {
		regOpts = append(regOpts, session.WithIDs(d.newID))
	}
	d.sessions = session.NewRegistry(d.timers, regOpts...)
	return d
}

func (d *Dispatcher) Get(id string) (session.Session, error) { return d.sessions.Get(id) }

func (d *Dispatcher) Balance(ctx context.Context, owner string) (int64, error) {
	return d.ledger.Balance(ctx, owner)
}

// History returns recent balance movements of owner when the ledger keeps
// them, and nil otherwise.
func (d *Dispatcher) History(ctx context.Context, owner string, limit int) ([]ledger.Entry, error) {
	h, ok := d.ledger.(ledger.Historian)
	if !ok {
		return nil, nil
	}
	return h.History(ctx, owner, limit)
}

// Dispatch applies one inbound event.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) (Outcome, error) {
	switch in := in.(type) {
	case UserAction:
		return d.handleAction(ctx, in)
	case TimerFired:
		return d.handleTimer(ctx, in)
	}
	return Outcome{}, fmt.Errorf("%w: unknown inbound %T", ErrInternal, in)
}

func (d *Dispatcher) handleAction(ctx context.Context, in UserAction) (out Outcome, err error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.action", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("actor.id", in.ActorID),
		attribute.String("event.type", string(in.Event.Type)),
		attribute.Int64("version.observed", in.ObservedVersion),
	))
	defer func() { endSpan(span, err) }()

	s, err := d.sessions.Get(in.SessionID)
	if err != nil {
		return Outcome{Notice: Notice(err)}, err
	}
	span.SetAttributes(attribute.String("session.kind", string(s.Kind)))
	m := d.machines[s.Kind]

	evt := in.Event
	evt.Actor = in.ActorID
	if evt.Type.Internal() || !m.Authorize(s.State, s.Payload, in.ActorID, evt) {
		err = ErrUnauthorized
		if s.Owner.Has(in.ActorID) && evt.Type == engine.EvtMove {
			err = fmt.Errorf("%w: %w", ErrUnauthorized, engine.ErrNotYourTurn)
		}
		return Outcome{Session: s, Notice: Notice(err)}, err
	}

	if in.ObservedVersion != s.Version {
		d.log.Debug("discarding stale action",
			zap.String("session_id", s.ID),
			zap.Int64("observed_version", in.ObservedVersion),
			zap.Int64("version", s.Version),
			zap.String("event", string(evt.Type)),
		)
		err = fmt.Errorf("%w: observed %d, stored %d", session.ErrStaleVersion, in.ObservedVersion, s.Version)
		return Outcome{Session: s, Notice: Notice(err)}, err
	}

	res, err := m.Transition(s.State, evt, s.Payload)
	if err != nil {
		return Outcome{Session: s, Notice: Notice(err)}, err
	}
	if err := d.checkFunds(ctx, res.RequireFunds); err != nil {
		return Outcome{Session: s, Notice: Notice(err)}, err
	}
	return d.apply(ctx, m, s, res)
}

func (d *Dispatcher) handleTimer(ctx context.Context, in TimerFired) (out Outcome, err error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.timer", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.Int64("version.expected", in.ExpectedVersion),
	))
	defer func() { endSpan(span, err) }()

	s, err := d.sessions.Get(in.SessionID)
	if err != nil {
		return Outcome{Notice: Notice(err)}, err
	}
	if s.Version != in.ExpectedVersion {
		err = fmt.Errorf("%w: timer armed at %d, stored %d", session.ErrStaleVersion, in.ExpectedVersion, s.Version)
		return Outcome{Session: s, Notice: Notice(err)}, err
	}
	span.SetAttributes(attribute.String("session.kind", string(s.Kind)))

	m := d.machines[s.Kind]
	res, err := m.Transition(s.State, engine.Event{Type: engine.EvtTimeout}, s.Payload)
	if err != nil {
		return Outcome{Session: s, Notice: Notice(err)}, err
	}
	return d.apply(ctx, m, s, res)
}

// checkFunds verifies balances read-only before commit. The debit itself is a
// post-commit effect.
func (d *Dispatcher) checkFunds(ctx context.Context, checks []engine.FundsCheck) error {
	for _, fc := range checks {
		bal, err := d.ledger.Balance(ctx, fc.Owner)
		if err != nil {
			return fmt.Errorf("%w: balance of %s: %v", ErrInternal, fc.Owner, err)
		}
		if bal < fc.Amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientResources, fc.Owner, bal, fc.Amount)
		}
	}
	return nil
}

// apply commits a transition, then arms or cancels the timer, runs effects and
// removes the session if it reached a terminal state. Follow-up internal events
// requested by effects are applied the same way against the committed session.
func (d *Dispatcher) apply(ctx context.Context, m engine.Machine, s session.Session, res engine.Result) (Outcome, error) {
	var effectErrs error
	var follow *engine.Event
	for {
		next, err := d.sessions.Commit(s.ID, s.Version, res.State, res.Payload)
		if err != nil && follow != nil {
			// Effects of the previous commit already ran, a debit included.
			d.log.Error("follow-up commit failed",
				zap.String("session_id", s.ID),
				zap.String("kind", string(s.Kind)),
				zap.Int64("version", s.Version),
				zap.String("event", string(follow.Type)),
				zap.Error(err),
			)
			return d.outcome(s, false, combine(effectErrs, err))
		}
		if err != nil {
			d.log.Debug("commit lost race", zap.String("session_id", s.ID), zap.Error(err))
			return Outcome{Session: s, Notice: Notice(err)}, err
		}

		terminal := m.Terminal(next.State)
		if terminal {
			d.timers.Cancel(next.ID)
		} else {
			d.arm(m, next)
		}

		follow, err = d.runEffects(ctx, next, res.Effects, terminal)
		effectErrs = combine(effectErrs, err)

		if terminal {
			d.sessions.Remove(next.ID)
			return d.outcome(next, true, effectErrs)
		}
		if follow == nil {
			return d.outcome(next, false, effectErrs)
		}

		res, err = m.Transition(next.State, *follow, next.Payload)
		if err != nil {
			d.log.Error("follow-up transition failed",
				zap.String("session_id", next.ID),
				zap.Int64("version", next.Version),
				zap.String("event", string(follow.Type)),
				zap.Error(err),
			)
			return d.outcome(next, false, combine(effectErrs, fmt.Errorf("%w: %v", ErrInternal, err)))
		}
		s = next
	}
}

func (d *Dispatcher) outcome(s session.Session, removed bool, err error) (Outcome, error) {
	if s.PendingTimerID == 0 {
		if id, ok := d.timers.PendingID(s.ID); ok {
			s.PendingTimerID = id
		}
	}
	return Outcome{Session: s, Applied: true, Removed: removed, Notice: Notice(err)}, err
}

func (d *Dispatcher) arm(m engine.Machine, s session.Session) {
	delay, ok := m.Timer(s.State, s.Payload)
	if !ok {
		d.timers.Cancel(s.ID)
		return
	}
	d.timers.Reschedule(s.ID, s.Version, delay, d.onTimer)
}

// onTimer runs on the timer's goroutine with only the id and armed version.
func (d *Dispatcher) onTimer(id string, version int64) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	out, err := d.Dispatch(d.ctx, TimerFired{SessionID: id, ExpectedVersion: version})
	switch {
	case err == nil:
		d.log.Info("session timer fired",
			zap.String("session_id", id),
			zap.Int64("version", out.Session.Version),
			zap.String("state", string(out.Session.State)),
			zap.Bool("removed", out.Removed),
		)
	case errors.Is(err, session.ErrStaleVersion), errors.Is(err, session.ErrNotFound):
		d.log.Debug("discarding stale timer dispatch", zap.String("session_id", id), zap.Error(err))
	default:
		d.log.Error("timer dispatch failed", zap.String("session_id", id), zap.Error(err))
	}
}

// Close removes every session and stops every timer, waiting for timer
// dispatches already running.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.timers.Close()
	d.sessions.Close()
	d.inflight.Wait()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type nopPresenter struct{}

func (nopPresenter) Present(context.Context, types.Update) error { return nil }
