package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/ledger"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

// runEffects executes effects in order against the committed session. A failed
// effect is logged and never retried; the remaining effects still run. It
// returns the follow-up event requested by an EffectDraw, if any.
func (d *Dispatcher) runEffects(ctx context.Context, s session.Session, effects []engine.Effect, terminal bool) (*engine.Event, error) {
	var (
		errs        error
		image       []byte
		debitFailed bool
		draw        bool
	)
	for i, eff := range effects {
		err := safely(func() error {
			switch eff.Type {
			case engine.EffectDebit:
				_, err := d.ledger.Debit(ctx, eff.Owner, string(s.Kind), eff.Amount)
				if err != nil {
					debitFailed = true
				}
				return ledgerErr(err)

			case engine.EffectCredit:
				_, err := d.ledger.Credit(ctx, eff.Owner, string(s.Kind), eff.Amount)
				return ledgerErr(err)

			case engine.EffectRender:
				if d.renderer == nil {
					return nil
				}
				img, err := d.renderer.Render(s.Payload)
				if err != nil {
					return fmt.Errorf("%w: render: %v", ErrInternal, err)
				}
				image = img
				return nil

			case engine.EffectPresent:
				u := types.Update{
					SessionID: s.ID,
					Version:   s.Version,
					Text:      eff.Text,
					Image:     image,
					Final:     terminal,
				}
				if !terminal {
					u.Actions = actionNames(eff.Actions)
				}
				if err := d.presenter.Present(ctx, u); err != nil {
					return fmt.Errorf("%w: present: %v", ErrInternal, err)
				}
				return nil

			case engine.EffectDraw:
				draw = true
				return nil
			}
			return fmt.Errorf("%w: unknown effect %q", ErrInternal, eff.Type)
		})
		if err != nil {
			d.log.Error("effect failed",
				zap.String("session_id", s.ID),
				zap.Int64("version", s.Version),
				zap.String("kind", string(s.Kind)),
				zap.String("effect", string(eff.Type)),
				zap.Int("index", i),
				zap.String("owner", eff.Owner),
				zap.Int64("amount", eff.Amount),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("effect %s: %w", eff.Type, err))
		}
	}

	if !draw || terminal {
		return nil, errs
	}
	if debitFailed {
		return &engine.Event{Type: engine.EvtVoid}, errs
	}
	return &engine.Event{Type: engine.EvtReveal, Reels: d.policy.Draw()}, errs
}

func ledgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficient):
		return fmt.Errorf("%w: %v", ErrInsufficientResources, err)
	}
	return fmt.Errorf("%w: ledger: %v", ErrInternal, err)
}

// safely turns a panic inside an effect into ErrInternal.
func safely(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
	}()
	return f()
}

func combine(a, b error) error { return multierr.Append(a, b) }

func actionNames(evts []engine.EventType) []string {
	if evts == nil {
		return nil
	}
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = string(e)
	}
	return out
}
