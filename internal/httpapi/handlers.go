package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/arcade-sessions/internal/dispatch"
	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

// recentEntries is how many ledger movements a balance lookup returns.
const recentEntries = 10

func StartSpin(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StartSpinRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Owner == "" {
			writeError(w, http.StatusBadRequest, "owner is required")
			return
		}
		s, err := d.StartSpin(r.Context(), req.Owner, req.Bet)
		if err != nil {
			writeError(w, StatusFor(err), dispatch.Notice(err))
			return
		}
		writeJSON(w, http.StatusCreated, View(s))
	}
}

func StartWord(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StartWordRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Owner == "" {
			writeError(w, http.StatusBadRequest, "owner is required")
			return
		}
		s, err := d.StartWord(r.Context(), req.Owner, req.Word)
		if err != nil {
			writeError(w, StatusFor(err), dispatch.Notice(err))
			return
		}
		writeJSON(w, http.StatusCreated, View(s))
	}
}

func Challenge(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChallengeRequest
		if !decode(w, r, &req) {
			return
		}
		s, err := d.Challenge(r.Context(), req.Challenger, req.Opponent)
		if err != nil {
			writeError(w, StatusFor(err), dispatch.Notice(err))
			return
		}
		writeJSON(w, http.StatusCreated, View(s))
	}
}

func GetSession(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, StatusFor(err), dispatch.Notice(err))
			return
		}
		writeJSON(w, http.StatusOK, View(s))
	}
}

func Act(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ActionRequest
		if !decode(w, r, &req) {
			return
		}
		in, err := dispatch.ActionFromRequest(chi.URLParam(r, "id"), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		out, err := d.Dispatch(r.Context(), in)
		resp := types.ActionResponse{Applied: out.Applied, Removed: out.Removed, Notice: out.Notice}
		if out.Session.ID != "" {
			v := View(out.Session)
			resp.Session = &v
		}
		status := http.StatusOK
		if err != nil && !out.Applied {
			status = StatusFor(err)
		}
		writeJSON(w, status, resp)
	}
}

func GetBalance(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		bal, err := d.Balance(r.Context(), owner)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "balance unavailable")
			return
		}
		resp := types.Balance{Owner: owner, Balance: bal}
		entries, err := d.History(r.Context(), owner, recentEntries)
		if err == nil {
			for _, e := range entries {
				resp.Recent = append(resp.Recent, types.LedgerEntry{
					Kind:      e.Kind,
					Delta:     e.Delta,
					Balance:   e.Balance,
					CreatedAt: e.CreatedAt,
				})
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// StatusFor maps dispatcher errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrBadAction):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, session.ErrStaleVersion), errors.Is(err, session.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrInsufficientResources):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}
