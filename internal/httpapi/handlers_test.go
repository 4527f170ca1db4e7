package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/arcade-sessions/internal/dispatch"
	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/hub"
	"github.com/DoyleJ11/arcade-sessions/internal/ledger"
	"github.com/DoyleJ11/arcade-sessions/internal/render"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/internal/timer"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

type testServer struct {
	srv   *httptest.Server
	d     *dispatch.Dispatcher
	clock *timer.ManualClock
	led   *ledger.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	clock := timer.NewManualClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	led := ledger.NewMemory(500)
	h := hub.NewHub(context.Background(), log)

	d := dispatch.New(dispatch.DefaultConfig(), led,
		dispatch.WithClock(clock),
		dispatch.WithLogger(log),
		dispatch.WithPresenter(h),
		dispatch.WithRenderer(render.NewText()),
		dispatch.WithPolicy(engine.FixedPolicy{"cherry", "lemon", "bell"}),
	)
	srv := httptest.NewServer(SetupRoutes(d, h, log))
	t.Cleanup(func() {
		srv.Close()
		d.Close()
		h.Close()
	})
	return &testServer{srv: srv, d: d, clock: clock, led: led}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil, nil))
}

func TestSpinOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	var view types.SessionView
	code := ts.do(t, http.MethodPost, "/v1/spins", types.StartSpinRequest{Owner: "u1", Bet: 20}, &view)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "spin-round", view.Kind)
	assert.Equal(t, "awaiting_spin", view.State)
	assert.True(t, view.TimerPending)

	var dup types.ErrorResponse
	code = ts.do(t, http.MethodPost, "/v1/spins", types.StartSpinRequest{Owner: "u1", Bet: 20}, &dup)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "you already have a game of this kind running", dup.Error)

	var resp types.ActionResponse
	code = ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "u1", Version: 0, Type: "spin"}, &resp)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Applied)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "round_result", resp.Session.State)
	assert.Equal(t, int64(2), resp.Session.Version)
	assert.Equal(t, [3]string{"cherry", "lemon", "bell"}, resp.Session.Spin.Reels)

	code = ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "u1", Version: 0, Type: "spin"}, &resp)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already handled", resp.Notice)
	assert.False(t, resp.Applied)

	var bal types.Balance
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/balances/u1", nil, &bal))
	assert.Equal(t, int64(480), bal.Balance)
	require.Len(t, bal.Recent, 1)
	assert.Equal(t, int64(-20), bal.Recent[0].Delta)
}

func TestInsufficientBalanceIsPaymentRequired(t *testing.T) {
	ts := newTestServer(t)
	ts.led.Set("poor", 5)

	var view types.SessionView
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/v1/spins", types.StartSpinRequest{Owner: "poor", Bet: 10}, &view))

	var resp types.ActionResponse
	code := ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "poor", Type: "spin"}, &resp)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "insufficient balance", resp.Notice)
	assert.Equal(t, int64(0), resp.Session.Version)
}

func TestDuelOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	var view types.SessionView
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/v1/challenges",
		types.ChallengeRequest{Challenger: "U1", Opponent: "U2"}, &view))
	assert.Equal(t, "challenge", view.State)
	assert.ElementsMatch(t, []string{"U1", "U2"}, view.Owners)

	var resp types.ActionResponse
	code := ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "U1", Version: 0, Type: "accept"}, &resp)
	assert.Equal(t, http.StatusForbidden, code, "only the challenged player accepts")

	code = ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "U2", Version: 0, Type: "accept"}, &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "playing", resp.Session.State)
	assert.Equal(t, "U1", resp.Session.Duel.CurrentPlayer)

	col := 4
	code = ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "U1", Version: 1, Type: "move", Column: &col}, &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Session.Duel.Board[engine.BoardRows-1][3], "column 4 on the wire is index 3")

	bad := 8
	code = ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "U2", Version: 2, Type: "move", Column: &bad}, &resp)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "pick a column from 1 to 7", resp.Notice)
}

func TestWordViewHidesAnswer(t *testing.T) {
	ts := newTestServer(t)

	var view types.SessionView
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/v1/words",
		types.StartWordRequest{Owner: "u1", Word: "apple"}, &view))
	assert.Equal(t, "_____", view.Word.Masked)

	var resp types.ActionResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/actions",
		types.ActionRequest{Actor: "u1", Type: "guess_letter", Letter: "P"}, &resp))
	assert.Equal(t, "_pp__", resp.Session.Word.Masked)

	raw, err := http.Get(ts.srv.URL + "/v1/sessions/" + view.ID)
	require.NoError(t, err)
	defer raw.Body.Close()
	body, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "apple")
}

func TestExpiredSessionIsGone(t *testing.T) {
	ts := newTestServer(t)

	var view types.SessionView
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/v1/spins", types.StartSpinRequest{Owner: "u1", Bet: 1}, &view))
	ts.clock.Advance(dispatch.DefaultConfig().SpinInactivity)

	var e types.ErrorResponse
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/sessions/"+view.ID, nil, &e))
	_, err := ts.d.Get(view.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)

	var e types.ErrorResponse
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/sessions/missing", nil, &e))
	assert.Equal(t, "session expired", e.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/spins", types.StartSpinRequest{Bet: 5}, &e))
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPost, "/v1/spins", types.StartSpinRequest{Owner: "u1"}, &e))
	assert.Equal(t, "bet must be positive", e.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/sessions/x/actions",
		types.ActionRequest{Actor: "u1", Type: "teleport"}, &e))
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/sessions/x/actions",
		types.ActionRequest{Actor: "u1", Type: "guess_letter", Letter: "ab"}, &e))
}

func TestStatusFor(t *testing.T) {
	internal := fmt.Errorf("effect: %w", dispatch.ErrInternal)
	cases := map[error]int{
		session.ErrNotFound:               http.StatusNotFound,
		dispatch.ErrUnauthorized:          http.StatusForbidden,
		session.ErrStaleVersion:           http.StatusConflict,
		session.ErrAlreadyActive:          http.StatusConflict,
		dispatch.ErrInsufficientResources: http.StatusPaymentRequired,
		dispatch.ErrBadAction:             http.StatusBadRequest,
		engine.ErrColumnFull:              http.StatusUnprocessableEntity,
		internal:                          http.StatusInternalServerError,
		errors.New("boom"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestStreamDeliversUpdatesAndNotices(t *testing.T) {
	ts := newTestServer(t)

	var view types.SessionView
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/v1/words",
		types.StartWordRequest{Owner: "u1", Word: "owl"}, &view))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/v1/sessions/" + view.ID + "/stream?actor=u1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() types.ServerMessage {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
	send := func(a types.ActionRequest) {
		data, err := json.Marshal(types.ClientMessage{Type: types.MsgAction, Action: a})
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
	}

	first := read()
	require.Equal(t, types.MsgUpdate, first.Type)
	assert.Equal(t, int64(0), first.Update.Version)
	assert.Equal(t, []string{"guess_letter", "guess_word"}, first.Update.Actions)

	send(types.ActionRequest{Version: 0, Type: "guess_letter", Letter: "o"})
	upd := read()
	require.Equal(t, types.MsgUpdate, upd.Type)
	assert.Equal(t, int64(1), upd.Update.Version)

	send(types.ActionRequest{Version: 1, Type: "guess_letter", Letter: "o"})
	notice := read()
	assert.Equal(t, types.MsgNotice, notice.Type)
	assert.Equal(t, "letter already guessed", notice.Notice)

	send(types.ActionRequest{Version: 1, Type: "guess_letter", Letter: "w"})
	assert.Equal(t, int64(2), read().Update.Version)

	send(types.ActionRequest{Version: 2, Type: "guess_word", Word: "OWL"})
	final := read()
	require.Equal(t, types.MsgUpdate, final.Type)
	assert.True(t, final.Update.Final)
	assert.Empty(t, final.Update.Actions)

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestStreamUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	res, err := http.Get(ts.srv.URL + "/v1/sessions/nope/stream")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
