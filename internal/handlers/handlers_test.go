package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/controller"
	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
	"github.com/jason-s-yu/lobbyhost/internal/relay"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// mockController records every call it receives.
type mockController struct {
	mu       sync.Mutex
	calls    []string
	commands []protocol.Command
	delay    time.Duration
	plan     balance.Plan
	err      error
	snap     controller.Snapshot
}

func (m *mockController) record(call string, origin controller.Origin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("%s:%s", call, origin))
}

func (m *mockController) Snapshot(ctx context.Context) (controller.Snapshot, error) {
	return m.snap, m.err
}

func (m *mockController) Balance(ctx context.Context, origin controller.Origin, requester string) (balance.Plan, error) {
	m.record("balance", origin)
	return m.plan, m.err
}

func (m *mockController) StartGame(ctx context.Context, origin controller.Origin, requester string, delay time.Duration) error {
	m.record("start", origin)
	m.delay = delay
	return m.err
}

func (m *mockController) CancelStart(ctx context.Context, origin controller.Origin, requester string) error {
	m.record("abort", origin)
	return m.err
}

func (m *mockController) Swap(ctx context.Context, origin controller.Origin, requester, a, b string) error {
	m.record("swap "+a+" "+b, origin)
	return m.err
}

func (m *mockController) Command(ctx context.Context, origin controller.Origin, requester string, cmd protocol.Command) error {
	m.record(cmd.Type(), origin)
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.mu.Unlock()
	return m.err
}

func newMux(ctrl LobbyController, mirror *relay.Mirror) *http.ServeMux {
	logger := quietLogger()
	mux := http.NewServeMux()
	mux.Handle("GET /lobby", LobbyStateHandler(ctrl))
	mux.Handle("POST /lobby/balance", BalanceHandler(logger, ctrl))
	mux.Handle("POST /lobby/start", StartHandler(ctrl))
	mux.Handle("POST /lobby/abort", AbortHandler(ctrl))
	mux.Handle("POST /lobby/swap", SwapHandler(ctrl))
	mux.Handle("POST /lobby/chat", ChatHandler(ctrl))
	mux.Handle("POST /lobby/slots/{slot}/{action}", SlotHandler(ctrl))
	if mirror != nil {
		mux.Handle("GET /lobby/ws", MirrorWSHandler(logger, ctrl, mirror, []string{"*"}))
	}
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestLobbyState(t *testing.T) {
	ctrl := &mockController{snap: controller.Snapshot{State: controller.StateReady, Lobby: "ranked 2v2"}}
	w := do(newMux(ctrl, nil), "GET", "/lobby", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		State string `json:"state"`
		Lobby string `json:"lobby"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ready", got.State)
	assert.Equal(t, "ranked 2v2", got.Lobby)
}

func TestBalance(t *testing.T) {
	ctrl := &mockController{plan: balance.Plan{Swaps: []balance.Swap{{A: "a", B: "b"}}}}
	w := do(newMux(ctrl, nil), "POST", "/lobby/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"balance:local-operator"}, ctrl.calls)

	var plan balance.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, ctrl.plan.Swaps, plan.Swaps)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{controller.ErrNotHost, http.StatusForbidden},
		{fmt.Errorf("%w: x", controller.ErrPermission), http.StatusForbidden},
		{controller.ErrNoLobby, http.StatusConflict},
		{controller.ErrSwapPending, http.StatusConflict},
		{fmt.Errorf("%w: b", balance.ErrStatsUnavailable), http.StatusConflict},
		{balance.ErrTooManyPlayers, http.StatusUnprocessableEntity},
		{controller.ErrStopped, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		ctrl := &mockController{err: tc.err}
		w := do(newMux(ctrl, nil), "POST", "/lobby/balance", "")
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), tc.err.Error())
	}
}

func TestStart(t *testing.T) {
	ctrl := &mockController{}
	mux := newMux(ctrl, nil)

	w := do(mux, "POST", "/lobby/start", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Zero(t, ctrl.delay)

	w = do(mux, "POST", "/lobby/start", `{"delaySeconds":5}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 5*time.Second, ctrl.delay)

	w = do(mux, "POST", "/lobby/start", `{"delaySeconds":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(mux, "POST", "/lobby/abort", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"start:local-operator", "start:local-operator", "abort:local-operator"}, ctrl.calls)
}

func TestSwap(t *testing.T) {
	ctrl := &mockController{}
	mux := newMux(ctrl, nil)

	assert.Equal(t, http.StatusBadRequest, do(mux, "POST", "/lobby/swap", `{"a":"x"}`).Code)
	assert.Equal(t, http.StatusAccepted, do(mux, "POST", "/lobby/swap", `{"a":"x","b":"y"}`).Code)
	assert.Equal(t, []string{"swap x y:local-operator"}, ctrl.calls)
}

func TestSlotActions(t *testing.T) {
	ctrl := &mockController{}
	mux := newMux(ctrl, nil)

	for _, action := range []string{"open", "close", "kick", "ban"} {
		assert.Equal(t, http.StatusAccepted, do(mux, "POST", "/lobby/slots/3/"+action, "").Code)
	}
	assert.Equal(t, []protocol.Command{
		protocol.OpenSlot{Slot: 3}, protocol.CloseSlot{Slot: 3},
		protocol.KickSlot{Slot: 3}, protocol.BanSlot{Slot: 3},
	}, ctrl.commands)

	assert.Equal(t, http.StatusNotFound, do(mux, "POST", "/lobby/slots/3/explode", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, "POST", "/lobby/slots/x/open", "").Code)
}

func TestChat(t *testing.T) {
	ctrl := &mockController{}
	mux := newMux(ctrl, nil)

	assert.Equal(t, http.StatusBadRequest, do(mux, "POST", "/lobby/chat", `{}`).Code)
	assert.Equal(t, http.StatusAccepted, do(mux, "POST", "/lobby/chat", `{"text":"gl hf"}`).Code)
	assert.Equal(t, []protocol.Command{protocol.SendChatMessage{Text: "gl hf"}}, ctrl.commands)
}

func TestMirrorStream(t *testing.T) {
	bus := events.NewBus(quietLogger())
	mirror := relay.NewMirror(bus, 0, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mirror.Run(ctx)

	ctrl := &mockController{snap: controller.Snapshot{State: controller.StateLobbyActive, Lobby: "ffa"}}
	srv := httptest.NewServer(newMux(ctrl, mirror))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/lobby/ws"
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{Subprotocols: []string{MirrorSubprotocol}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	readKind := func() (string, json.RawMessage) {
		readCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		_, data, err := c.Read(readCtx)
		require.NoError(t, err)
		var frame struct {
			Kind    string          `json:"kind"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame.Kind, frame.Payload
	}

	kind, payload := readKind()
	assert.Equal(t, "snapshot", kind)
	assert.Contains(t, string(payload), `"lobby":"ffa"`)

	bus.Publish(events.LobbyStale{Lobby: "ffa", Players: 1})
	kind, _ = readKind()
	assert.Equal(t, string(events.KindLobbyStale), kind)
}

func TestMirrorRejectsWrongSubprotocol(t *testing.T) {
	bus := events.NewBus(quietLogger())
	mirror := relay.NewMirror(bus, 0, quietLogger())
	srv := httptest.NewServer(newMux(&mockController{}, mirror))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/lobby/ws", nil)
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}
