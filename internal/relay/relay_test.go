package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type mockPusher struct {
	mu     sync.Mutex
	pushed   map[string][][]byte
	attempts int
	fail     bool
}

func (m *mockPusher) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.fail {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	if m.pushed == nil {
		m.pushed = make(map[string][][]byte)
	}
	for _, v := range values {
		m.pushed[key] = append(m.pushed[key], v.([]byte))
	}
	return redis.NewIntResult(int64(len(m.pushed[key])), nil)
}

func (m *mockPusher) queue(key string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.pushed[key]...)
}

type mockSender struct {
	mu    sync.Mutex
	lines []string
}

func (m *mockSender) Send(cmd protocol.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chat, ok := cmd.(protocol.SendChatMessage); ok {
		m.lines = append(m.lines, chat.Text)
	}
	return nil
}

func (m *mockSender) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

func run(t *testing.T, fn func(context.Context) error) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return cancel
}

func TestHubRelayPushesEnvelopes(t *testing.T) {
	bus := events.NewBus(quietLogger())
	rdb := &mockPusher{}
	hub := NewHubRelay(bus, rdb, "", quietLogger())
	run(t, hub.Run)

	bus.Publish(events.LobbyStale{Lobby: "quiet", Players: 1})
	bus.Publish(events.LeftLobby{Lobby: "quiet"})

	require.Eventually(t, func() bool { return len(rdb.queue(DefaultHubQueue)) == 2 }, time.Second, 5*time.Millisecond)

	var first struct {
		Kind    events.Kind `json:"kind"`
		Payload struct {
			Lobby   string `json:"lobby"`
			Players int    `json:"players"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(rdb.queue(DefaultHubQueue)[0], &first))
	assert.Equal(t, events.KindLobbyStale, first.Kind)
	assert.Equal(t, "quiet", first.Payload.Lobby)
	assert.Equal(t, 1, first.Payload.Players)
}

func TestHubRelaySurvivesPushErrors(t *testing.T) {
	bus := events.NewBus(quietLogger())
	rdb := &mockPusher{fail: true}
	hub := NewHubRelay(bus, rdb, "custom", quietLogger())
	run(t, hub.Run)

	bus.Publish(events.LeftLobby{Lobby: "a"})
	require.Eventually(t, func() bool {
		rdb.mu.Lock()
		defer rdb.mu.Unlock()
		return rdb.attempts == 1
	}, time.Second, 5*time.Millisecond)

	rdb.mu.Lock()
	rdb.fail = false
	rdb.mu.Unlock()
	bus.Publish(events.LeftLobby{Lobby: "b"})

	require.Eventually(t, func() bool { return len(rdb.queue("custom")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubRelayStopsWhenBusCloses(t *testing.T) {
	bus := events.NewBus(quietLogger())
	hub := NewHubRelay(bus, &mockPusher{}, "", quietLogger())
	done := make(chan error, 1)
	go func() { done <- hub.Run(context.Background()) }()

	bus.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestAnnouncement(t *testing.T) {
	assert.Equal(t, []string{"Teams balanced with 2 swap(s)"},
		Announcement(events.LobbyBalanced{Swaps: []balance.Swap{{A: "a", B: "b"}, {A: "c", B: "d"}}}))
	assert.Equal(t, []string{"Game starts in 10 seconds"}, Announcement(events.StartArmed{Delay: 10 * time.Second}))
	assert.Equal(t, []string{"Start cancelled: bob left"}, Announcement(events.StartCancelled{Reason: "bob left"}))
	assert.Equal(t, []string{"hello"}, Announcement(events.Notice{Text: " hello "}))
	assert.Nil(t, Announcement(events.LeftLobby{}))
	assert.Nil(t, Announcement(events.Notice{}))
}

func TestSplitChat(t *testing.T) {
	lines := splitChat("aaa bbb ccc", 7)
	assert.Equal(t, []string{"aaa bbb", "ccc"}, lines)

	lines = splitChat("xxxxxxxxxx y", 4)
	assert.Equal(t, []string{"xxxx", "xxxx", "xx y"}, lines)

	long := strings.Repeat("word ", 100)
	for _, line := range splitChat(long, MaxChatLength) {
		assert.LessOrEqual(t, len(line), MaxChatLength)
	}
}

func TestAnnouncerSendsChat(t *testing.T) {
	bus := events.NewBus(quietLogger())
	sender := &mockSender{}
	run(t, NewAnnouncer(bus, sender, quietLogger()).Run)

	bus.Publish(events.PlayerJoined{Lobby: "l", PlayerID: "a"})
	bus.Publish(events.Notice{Lobby: "l", Text: "Stats unavailable for a"})

	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Stats unavailable for a", sender.sent()[0])
}

func receive(t *testing.T, v *Viewer) events.Kind {
	t.Helper()
	select {
	case frame := <-v.Out:
		var env struct {
			Kind events.Kind `json:"kind"`
		}
		require.NoError(t, json.Unmarshal(frame, &env))
		return env.Kind
	case <-time.After(time.Second):
		t.Fatal("no frame for viewer")
	}
	return ""
}

func TestMirrorForwardsEvents(t *testing.T) {
	bus := events.NewBus(quietLogger())
	m := NewMirror(bus, time.Hour, quietLogger())
	run(t, m.Run)

	a, b := m.Join(), m.Join()
	bus.Publish(events.PlayerJoined{Lobby: "l", PlayerID: "x"})
	assert.Equal(t, events.KindPlayerJoined, receive(t, a))
	assert.Equal(t, events.KindPlayerJoined, receive(t, b))

	m.Leave(b)
	bus.Publish(events.PlayerLeft{Lobby: "l", PlayerID: "x"})
	assert.Equal(t, events.KindPlayerLeft, receive(t, a))
	select {
	case <-b.Out:
		t.Fatal("viewer received after leaving")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMirrorCoalescesRefreshes(t *testing.T) {
	bus := events.NewBus(quietLogger())
	m := NewMirror(bus, 50*time.Millisecond, quietLogger())
	run(t, m.Run)
	v := m.Join()

	for i := 0; i < 5; i++ {
		bus.Publish(events.PayloadChanged{Lobby: "l"})
	}
	assert.Equal(t, events.KindPayloadChanged, receive(t, v))
	assert.Equal(t, events.KindPayloadChanged, receive(t, v))
	select {
	case <-v.Out:
		t.Fatal("refreshes were not coalesced")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestMirrorDoneAfterRun(t *testing.T) {
	bus := events.NewBus(quietLogger())
	m := NewMirror(bus, 0, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	cancel()
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("mirror did not stop")
	}
}
