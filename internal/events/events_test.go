package events

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(quietLogger())
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	env := bus.Publish(LobbyReady{Lobby: "ranked 2v2"})

	for _, s := range []*Subscription{a, b} {
		select {
		case got := <-s.C():
			assert.Equal(t, env.ID, got.ID)
			assert.Equal(t, KindLobbyReady, got.Kind)
			assert.Equal(t, LobbyReady{Lobby: "ranked 2v2"}, got.Event)
		default:
			t.Fatal("expected a delivered event")
		}
	}
}

func TestBusDropsForFullSubscriber(t *testing.T) {
	bus := NewBus(quietLogger())
	slow := bus.Subscribe(1)
	fast := bus.Subscribe(8)

	bus.Publish(Notice{Text: "one"})
	bus.Publish(Notice{Text: "two"})
	bus.Publish(Notice{Text: "three"})

	assert.Len(t, slow.C(), 1)
	assert.Len(t, fast.C(), 3)
	assert.Equal(t, int64(2), slow.dropped.Load())

	got := <-slow.C()
	assert.Equal(t, Notice{Text: "one"}, got.Event)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus(quietLogger())
	s := bus.Subscribe(1)
	s.Close()
	s.Close()

	bus.Publish(LeftLobby{Lobby: "x"})
	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestBusClose(t *testing.T) {
	bus := NewBus(quietLogger())
	s := bus.Subscribe(1)
	bus.Close()

	_, ok := <-s.C()
	assert.False(t, ok)

	late := bus.Subscribe(1)
	_, ok = <-late.C()
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		bus.Publish(LeftLobby{})
		s.Close()
		bus.Close()
	})
}

func TestEnvelopeJSON(t *testing.T) {
	env := Wrap(PlayerJoined{Lobby: "l", PlayerID: "p1", Slot: 3})

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "player-joined", wire["kind"])
	assert.Equal(t, env.ID.String(), wire["id"])
	payload := wire["payload"].(map[string]any)
	assert.Equal(t, "p1", payload["playerId"])
	assert.Equal(t, float64(3), payload["slot"])
}

type recorder struct {
	mu  sync.Mutex
	got []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.got...)
}

func TestDebouncerLeadingAndTrailing(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(50*time.Millisecond, rec.add)
	defer d.Stop()

	d.Trigger(1)
	assert.Equal(t, []int{1}, rec.values())

	d.Trigger(2)
	d.Trigger(3)
	d.Trigger(4)
	assert.Equal(t, []int{1}, rec.values())

	assert.Eventually(t, func() bool {
		v := rec.values()
		return len(v) == 2 && v[1] == 4
	}, time.Second, 5*time.Millisecond)

	// quiet window passes, next value is leading again
	time.Sleep(150 * time.Millisecond)
	d.Trigger(5)
	assert.Equal(t, []int{1, 4, 5}, rec.values())
}

func TestDebouncerStop(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(20*time.Millisecond, rec.add)

	d.Trigger(1)
	d.Trigger(2)
	d.Stop()
	d.Trigger(3)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []int{1}, rec.values())
}
