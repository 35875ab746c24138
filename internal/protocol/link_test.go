package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkRedials(t *testing.T) {
	var accepted atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the first attempt is refused outright
		if accepted.Add(1) == 1 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Write(r.Context(), websocket.MessageText, []byte(snapshotFrame))
		c.Close(websocket.StatusGoingAway, "restarting")
	}))
	defer srv.Close()

	link := NewLink("ws"+strings.TrimPrefix(srv.URL, "http"), quietLogger())
	link.InitialInterval = time.Millisecond
	link.MaxInterval = 5 * time.Millisecond
	assert.ErrorIs(t, link.Send(LobbyStart{}), ErrClosed)

	var mu sync.Mutex
	snapshots, closed := 0, 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- link.Run(ctx, func(in Inbound) {
			mu.Lock()
			defer mu.Unlock()
			switch in.(type) {
			case LobbySnapshot:
				snapshots++
			case ConnectionClosed:
				closed++
			}
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return snapshots >= 2 && closed >= 2
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("link did not stop")
	}
	assert.False(t, link.Connected())
}
