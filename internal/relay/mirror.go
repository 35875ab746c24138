// internal/relay/mirror.go
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/events"
)

// DefaultMirrorWait is how long team refreshes are coalesced for viewers.
const DefaultMirrorWait = 250 * time.Millisecond

// Viewer is one UI connection following the lobby. Frames are JSON encoded
// event envelopes.
type Viewer struct {
	ID  uuid.UUID
	Out chan []byte
}

// Mirror fans lobby events out to UI viewers. Bursts of PayloadChanged are
// coalesced; every other event is forwarded as it arrives.
type Mirror struct {
	mu      sync.RWMutex
	viewers map[uuid.UUID]*Viewer
	sub     *events.Subscription
	refresh *events.Debouncer[events.Envelope]
	done    chan struct{}
	logger  *logrus.Logger
}

func NewMirror(bus *events.Bus, wait time.Duration, logger *logrus.Logger) *Mirror {
	if wait <= 0 {
		wait = DefaultMirrorWait
	}
	m := &Mirror{
		viewers: make(map[uuid.UUID]*Viewer),
		sub:     bus.Subscribe(256),
		done:    make(chan struct{}),
		logger:  logger,
	}
	m.refresh = events.NewDebouncer(wait, m.broadcast)
	return m
}

// Join registers a new viewer.
func (m *Mirror) Join() *Viewer {
	v := &Viewer{ID: uuid.New(), Out: make(chan []byte, 32)}
	m.mu.Lock()
	m.viewers[v.ID] = v
	n := len(m.viewers)
	m.mu.Unlock()
	m.logger.WithFields(logrus.Fields{"viewer": v.ID, "viewers": n}).Debug("Viewer joined")
	return v
}

func (m *Mirror) Leave(v *Viewer) {
	m.mu.Lock()
	delete(m.viewers, v.ID)
	m.mu.Unlock()
}

// Done is closed once Run returns.
func (m *Mirror) Done() <-chan struct{} { return m.done }

func (m *Mirror) Run(ctx context.Context) error {
	defer func() {
		m.refresh.Stop()
		m.sub.Close()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-m.sub.C():
			if !ok {
				return nil
			}
			if env.Kind == events.KindPayloadChanged {
				m.refresh.Trigger(env)
				continue
			}
			m.broadcast(env)
		}
	}
}

func (m *Mirror) broadcast(env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		m.logger.WithFields(logrus.Fields{"kind": env.Kind, "error": err}).Warn("Failed to marshal event for viewers")
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, v := range m.viewers {
		select {
		case v.Out <- data:
		default:
			m.logger.WithFields(logrus.Fields{"viewer": id, "kind": env.Kind}).Warn("Viewer too slow, dropping event")
		}
	}
}
