// internal/events/bus.go
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Envelope is what subscribers receive and what relays serialize:
// {"id","kind","at","payload"}.
type Envelope struct {
	ID    uuid.UUID `json:"id"`
	Kind  Kind      `json:"kind"`
	At    time.Time `json:"at"`
	Event Event     `json:"payload"`
}

// Wrap stamps ev with a fresh id and the current time.
func Wrap(ev Event) Envelope {
	return Envelope{ID: uuid.New(), Kind: ev.Kind(), At: time.Now().UTC(), Event: ev}
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	logger *logrus.Logger
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	ch      chan Envelope
	bus     *Bus
	once    sync.Once
	dropped atomic.Int64
}

func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a consumer with the given channel buffer.
// Subscribing to a closed bus returns an already closed subscription.
func (b *Bus) Subscribe(buffer int) *Subscription {
	s := &Subscription{ch: make(chan Envelope, buffer), bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish wraps ev and delivers it to every subscriber with room for it.
func (b *Bus) Publish(ev Event) Envelope {
	env := Wrap(ev)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return env
	}
	for s := range b.subs {
		select {
		case s.ch <- env:
		default:
			n := s.dropped.Add(1)
			b.logger.WithFields(logrus.Fields{
				"kind":    env.Kind,
				"dropped": n,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}
	return env
}

// Close ends every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.once.Do(func() { close(s.ch) })
		delete(b.subs, s)
	}
}

// C returns the delivery channel. It is closed by Close on either side.
func (s *Subscription) C() <-chan Envelope { return s.ch }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s)
	s.once.Do(func() { close(s.ch) })
}
