// internal/relay/hub.go
package relay

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/cache"
	"github.com/jason-s-yu/lobbyhost/internal/events"
)

// DefaultHubQueue is the Redis list consumers read lobby events from.
const DefaultHubQueue = "lobbyhost:events"

const pushTimeout = 2 * time.Second

// HubRelay forwards every event envelope to a Redis list so that other
// services can follow the lobby without talking to this process.
type HubRelay struct {
	sub    *events.Subscription
	rdb    cache.Pusher
	queue  string
	logger *logrus.Logger
}

func NewHubRelay(bus *events.Bus, rdb cache.Pusher, queue string, logger *logrus.Logger) *HubRelay {
	if queue == "" {
		queue = DefaultHubQueue
	}
	return &HubRelay{
		sub:    bus.Subscribe(256),
		rdb:    rdb,
		queue:  queue,
		logger: logger,
	}
}

// Run pushes envelopes until ctx ends or the bus closes. Push failures are
// logged and the envelope is skipped.
func (h *HubRelay) Run(ctx context.Context) error {
	defer h.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-h.sub.C():
			if !ok {
				return nil
			}
			pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
			err := cache.PushJSON(pushCtx, h.rdb, h.queue, env)
			cancel()
			if err != nil {
				h.logger.WithFields(logrus.Fields{
					"kind":  env.Kind,
					"queue": h.queue,
					"error": err,
				}).Warn("Failed to relay event")
			}
		}
	}
}
