// internal/protocol/link.go
package protocol

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// Link keeps a connection to the client open, redialing with exponential
// backoff whenever it drops. Send fails with ErrClosed while disconnected.
type Link struct {
	url    string
	logger *logrus.Logger

	// InitialInterval and MaxInterval bound the redial schedule.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	mu   sync.RWMutex
	conn *Conn
}

func NewLink(url string, logger *logrus.Logger) *Link {
	return &Link{
		url:             url,
		logger:          logger,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (l *Link) Send(cmd Command) error {
	l.mu.RLock()
	c := l.conn
	l.mu.RUnlock()
	if c == nil {
		return ErrClosed
	}
	return c.Send(cmd)
}

// Connected reports whether a connection is currently up.
func (l *Link) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conn != nil
}

// Run dials, pumps the connection until it ends, and dials again until ctx
// is done. Every connection ends with a ConnectionClosed passed to handle.
func (l *Link) Run(ctx context.Context, handle func(Inbound)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.InitialInterval
	b.MaxInterval = l.MaxInterval

	for {
		conn, err := backoff.Retry(ctx, func() (*Conn, error) {
			return Dial(ctx, l.url, l.logger)
		},
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				l.logger.WithFields(logrus.Fields{
					"url":     l.url,
					"error":   err,
					"retryIn": next,
				}).Warn("Client connection failed")
			}),
		)
		if err != nil {
			// only ctx ends the retry loop
			return nil
		}

		l.logger.WithField("url", l.url).Info("Connected to client")
		l.setConn(conn)
		err = conn.Run(ctx, handle)
		l.setConn(nil)

		if ctx.Err() != nil {
			return nil
		}
		l.logger.WithFields(logrus.Fields{"url": l.url, "error": err}).Warn("Client connection lost")
	}
}

func (l *Link) setConn(c *Conn) {
	l.mu.Lock()
	l.conn = c
	l.mu.Unlock()
}
