// internal/protocol/conn.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrBackpressure = errors.New("send buffer full")
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// Conn is a websocket connection to the game client.
type Conn struct {
	ws     *websocket.Conn
	out    chan Command
	done   chan struct{}
	once   sync.Once
	logger *logrus.Logger
}

// Dial connects to the client's websocket endpoint.
func Dial(ctx context.Context, url string, logger *logrus.Logger) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewConn(ws, logger), nil
}

func NewConn(ws *websocket.Conn, logger *logrus.Logger) *Conn {
	return &Conn{
		ws:     ws,
		out:    make(chan Command, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues cmd for the write pump without blocking.
func (c *Conn) Send(cmd Command) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return fmt.Errorf("%w: dropping %s", ErrBackpressure, cmd.Type())
	}
}

// Run pumps frames until the connection or ctx ends. Every decoded frame is
// passed to handle; undecodable frames are logged and skipped. When the
// read side ends, handle receives a final ConnectionClosed.
func (c *Conn) Run(ctx context.Context, handle func(Inbound)) error {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(pumpCtx)
	}()

	err := c.readPump(pumpCtx, handle)
	c.shutdown()
	cancel()
	wg.Wait()
	_ = c.ws.Close(websocket.StatusNormalClosure, "")

	reason := "connection closed"
	if err != nil {
		reason = err.Error()
	}
	handle(ConnectionClosed{Reason: reason})

	if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return nil
	}
	return err
}

// Close ends the connection with a normal closure.
func (c *Conn) Close() error {
	c.shutdown()
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) readPump(ctx context.Context, handle func(Inbound)) error {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			c.logger.WithField("type", typ).Warn("Ignoring non-text frame from client")
			continue
		}

		msg, err := Decode(data)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"error": err,
				"bytes": len(data),
			}).Warn("Rejected frame from client")
			continue
		}
		handle(msg)
	}
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.WithField("error", err).Warn("Client ping failed")
			}
		case cmd := <-c.out:
			data, err := Encode(cmd)
			if err != nil {
				c.logger.WithField("error", err).Error("Dropping unencodable command")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.logger.WithFields(logrus.Fields{
					"command": cmd.Type(),
					"error":   err,
				}).Warn("Failed to write command")
				return
			}
			c.logger.WithField("command", cmd.Type()).Debug("Sent command")
		}
	}
}
