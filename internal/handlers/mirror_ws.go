// internal/handlers/mirror_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/middleware"
	"github.com/jason-s-yu/lobbyhost/internal/relay"
)

// MirrorSubprotocol is the websocket subprotocol viewers must request.
const MirrorSubprotocol = "lobbyhost"

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// snapshotFrame is the first frame a viewer receives.
type snapshotFrame struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// MirrorWSHandler streams lobby events to a UI viewer. The viewer first gets
// the full controller snapshot, then every event the mirror forwards.
// Anything the viewer sends is ignored.
func MirrorWSHandler(logger *logrus.Logger, ctrl LobbyController, mirror *relay.Mirror, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{MirrorSubprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != MirrorSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the "+MirrorSubprotocol+" subprotocol")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		viewer := mirror.Join()
		defer mirror.Leave(viewer)

		snapCtx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		snap, err := ctrl.Snapshot(snapCtx)
		cancel()
		if err != nil {
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
			c.Close(ControllerUnavailableError, "lobby controller unavailable")
			return
		}
		data, err := json.Marshal(snapshotFrame{Kind: "snapshot", Payload: snap})
		if err != nil {
			c.Close(websocket.StatusInternalError, "failed to encode snapshot")
			return
		}

		ctx := c.CloseRead(r.Context())
		if err := write(ctx, c, data); err != nil {
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
			return
		}

		err = writePump(ctx, c, viewer, mirror.Done())
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		if err == nil {
			c.Close(MirrorStoppedError, "mirror stopped")
		}
	}
}

// writePump forwards viewer frames and pings until the connection fails,
// the viewer goes away, or the mirror stops. It returns nil only in the
// last case.
func writePump(ctx context.Context, c *websocket.Conn, viewer *relay.Viewer, stopped <-chan struct{}) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopped:
			return nil
		case data := <-viewer.Out:
			if err := write(ctx, c, data); err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func write(ctx context.Context, c *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
