// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the mirror stream.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError        = 3000 // Client connected with an unsupported subprotocol.
	ControllerUnavailableError = 3001 // The lobby controller did not answer the initial snapshot request.
	MirrorStoppedError         = 3002 // The event mirror shut down; the viewer should reconnect later.
)
