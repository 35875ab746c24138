// internal/controller/errors.go
package controller

import (
	"errors"
	"fmt"
)

var (
	ErrNoLobby     = errors.New("not in a lobby")
	ErrNotHost     = errors.New("not the lobby host")
	ErrPermission  = errors.New("permission denied")
	ErrSwapPending = errors.New("swaps still pending")
	ErrNotSeated   = errors.New("player is not seated")
	ErrLobbyChange = errors.New("update is for a different lobby")
	ErrStopped     = errors.New("controller stopped")
	ErrStatsOff    = errors.New("stats are disabled for this lobby")
)

// invariantError is raised with panic when the controller's own bookkeeping
// is inconsistent. It is recovered at the top of the mailbox loop.
type invariantError struct{ err error }

func (e invariantError) Error() string { return "invariant violated: " + e.err.Error() }
func (e invariantError) Unwrap() error { return e.err }

func violated(format string, args ...any) {
	panic(invariantError{fmt.Errorf(format, args...)})
}
