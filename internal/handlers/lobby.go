// internal/handlers/lobby.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/controller"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

// LobbyController is the part of *controller.Controller the HTTP surface uses.
// Every request is made as the local operator.
type LobbyController interface {
	Snapshot(ctx context.Context) (controller.Snapshot, error)
	Balance(ctx context.Context, origin controller.Origin, requester string) (balance.Plan, error)
	StartGame(ctx context.Context, origin controller.Origin, requester string, delay time.Duration) error
	CancelStart(ctx context.Context, origin controller.Origin, requester string) error
	Swap(ctx context.Context, origin controller.Origin, requester, a, b string) error
	Command(ctx context.Context, origin controller.Origin, requester string, cmd protocol.Command) error
}

const requestTimeout = 5 * time.Second

// LobbyStateHandler returns the controller's current snapshot.
func LobbyStateHandler(ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		snap, err := ctrl.Snapshot(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// BalanceHandler computes a balance plan and issues its swaps.
func BalanceHandler(logger *logrus.Logger, ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		plan, err := ctrl.Balance(ctx, controller.OriginLocalOperator, "")
		if err != nil {
			logger.WithField("error", err).Info("Balance request refused")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

type startRequest struct {
	DelaySeconds int `json:"delaySeconds"`
}

// StartHandler arms the start countdown. An empty body uses the configured delay.
func StartHandler(ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad start request payload", http.StatusBadRequest)
			return
		}
		if req.DelaySeconds < 0 {
			http.Error(w, "delaySeconds must not be negative", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		delay := time.Duration(req.DelaySeconds) * time.Second
		if err := ctrl.StartGame(ctx, controller.OriginLocalOperator, "", delay); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func AbortHandler(ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := ctrl.CancelStart(ctx, controller.OriginLocalOperator, ""); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type swapRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

// SwapHandler asks the client to swap two seated players.
func SwapHandler(ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req swapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.A == "" || req.B == "" {
			http.Error(w, "swap needs players a and b", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := ctrl.Swap(ctx, controller.OriginLocalOperator, "", req.A, req.B); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// SlotHandler runs a slot action from the path: /lobby/slots/{slot}/{action}.
func SlotHandler(ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := strconv.Atoi(r.PathValue("slot"))
		if err != nil || slot < 0 {
			http.Error(w, "invalid slot", http.StatusBadRequest)
			return
		}

		var cmd protocol.Command
		switch r.PathValue("action") {
		case "open":
			cmd = protocol.OpenSlot{Slot: slot}
		case "close":
			cmd = protocol.CloseSlot{Slot: slot}
		case "kick":
			cmd = protocol.KickSlot{Slot: slot}
		case "ban":
			cmd = protocol.BanSlot{Slot: slot}
		default:
			http.Error(w, "unknown slot action", http.StatusNotFound)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := ctrl.Command(ctx, controller.OriginLocalOperator, "", cmd); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type chatRequest struct {
	Text string `json:"text"`
}

// ChatHandler sends a line to lobby chat as the host.
func ChatHandler(ctrl LobbyController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, "chat needs text", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := ctrl.Command(ctx, controller.OriginLocalOperator, "", protocol.SendChatMessage{Text: req.Text}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// statusFor maps controller and balance errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrNotHost), errors.Is(err, controller.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, controller.ErrNoLobby),
		errors.Is(err, controller.ErrSwapPending),
		errors.Is(err, controller.ErrStatsOff),
		errors.Is(err, balance.ErrStatsUnavailable):
		return http.StatusConflict
	case errors.Is(err, controller.ErrNotSeated), errors.Is(err, balance.ErrTooManyPlayers):
		return http.StatusUnprocessableEntity
	case errors.Is(err, controller.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
