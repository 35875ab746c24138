// internal/controller/messages.go
package controller

import (
	"time"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

// msg is everything the mailbox loop accepts.
type msg interface{ isControllerMsg() }

// request is a msg whose sender waits for a reply.
type request interface {
	msg
	fail(err error)
}

type inboundMsg struct {
	in    protocol.Inbound
	reply chan error
}

type fetchDone struct {
	epoch    uint64
	playerID string
	stats    models.PlayerStats
	err      error
}

type timerFired struct {
	key timerKey
	gen uint64
}

type balanceReq struct {
	origin    Origin
	requester string
	reply     chan balanceResult
}

type balanceResult struct {
	plan balance.Plan
	err  error
}

type startReq struct {
	origin    Origin
	requester string
	delay     time.Duration
	reply     chan error
}

type cancelStartReq struct {
	origin    Origin
	requester string
	reply     chan error
}

type swapReq struct {
	origin    Origin
	requester string
	a, b      string
	reply     chan error
}

type commandReq struct {
	origin    Origin
	requester string
	cmd       protocol.Command
	reply     chan error
}

type snapshotReq struct {
	reply chan Snapshot
}

func (inboundMsg) isControllerMsg()     {}
func (fetchDone) isControllerMsg()      {}
func (timerFired) isControllerMsg()     {}
func (balanceReq) isControllerMsg()     {}
func (startReq) isControllerMsg()       {}
func (cancelStartReq) isControllerMsg() {}
func (swapReq) isControllerMsg()        {}
func (commandReq) isControllerMsg()     {}
func (snapshotReq) isControllerMsg()    {}

func (m inboundMsg) fail(err error)     { replyErr(m.reply, err) }
func (m balanceReq) fail(err error)     { tryReply(m.reply, balanceResult{err: err}) }
func (m startReq) fail(err error)       { replyErr(m.reply, err) }
func (m cancelStartReq) fail(err error) { replyErr(m.reply, err) }
func (m swapReq) fail(err error)        { replyErr(m.reply, err) }
func (m commandReq) fail(err error)     { replyErr(m.reply, err) }

func replyErr(ch chan error, err error) { tryReply(ch, err) }

// tryReply never blocks; reply channels are buffered for one value.
func tryReply[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
