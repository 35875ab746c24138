// internal/controller/controller.go
package controller

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/lobby"
	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
	"github.com/jason-s-yu/lobbyhost/internal/stats"
)

const inboxSize = 256

// CommandSink delivers commands to the game client.
type CommandSink interface {
	Send(cmd protocol.Command) error
}

// Deps are the controller's collaborators. Eligibility and Settings fall
// back to allowing everyone and DefaultSettings.
type Deps struct {
	Stats       stats.Provider
	Eligibility Eligibility
	Settings    SettingsSource
	Sink        CommandSink
	Bus         *events.Bus
	Logger      *logrus.Logger
}

// Controller owns one lobby session. All state below the mailbox is touched
// only by the goroutine running Run.
type Controller struct {
	id          uuid.UUID
	inbox       chan msg
	quit        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	stats       stats.Provider
	eligibility Eligibility
	settings    SettingsSource
	sink        CommandSink
	bus         *events.Bus
	logger      *logrus.Logger

	lobby *lobby.Lobby
	epoch uint64

	expected     []expectedSwap
	satisfied    []balance.Swap // balance swaps observed in the current round
	roundBroken  bool           // a balance swap was invalidated this round
	balancedOnce bool           // composition unchanged since the last balance

	ready      bool
	refreshing map[int]bool
	inFlight   map[string]bool
	attempts   map[string]int
	backoffs   map[string]*backoff.ExponentialBackOff

	timers   map[timerKey]liveTimer
	timerGen uint64
	startAt  time.Time
}

// Snapshot is a consistent copy of the controller's view for readers
// outside the mailbox loop.
type Snapshot struct {
	Session    uuid.UUID            `json:"session"`
	State      State                `json:"state"`
	Lobby      string               `json:"lobby,omitempty"`
	Descriptor *models.Descriptor   `json:"descriptor,omitempty"`
	Teams      []lobby.TeamView     `json:"teams,omitempty"`
	Expected   []balance.Swap       `json:"expected,omitempty"`
	Refreshing []int                `json:"refreshing,omitempty"`
	StartAt    *time.Time           `json:"startAt,omitempty"`
	Chat       []models.ChatMessage `json:"chat,omitempty"`
}

func New(deps Deps) *Controller {
	if deps.Eligibility == nil {
		deps.Eligibility = NewStaticEligibility()
	}
	if deps.Settings == nil {
		deps.Settings = StaticSettings(DefaultSettings())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:          uuid.New(),
		inbox:       make(chan msg, inboxSize),
		quit:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		stats:       deps.Stats,
		eligibility: deps.Eligibility,
		settings:    deps.Settings,
		sink:        deps.Sink,
		bus:         deps.Bus,
		logger:      deps.Logger,
		refreshing:  make(map[int]bool),
		inFlight:    make(map[string]bool),
		attempts:    make(map[string]int),
		backoffs:    make(map[string]*backoff.ExponentialBackOff),
		timers:      make(map[timerKey]liveTimer),
	}
}

// Run processes the mailbox until ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	c.log().Info("Lobby controller started")
	defer func() {
		c.disarmAll()
		c.cancel()
		close(c.quit)
		c.log().Info("Lobby controller stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

// post hands m to the loop from another goroutine.
func (c *Controller) post(m msg) {
	select {
	case c.inbox <- m:
	case <-c.quit:
	}
}

func (c *Controller) handle(m msg) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ie, ok := r.(invariantError)
		if !ok {
			panic(r)
		}
		c.log().WithField("error", ie).Error("Abandoning balance attempt")
		c.clearBalance()
		c.notice("", "Balancing stopped: lobby changed underneath the plan")
		if rq, ok := m.(request); ok {
			rq.fail(ie)
		}
	}()

	switch m := m.(type) {
	case inboundMsg:
		replyErr(m.reply, c.onInbound(m.in))
	case fetchDone:
		c.onFetchDone(m)
	case timerFired:
		c.onTimer(m)
	case balanceReq:
		plan, err := c.balance(m.origin, m.requester)
		tryReply(m.reply, balanceResult{plan: plan, err: err})
	case startReq:
		replyErr(m.reply, c.startGame(m.origin, m.requester, m.delay))
	case cancelStartReq:
		replyErr(m.reply, c.cancelStartRequest(m.origin, m.requester))
	case swapReq:
		replyErr(m.reply, c.swap(m.origin, m.requester, m.a, m.b))
	case commandReq:
		replyErr(m.reply, c.command(m.origin, m.requester, m.cmd))
	case snapshotReq:
		tryReply(m.reply, c.snapshot())
	}
}

func (c *Controller) state() State {
	switch {
	case c.lobby == nil:
		return StateNoLobby
	case !c.startAt.IsZero():
		return StateStarting
	case len(c.expected) > 0:
		return StateSwapPending
	case c.ready:
		return StateReady
	}
	return StateLobbyActive
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{Session: c.id, State: c.state()}
	if c.lobby == nil {
		return s
	}
	desc := c.lobby.Descriptor
	s.Lobby = c.lobby.Name()
	s.Descriptor = &desc
	s.Teams = c.lobby.ExportTeams(false)
	s.Chat = c.lobby.ChatLog()
	for _, e := range c.expected {
		s.Expected = append(s.Expected, balance.Swap{A: e.a, B: e.b})
	}
	for n := range c.refreshing {
		s.Refreshing = append(s.Refreshing, n)
	}
	if !c.startAt.IsZero() {
		at := c.startAt
		s.StartAt = &at
	}
	return s
}

func (c *Controller) log() *logrus.Entry {
	fields := logrus.Fields{"session": c.id}
	if c.lobby != nil {
		fields["lobby"] = c.lobby.Name()
	}
	return c.logger.WithFields(fields)
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func (c *Controller) notice(playerID, text string) {
	name := ""
	if c.lobby != nil {
		name = c.lobby.Name()
	}
	c.publish(events.Notice{Lobby: name, PlayerID: playerID, Text: text})
}

func (c *Controller) send(cmd protocol.Command) error {
	if err := c.sink.Send(cmd); err != nil {
		c.log().WithFields(logrus.Fields{"command": cmd.Type(), "error": err}).Warn("Failed to send command")
		return err
	}
	return nil
}

// call posts a request and waits for its reply.
func call[T any](ctx context.Context, c *Controller, m msg, reply chan T) (T, error) {
	var zero T
	select {
	case c.inbox <- m:
	case <-c.quit:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.quit:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func callErr(ctx context.Context, c *Controller, m msg, reply chan error) error {
	v, err := call(ctx, c, m, reply)
	if err != nil {
		return err
	}
	return v
}

// Ingest applies one inbound message and reports whether it was accepted.
func (c *Controller) Ingest(ctx context.Context, in protocol.Inbound) error {
	reply := make(chan error, 1)
	return callErr(ctx, c, inboundMsg{in: in, reply: reply}, reply)
}

// Balance computes a plan for the current lobby and issues its swaps.
func (c *Controller) Balance(ctx context.Context, origin Origin, requester string) (balance.Plan, error) {
	reply := make(chan balanceResult, 1)
	res, err := call(ctx, c, balanceReq{origin: origin, requester: requester, reply: reply}, reply)
	if err != nil {
		return balance.Plan{}, err
	}
	return res.plan, res.err
}

// StartGame arms or re-arms the start countdown. A zero delay uses the
// configured StartDelay.
func (c *Controller) StartGame(ctx context.Context, origin Origin, requester string, delay time.Duration) error {
	reply := make(chan error, 1)
	return callErr(ctx, c, startReq{origin: origin, requester: requester, delay: delay, reply: reply}, reply)
}

func (c *Controller) CancelStart(ctx context.Context, origin Origin, requester string) error {
	reply := make(chan error, 1)
	return callErr(ctx, c, cancelStartReq{origin: origin, requester: requester, reply: reply}, reply)
}

// Swap asks the client to exchange the slots of players a and b.
func (c *Controller) Swap(ctx context.Context, origin Origin, requester, a, b string) error {
	reply := make(chan error, 1)
	return callErr(ctx, c, swapReq{origin: origin, requester: requester, a: a, b: b, reply: reply}, reply)
}

// Command forwards any other client command after the same permission checks.
func (c *Controller) Command(ctx context.Context, origin Origin, requester string, cmd protocol.Command) error {
	reply := make(chan error, 1)
	return callErr(ctx, c, commandReq{origin: origin, requester: requester, cmd: cmd, reply: reply}, reply)
}

func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	return call(ctx, c, snapshotReq{reply: reply}, reply)
}
