// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/lobbyhost/internal/database"
)

// Popper is the subset of *redis.Client used to consume the event queue.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Store persists event batches and closes idle sessions.
type Store interface {
	SaveEvents(ctx context.Context, records []database.EventRecord) error
	AbandonIdleSessions(ctx context.Context, cutoff time.Time) ([]string, error)
}

// PostgresStore is a Store backed by a pgx pool.
type PostgresStore struct {
	DB database.Beginner
}

func (s PostgresStore) SaveEvents(ctx context.Context, records []database.EventRecord) error {
	return database.SaveEvents(ctx, s.DB, records)
}

func (s PostgresStore) AbandonIdleSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	return database.AbandonIdleSessions(ctx, s.DB, cutoff)
}

type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration // longest a popped event waits before being written
	Inactivity time.Duration // open sessions idle this long are abandoned
	SweepEvery time.Duration
	PopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 30 * time.Minute
	}
	if o.SweepEvery <= 0 {
		o.SweepEvery = time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
	return o
}

// Historian drains the relayed lobby events from Redis into Postgres.
type Historian struct {
	rdb    Popper
	store  Store
	opts   Options
	logger *logrus.Logger

	batch     []database.EventRecord
	lastFlush time.Time
}

func New(rdb Popper, store Store, opts Options, logger *logrus.Logger) *Historian {
	opts = opts.withDefaults()
	return &Historian{
		rdb:    rdb,
		store:  store,
		opts:   opts,
		logger: logger,
		batch:  make([]database.EventRecord, 0, opts.BatchSize),
	}
}

// Run consumes the queue and sweeps idle sessions until ctx ends. Events
// still batched when ctx ends are written before returning.
func (h *Historian) Run(ctx context.Context) error {
	h.logger.WithField("queue", h.opts.Queue).Info("Historian started")
	defer h.logger.Info("Historian stopped")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readLoop(ctx) })
	g.Go(func() error { return h.sweepLoop(ctx) })
	return g.Wait()
}

func (h *Historian) readLoop(ctx context.Context) error {
	h.lastFlush = time.Now()
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.flush(flushCtx)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := h.rdb.BLPop(ctx, h.opts.PopTimeout, h.opts.Queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			h.logger.WithField("error", err).Error("BLPop failed")
			sleep(ctx, time.Second)
		case len(res) == 2:
			// res[0] is the queue name and res[1] the payload
			if rec, err := Decode([]byte(res[1])); err != nil {
				h.logger.WithField("error", err).Warn("Invalid event record")
			} else {
				h.batch = append(h.batch, rec)
			}
		}

		if len(h.batch) >= h.opts.BatchSize || time.Since(h.lastFlush) >= h.opts.FlushDelay {
			h.flush(ctx)
		}
	}
}

// flush writes the batch. A failed batch is kept and retried with the next
// flush unless it has grown past four batches, in which case it is dropped.
func (h *Historian) flush(ctx context.Context) {
	h.lastFlush = time.Now()
	if len(h.batch) == 0 {
		return
	}
	if err := h.store.SaveEvents(ctx, h.batch); err != nil {
		fields := logrus.Fields{"events": len(h.batch), "error": err}
		if len(h.batch) >= 4*h.opts.BatchSize {
			h.logger.WithFields(fields).Error("Dropping event batch")
			h.batch = h.batch[:0]
			return
		}
		h.logger.WithFields(fields).Warn("Failed to flush events, will retry")
		return
	}
	h.logger.WithField("events", len(h.batch)).Debug("Flushed events to DB")
	h.batch = h.batch[:0]
}

func (h *Historian) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.opts.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			lobbies, err := h.store.AbandonIdleSessions(ctx, time.Now().Add(-h.opts.Inactivity))
			if err != nil {
				h.logger.WithField("error", err).Warn("Failed to sweep idle sessions")
				continue
			}
			for _, l := range lobbies {
				h.logger.WithField("lobby", l).Info("Marked lobby session abandoned due to inactivity")
			}
		}
	}
}

// Decode turns a relayed envelope into an EventRecord. The lobby name is
// taken from the payload.
func Decode(data []byte) (database.EventRecord, error) {
	var rec database.EventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode envelope: %w", err)
	}
	var payload struct {
		Lobby string `json:"lobby"`
	}
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return rec, fmt.Errorf("failed to decode payload of %s: %w", rec.Kind, err)
	}
	if rec.Kind == "" || payload.Lobby == "" {
		return rec, fmt.Errorf("event %s is missing its kind or lobby", rec.ID)
	}
	rec.Lobby = payload.Lobby
	return rec, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
