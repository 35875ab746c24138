// internal/controller/timers.go
package controller

import "time"

type timerKind int

const (
	timerStale timerKind = iota
	timerStart
	timerRetry
)

func (k timerKind) String() string {
	switch k {
	case timerStale:
		return "stale"
	case timerStart:
		return "start"
	case timerRetry:
		return "retry"
	}
	return "unknown"
}

// timerKey identifies a timer slot: one per kind, or one per player for retries.
type timerKey struct {
	kind   timerKind
	player string
}

type liveTimer struct {
	t   *time.Timer
	gen uint64
}

// arm replaces any timer under key. A fire from a replaced timer carries an
// old generation and is ignored.
func (c *Controller) arm(key timerKey, d time.Duration) {
	c.disarm(key)
	c.timerGen++
	gen := c.timerGen
	t := time.AfterFunc(d, func() { c.post(timerFired{key: key, gen: gen}) })
	c.timers[key] = liveTimer{t: t, gen: gen}
}

func (c *Controller) disarm(key timerKey) {
	if lt, ok := c.timers[key]; ok {
		lt.t.Stop()
		delete(c.timers, key)
	}
}

func (c *Controller) disarmAll() {
	for key := range c.timers {
		c.disarm(key)
	}
}

func (c *Controller) onTimer(m timerFired) {
	lt, ok := c.timers[m.key]
	if !ok || lt.gen != m.gen {
		c.log().WithField("timer", m.key.kind).Debug("Dropping stale timer")
		return
	}
	delete(c.timers, m.key)

	switch m.key.kind {
	case timerStale:
		c.onStale()
	case timerStart:
		c.onStartExpired()
	case timerRetry:
		c.onRetry(m.key.player)
	}
}

func (c *Controller) armStale(s Settings) {
	if s.StaleAfter <= 0 || c.lobby == nil {
		return
	}
	c.arm(timerKey{kind: timerStale}, s.StaleAfter)
}
