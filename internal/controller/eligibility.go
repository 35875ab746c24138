// internal/controller/eligibility.go
package controller

import "sync"

// Verdict is the outcome of screening a player.
type Verdict struct {
	Cleared bool
	Reason  string
}

// Eligibility screens players against ban and whitelist rules and decides
// who may issue privileged chat commands.
type Eligibility interface {
	Check(playerID string) Verdict
	IsAdmin(playerID string) bool
}

// StaticEligibility is an in-memory Eligibility. A non-empty whitelist
// clears only listed players.
type StaticEligibility struct {
	mu        sync.RWMutex
	banned    map[string]string
	whitelist map[string]bool
	admins    map[string]bool
}

func NewStaticEligibility(admins ...string) *StaticEligibility {
	e := &StaticEligibility{
		banned:    make(map[string]string),
		whitelist: make(map[string]bool),
		admins:    make(map[string]bool),
	}
	for _, a := range admins {
		e.admins[a] = true
	}
	return e
}

func (e *StaticEligibility) Ban(playerID, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.banned[playerID] = reason
}

func (e *StaticEligibility) Allow(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.whitelist[playerID] = true
}

func (e *StaticEligibility) Check(playerID string) Verdict {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if reason, ok := e.banned[playerID]; ok {
		if reason == "" {
			reason = "banned"
		}
		return Verdict{Reason: reason}
	}
	if len(e.whitelist) > 0 && !e.whitelist[playerID] {
		return Verdict{Reason: "not on the whitelist"}
	}
	return Verdict{Cleared: true}
}

func (e *StaticEligibility) IsAdmin(playerID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.admins[playerID]
}

// Promote lets the player issue privileged chat commands.
func (e *StaticEligibility) Promote(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.admins[playerID] = true
}
