// internal/balance/balance.go
package balance

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrStatsUnavailable is returned when an eligible player has no usable rating.
	ErrStatsUnavailable = errors.New("stats unavailable")
	// ErrTooManyPlayers is returned when a multi-team search would exceed MaxMultiTeamPlayers.
	ErrTooManyPlayers = errors.New("too many players to balance")
	// ErrInvariant is returned when a plan references players that are not seated.
	ErrInvariant = errors.New("swap plan invariant violated")
)

// MaxMultiTeamPlayers bounds the exhaustive search for three or more teams.
// 12 players in six teams of two is about 7.5 million partitions.
const MaxMultiTeamPlayers = 12

// Team is the current membership of one player team, in slot order.
type Team struct {
	Name    string
	Players []string
}

// Input describes one balance request.
type Input struct {
	Teams []Team
	// Ratings holds the rating of every eligible player.
	Ratings map[string]float64
	// Eligible lists the players that may be moved; it also fixes the
	// enumeration order. Team members not listed are ignored.
	// When nil, every team member is eligible in team order.
	Eligible []string
	// Excluded, when set, is the player whose team should keep its members.
	Excluded string
}

// Swap exchanges the slots of two players.
type Swap struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Plan is the outcome of a balance computation.
type Plan struct {
	Balanced  bool       `json:"balanced"`
	Target    [][]string `json:"target"`
	Swaps     []Swap     `json:"swaps"`
	Deviation float64    `json:"deviation"`
}

// Compute finds the least imbalanced arrangement of the eligible players over
// the existing teams and the swaps that reach it. Team sizes never change.
func Compute(in Input) (Plan, error) {
	teams, order := eligibleTeams(in)
	if len(order) == 0 || len(teams) < 2 {
		return Plan{Balanced: true, Target: teams}, nil
	}
	for _, p := range order {
		if _, ok := in.Ratings[p]; !ok {
			return Plan{}, fmt.Errorf("%w: no rating for %s", ErrStatsUnavailable, p)
		}
	}
	if len(teams) == 2 {
		return twoTeams(teams, order, in.Ratings, in.Excluded), nil
	}
	return multiTeams(teams, order, in.Ratings)
}

func eligibleTeams(in Input) ([][]string, []string) {
	allowed := make(map[string]bool)
	if in.Eligible != nil {
		for _, p := range in.Eligible {
			allowed[p] = true
		}
	}
	seated := make(map[string]bool)
	teams := make([][]string, len(in.Teams))
	for i, t := range in.Teams {
		teams[i] = []string{}
		for _, p := range t.Players {
			if p == "" || (in.Eligible != nil && !allowed[p]) {
				continue
			}
			teams[i] = append(teams[i], p)
			seated[p] = true
		}
	}

	var order []string
	if in.Eligible != nil {
		for _, p := range in.Eligible {
			if seated[p] {
				order = append(order, p)
				delete(seated, p)
			}
		}
	} else {
		for _, t := range teams {
			order = append(order, t...)
		}
	}
	return teams, order
}

// twoTeams searches every ⌊n/2⌋ combination for the sum closest to half the
// total. Ties keep the first combination found.
func twoTeams(teams [][]string, order []string, ratings map[string]float64, excluded string) Plan {
	n := len(order)
	k := n / 2
	total := 0.0
	for _, p := range order {
		total += ratings[p]
	}
	half := total / 2

	current := math.Abs(sum(teams[0], ratings) - half)
	if len(teams[0]) != k && len(teams[1]) != k {
		// no size-preserving arrangement exists
		return Plan{Balanced: true, Target: teams, Deviation: current}
	}

	best := math.Inf(1)
	var bestCombo []int
	combinations(n, k, func(idx []int) {
		s := 0.0
		for _, i := range idx {
			s += ratings[order[i]]
		}
		if d := math.Abs(s - half); d < best {
			best = d
			bestCombo = append(bestCombo[:0], idx...)
		}
	})

	if current <= best {
		return Plan{Balanced: true, Target: teams, Deviation: current}
	}

	combo := make(map[string]bool, k)
	for _, i := range bestCombo {
		combo[order[i]] = true
	}
	in := func(p string) bool { return combo[p] }
	out := func(p string) bool { return !combo[p] }

	// decide which side keeps most of its members
	keep0 := in
	switch {
	case len(teams[0]) != len(teams[1]):
		if len(teams[0]) != k {
			keep0 = out
		}
	case excluded != "" && (contains(teams[0], excluded) || contains(teams[1], excluded)):
		if contains(teams[0], excluded) != combo[excluded] {
			keep0 = out
		}
	default:
		if overlap(teams[0], in) < overlap(teams[0], out) {
			keep0 = out
		}
	}
	keep1 := func(p string) bool { return !keep0(p) }

	var leave0, leave1 []string
	for _, p := range teams[0] {
		if !keep0(p) {
			leave0 = append(leave0, p)
		}
	}
	for _, p := range teams[1] {
		if !keep1(p) {
			leave1 = append(leave1, p)
		}
	}

	plan := Plan{Deviation: best, Target: [][]string{clone(teams[0]), clone(teams[1])}}
	for i := range leave0 {
		a, b := leave0[i], leave1[i]
		plan.Swaps = append(plan.Swaps, Swap{A: a, B: b})
		replace(plan.Target[0], a, b)
		replace(plan.Target[1], b, a)
	}
	plan.Balanced = len(plan.Swaps) == 0
	return plan
}

// combinations calls fn with every k-subset of [0,n) in lexicographic order.
// The slice passed to fn is reused between calls.
func combinations(n, k int, fn func([]int)) {
	if k > n || k < 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func sum(players []string, ratings map[string]float64) float64 {
	s := 0.0
	for _, p := range players {
		s += ratings[p]
	}
	return s
}

func overlap(players []string, member func(string) bool) int {
	n := 0
	for _, p := range players {
		if member(p) {
			n++
		}
	}
	return n
}

func contains(players []string, p string) bool {
	for _, q := range players {
		if q == p {
			return true
		}
	}
	return false
}

func replace(players []string, old, with string) {
	for i, p := range players {
		if p == old {
			players[i] = with
			return
		}
	}
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
