// internal/balance/multi.go
package balance

import (
	"fmt"
	"math"
)

// multiTeams searches every way of dealing the eligible players into the
// teams' current sizes and keeps the arrangement whose worst team deviates
// least from the average. Partitions are visited in the same order as the
// first permutation producing them, so ties resolve to the first found.
func multiTeams(teams [][]string, order []string, ratings map[string]float64) (Plan, error) {
	n := len(order)
	if n > MaxMultiTeamPlayers {
		return Plan{}, fmt.Errorf("%w: %d eligible players, limit is %d", ErrTooManyPlayers, n, MaxMultiTeamPlayers)
	}

	sizes := make([]int, len(teams))
	total := 0.0
	for i, t := range teams {
		sizes[i] = len(t)
	}
	for _, p := range order {
		total += ratings[p]
	}
	target := total / float64(len(teams))

	worst := func(groups [][]string) float64 {
		w := 0.0
		for _, g := range groups {
			w = math.Max(w, math.Abs(sum(g, ratings)-target))
		}
		return w
	}
	current := worst(teams)

	s := &partitionSearch{
		order:   order,
		ratings: ratings,
		sizes:   sizes,
		target:  target,
		best:    math.Inf(1),
		used:    make([]bool, n),
		groups:  make([][]string, len(teams)),
	}
	s.search(0, 0)

	if s.bestGroups == nil || current <= s.best {
		return Plan{Balanced: true, Target: teams, Deviation: current}, nil
	}

	swaps, err := Realize(teams, s.bestGroups)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Balanced:  len(swaps) == 0,
		Target:    s.bestGroups,
		Swaps:     swaps,
		Deviation: s.best,
	}, nil
}

type partitionSearch struct {
	order   []string
	ratings map[string]float64
	sizes   []int
	target  float64

	used   []bool
	groups [][]string

	best       float64
	bestGroups [][]string
}

// search fills team t, having already reached a worst deviation of partial.
func (s *partitionSearch) search(t int, partial float64) {
	if partial >= s.best {
		return
	}
	if t == len(s.sizes) {
		s.best = partial
		s.bestGroups = make([][]string, len(s.groups))
		for i, g := range s.groups {
			s.bestGroups[i] = clone(g)
		}
		return
	}

	free := make([]int, 0, len(s.order))
	for i, u := range s.used {
		if !u {
			free = append(free, i)
		}
	}
	combinations(len(free), s.sizes[t], func(idx []int) {
		group := make([]string, len(idx))
		total := 0.0
		for j, i := range idx {
			group[j] = s.order[free[i]]
			total += s.ratings[group[j]]
		}
		dev := math.Max(partial, math.Abs(total-s.target))
		if dev >= s.best {
			return
		}
		for _, i := range idx {
			s.used[free[i]] = true
		}
		s.groups[t] = group
		s.search(t+1, dev)
		for _, i := range idx {
			s.used[free[i]] = false
		}
	})
}

// Realize returns the swaps that turn the current arrangement into target.
// Only misplaced players are ever swapped, each swap seats at least one player
// on its target team, and applying the swaps in order yields target.
func Realize(current, target [][]string) ([]Swap, error) {
	if len(current) != len(target) {
		return nil, fmt.Errorf("%w: %d teams seated, %d planned", ErrInvariant, len(current), len(target))
	}
	want := make(map[string]int)
	for t, g := range target {
		for _, p := range g {
			if _, dup := want[p]; dup {
				return nil, fmt.Errorf("%w: %s planned twice", ErrInvariant, p)
			}
			want[p] = t
		}
	}
	work := make([][]string, len(current))
	seated := 0
	for t, g := range current {
		if len(g) != len(target[t]) {
			return nil, fmt.Errorf("%w: team %d has %d players, plan needs %d", ErrInvariant, t, len(g), len(target[t]))
		}
		work[t] = clone(g)
		for _, p := range g {
			if _, ok := want[p]; !ok {
				return nil, fmt.Errorf("%w: %s is seated but not planned", ErrInvariant, p)
			}
			seated++
		}
	}
	if seated != len(want) {
		return nil, fmt.Errorf("%w: plan references players that are not seated", ErrInvariant)
	}

	var swaps []Swap
	for changed := true; changed; {
		changed = false
		for t := range work {
			for i, p := range work[t] {
				if want[p] == t {
					continue
				}
				u, j := findPartner(work, want, t, want[p])
				q := work[u][j]
				work[t][i], work[u][j] = q, p
				swaps = append(swaps, Swap{A: p, B: q})
				changed = true
			}
		}
	}
	return swaps, nil
}

// findPartner locates a misplaced player that belongs on team t, preferring
// one sitting on dest so both players land in place.
func findPartner(work [][]string, want map[string]int, t, dest int) (int, int) {
	for j, q := range work[dest] {
		if want[q] == t {
			return dest, j
		}
	}
	for u, g := range work {
		if u == t {
			continue
		}
		for j, q := range g {
			if want[q] == t {
				return u, j
			}
		}
	}
	// unreachable while team sizes match the plan
	panic("balance: no partner for misplaced player")
}
