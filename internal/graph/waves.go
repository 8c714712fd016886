package graph

import "sort"

// findCycle runs a depth-first search with coloring over the dependency
// edges, visiting nodes in sorted order so the result is deterministic. It
// returns the first cycle found, canonicalized to start at its lexically
// smallest member, or nil when the graph is acyclic.
func findCycle(ids []string, deps map[string][]string) []string {
	order := append([]string(nil), ids...)
	sort.Strings(order)

	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, dep := range deps[id] {
			switch colors[dep] {
			case 1:
				// Back edge: the cycle is the stack from dep onward.
				for i, member := range stack {
					if member == dep {
						cycle = append([]string(nil), stack[i:]...)
						break
					}
				}
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return false
	}

	for _, id := range order {
		if colors[id] == 0 && visit(id) {
			return canonicalCycle(cycle)
		}
	}
	return nil
}

// canonicalCycle rotates a cycle path so it starts at its lexically
// smallest member.
func canonicalCycle(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	min := 0
	for i, id := range path {
		if id < path[min] {
			min = i
		}
	}
	return append(append([]string(nil), path[min:]...), path[:min]...)
}

// partitionWaves assigns each atom its longest-path layer: wave 0 with no
// dependencies, otherwise one past its deepest dependency. Assumes the
// edges are acyclic; Build checks that first.
func partitionWaves(ids []string, deps map[string][]string) [][]string {
	waveOf := make(map[string]int, len(ids))
	var layer func(id string) int
	layer = func(id string) int {
		if wave, done := waveOf[id]; done {
			return wave
		}
		wave := 0
		for _, dep := range deps[id] {
			if depth := layer(dep) + 1; depth > wave {
				wave = depth
			}
		}
		waveOf[id] = wave
		return wave
	}

	deepest := -1
	for _, id := range ids {
		if wave := layer(id); wave > deepest {
			deepest = wave
		}
	}
	if deepest < 0 {
		return nil
	}

	waves := make([][]string, deepest+1)
	for _, id := range ids {
		waves[waveOf[id]] = append(waves[waveOf[id]], id)
	}
	for _, wave := range waves {
		sort.Strings(wave)
	}
	return waves
}
