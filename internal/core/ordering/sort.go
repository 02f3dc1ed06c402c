package ordering

import (
	"slices"

	"github.com/artpar/autorelease/internal/core/domain"
)

// =============================================================================
// Publish Ordering
// =============================================================================

// Sort orders the graph so every package comes after all of its dependencies,
// using Kahn's algorithm:
//  1. Start with packages that depend on nothing in the gap (in-degree = 0)
//  2. Always take the lexicographically smallest ready package
//  3. Decrement the in-degree of its dependents; those reaching 0 become ready
//
// The tie-break makes the order a pure function of the graph. When packages
// remain unprocessed the graph has a cycle, reported as a *CycleError naming
// a shortest one.
//
// Example:
//
//	// a depends on b, b depends on c
//	g.Sort()  // [c, b, a]
func (g *Graph) Sort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	var ready []string
	for _, n := range g.nodes {
		inDegree[n] = len(g.deps[n])
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)

		for _, dependent := range g.dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				i, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, i, dependent)
			}
		}
	}

	if len(result) < len(g.nodes) {
		remaining := make(map[string]bool)
		for _, n := range g.nodes {
			if inDegree[n] > 0 {
				remaining[n] = true
			}
		}
		return nil, &CycleError{Cycle: g.shortestCycle(remaining)}
	}
	return result, nil
}

// shortestCycle finds a minimum-length cycle within the remaining nodes.
// Start nodes are tried in sorted order and only strictly shorter cycles
// replace the best one, so the result starts at its smallest member.
func (g *Graph) shortestCycle(remaining map[string]bool) []string {
	var best []string
	for _, start := range g.nodes {
		if !remaining[start] {
			continue
		}
		cycle := g.cycleThrough(start, remaining)
		if cycle != nil && (best == nil || len(cycle) < len(best)) {
			best = cycle
		}
	}
	return best
}

// cycleThrough runs a breadth-first search along dependency edges from start
// and returns the shortest path leading back to it, or nil.
func (g *Graph) cycleThrough(start string, remaining map[string]bool) []string {
	parent := map[string]string{}
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.deps[current] {
			if !remaining[dep] {
				continue
			}
			if dep == start {
				var path []string
				for n := current; n != start; n = parent[n] {
					path = append(path, n)
				}
				path = append(path, start)
				slices.Reverse(path)
				return path
			}
			if !visited[dep] {
				visited[dep] = true
				parent[dep] = current
				queue = append(queue, dep)
			}
		}
	}
	return nil
}

// Order builds the graph for gaps and returns them in publish order.
func Order(gaps []domain.PublishGap, pkgs []domain.ResolvedPackage) ([]domain.PublishGap, error) {
	g, err := Build(gaps, pkgs)
	if err != nil {
		return nil, err
	}
	names, err := g.Sort()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]domain.PublishGap, len(gaps))
	for _, gp := range gaps {
		byName[gp.Package] = gp
	}
	ordered := make([]domain.PublishGap, len(names))
	for i, n := range names {
		ordered[i] = byName[n]
	}
	return ordered, nil
}
