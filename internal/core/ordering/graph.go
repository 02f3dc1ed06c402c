package ordering

import (
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/autorelease/internal/core/domain"
)

// =============================================================================
// Dependency Graph
// =============================================================================

// Graph holds "depends on" edges among gap packages only. Dependencies on
// packages outside the gap are already satisfied and are not edges.
type Graph struct {
	nodes      []string            // sorted
	deps       map[string][]string // node -> nodes it depends on, sorted
	dependents map[string][]string // node -> nodes depending on it
}

// Build constructs the graph for gaps from the packages' declared dependencies.
// A gap package whose build or runtime dependency is an unpublishable
// workspace member yields a *DependencyError. Dev-dependencies never
// contribute edges.
func Build(gaps []domain.PublishGap, pkgs []domain.ResolvedPackage) (*Graph, error) {
	byName := make(map[string]domain.ResolvedPackage, len(pkgs))
	for _, p := range pkgs {
		byName[p.Name] = p
	}

	inGap := make(map[string]bool, len(gaps))
	for _, g := range gaps {
		inGap[g.Package] = true
	}

	g := &Graph{
		deps:       make(map[string][]string, len(gaps)),
		dependents: make(map[string][]string, len(gaps)),
	}

	var violations []Edge
	for _, gp := range gaps {
		pkg, ok := byName[gp.Package]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, gp.Package)
		}
		g.nodes = append(g.nodes, gp.Package)

		for _, dep := range pkg.Dependencies {
			member, isMember := byName[dep]
			switch {
			case !isMember:
				// external registry dependency
			case !member.Publishable:
				violations = append(violations, Edge{From: gp.Package, To: dep})
			case inGap[dep]:
				if !slices.Contains(g.deps[gp.Package], dep) {
					g.deps[gp.Package] = append(g.deps[gp.Package], dep)
					g.dependents[dep] = append(g.dependents[dep], gp.Package)
				}
			}
		}
	}

	if len(violations) > 0 {
		slices.SortFunc(violations, func(a, b Edge) int {
			if c := strings.Compare(a.From, b.From); c != 0 {
				return c
			}
			return strings.Compare(a.To, b.To)
		})
		return nil, &DependencyError{Edges: violations}
	}

	slices.Sort(g.nodes)
	for _, d := range g.deps {
		slices.Sort(d)
	}
	return g, nil
}

// Nodes returns the gap package names, sorted.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// DependenciesOf returns the gap packages name depends on, sorted.
func (g *Graph) DependenciesOf(name string) []string {
	return slices.Clone(g.deps[name])
}

// Edges returns every edge, sorted by From then To.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.nodes {
		for _, to := range g.deps[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}
