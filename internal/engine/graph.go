package engine

import "costline/internal/domain"

// dependencyGraph is the depends_on relation of one project's baseline schedule.
// Each activity has at most one predecessor, so the graph is a forest of chains
// unless a bad edge closes a loop.
type dependencyGraph struct {
	pred map[string]string
}

func newDependencyGraph(activities []domain.BaselineActivity) dependencyGraph {
	g := dependencyGraph{pred: make(map[string]string, len(activities))}
	for _, a := range activities {
		if a.DependsOn != nil {
			g.pred[a.ID] = *a.DependsOn
		}
	}
	return g
}

// wouldCycle walks the predecessor chain from "from" and reports the cycle path
// that adding the edge from -> through would create, or nil.
func (g dependencyGraph) wouldCycle(from, through string) []string {
	path := []string{from, through}
	cur := through
	seen := map[string]bool{from: true, through: true}
	for {
		next, ok := g.pred[cur]
		if !ok {
			return nil
		}
		path = append(path, next)
		if next == from {
			return path
		}
		if seen[next] {
			// pre-existing loop elsewhere in the chain; still reject the edge
			return path
		}
		seen[next] = true
		cur = next
	}
}
