// Package topology computes ordering and reachability over a
// graph.Registry: the topological sort the compiler depends on, and the
// forward/backward reachability sets the incremental engine and solver
// harness use to scope invalidation and base-ledger computation.
package topology

import (
	"fmt"

	"github.com/tsgraph/tsgraph/graph"
)

// CycleError reports that the dependency graph contains a cycle reached
// while visiting Node.
type CycleError struct {
	Node graph.NodeId
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("topology: cycle detected at node %d", e.Node)
}

// Graph is the adjacency surface the traversals need. *graph.Registry
// satisfies it; tests substitute small fakes to exercise paths (like a
// true cycle) the registry's append-only constructors cannot build.
type Graph interface {
	Count() int
	Parents(id graph.NodeId) []graph.NodeId
	Children(id graph.NodeId) []graph.NodeId
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// Sort performs a recursive depth-first post-order traversal from every
// node in the registry, using a tri-state visit map to detect cycles.
// DFS is used rather than BFS for cache locality on deep dependency
// chains. The result lists parents before children.
func Sort(r Graph) ([]graph.NodeId, error) {
	n := r.Count()
	state := make([]visitState, n)
	order := make([]graph.NodeId, 0, n)

	var visit func(id graph.NodeId) error
	visit = func(id graph.NodeId) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			return &CycleError{Node: id}
		}
		state[id] = visiting
		for _, parent := range r.Parents(id) {
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[id] = visited
		order = append(order, id)
		return nil
	}

	for id := 0; id < n; id++ {
		if err := visit(graph.NodeId(id)); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// NodeSet is a membership set over NodeIds.
type NodeSet map[graph.NodeId]struct{}

// Contains reports whether id is a member of s.
func (s NodeSet) Contains(id graph.NodeId) bool {
	_, ok := s[id]
	return ok
}

// DownstreamFrom returns the set of nodes reachable by following child
// edges from starts, including the starts themselves.
func DownstreamFrom(r Graph, starts []graph.NodeId) NodeSet {
	return bfs(starts, r.Children)
}

// UpstreamFrom returns the set of nodes reachable by following parent
// edges from starts, including the starts themselves.
func UpstreamFrom(r Graph, starts []graph.NodeId) NodeSet {
	return bfs(starts, r.Parents)
}

func bfs(starts []graph.NodeId, neighbors func(graph.NodeId) []graph.NodeId) NodeSet {
	seen := make(NodeSet, len(starts))
	queue := make([]graph.NodeId, 0, len(starts))
	for _, s := range starts {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(cur) {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return seen
}
