/*
Package graph maintains the in-memory relationship graph between episodes:
forward and reverse adjacency maps, cycle-safe DependsOn edges, topological
ordering, ancestry and path queries. A single coarse RWMutex guards the
whole graph, the same trade-off the teacher's in-memory node/service
registries make — simple and correct over fine-grained and fast, since the
graph is small relative to episode volume.
*/
package graph

import (
	"sort"
	"sync"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

// Direction selects which adjacency to traverse.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

type edge struct {
	other string
	typ   types.RelationshipType
	meta  types.RelationshipMeta
}

// Graph is the relationship graph over episode ids.
type Graph struct {
	mu      sync.RWMutex
	forward map[string]map[string]edge // id -> edgeMapKey(other, type) -> edge
	reverse map[string]map[string]edge
}

// New builds an empty graph.
func New() *Graph {
	return &Graph{
		forward: make(map[string]map[string]edge),
		reverse: make(map[string]map[string]edge),
	}
}

func edgeMapKey(other string, typ types.RelationshipType) string {
	return string(typ) + "\x00" + other
}

// Add inserts a directed edge. DependsOn edges are checked for cycles via
// DFS reachability from target back to source before insertion; a path
// found means adding the edge would create a cycle.
func (g *Graph) Add(r *types.EpisodeRelationship) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r.Type == types.RelDependsOn {
		if g.reachableLocked(r.TargetID, r.SourceID, Outgoing, nil) {
			return memerr.CycleDetected(r.Key())
		}
	}

	e := edge{other: r.TargetID, typ: r.Type, meta: r.Meta}
	if g.forward[r.SourceID] == nil {
		g.forward[r.SourceID] = make(map[string]edge)
	}
	g.forward[r.SourceID][edgeMapKey(r.TargetID, r.Type)] = e

	re := edge{other: r.SourceID, typ: r.Type, meta: r.Meta}
	if g.reverse[r.TargetID] == nil {
		g.reverse[r.TargetID] = make(map[string]edge)
	}
	g.reverse[r.TargetID][edgeMapKey(r.SourceID, r.Type)] = re
	return nil
}

// Remove deletes an edge, returning whether anything was removed.
func (g *Graph) Remove(r *types.EpisodeRelationship) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeMapKey(r.TargetID, r.Type)
	fwd, ok := g.forward[r.SourceID]
	if !ok {
		return false
	}
	if _, present := fwd[key]; !present {
		return false
	}
	delete(fwd, key)
	if len(fwd) == 0 {
		delete(g.forward, r.SourceID)
	}

	rkey := edgeMapKey(r.SourceID, r.Type)
	if rev, ok := g.reverse[r.TargetID]; ok {
		delete(rev, rkey)
		if len(rev) == 0 {
			delete(g.reverse, r.TargetID)
		}
	}
	return true
}

// Neighbors returns relationships touching id in the given direction,
// optionally filtered to a single type.
func (g *Graph) Neighbors(id string, dir Direction, typ *types.RelationshipType) []types.EpisodeRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.EpisodeRelationship
	if dir == Outgoing || dir == Both {
		for _, e := range g.forward[id] {
			if typ != nil && e.typ != *typ {
				continue
			}
			out = append(out, types.EpisodeRelationship{SourceID: id, TargetID: e.other, Type: e.typ, Meta: e.meta})
		}
	}
	if dir == Incoming || dir == Both {
		for _, e := range g.reverse[id] {
			if typ != nil && e.typ != *typ {
				continue
			}
			out = append(out, types.EpisodeRelationship{SourceID: e.other, TargetID: id, Type: e.typ, Meta: e.meta})
		}
	}
	return out
}

// reachableLocked reports whether target is reachable from start via
// forward edges of the given direction, restricted to DependsOn edges.
// Caller must hold g.mu.
func (g *Graph) reachableLocked(start, target string, dir Direction, visited map[string]bool) bool {
	if visited == nil {
		visited = make(map[string]bool)
	}
	if start == target {
		return true
	}
	if visited[start] {
		return false
	}
	visited[start] = true

	adj := g.forward
	if dir == Incoming {
		adj = g.reverse
	}
	for _, e := range adj[start] {
		if e.typ != types.RelDependsOn {
			continue
		}
		if g.reachableLocked(e.other, target, dir, visited) {
			return true
		}
	}
	return false
}

// dependsOnIDs returns every id participating in a DependsOn edge, forward
// or reverse, sorted lexicographically for deterministic iteration.
func (g *Graph) dependsOnIDs() []string {
	seen := make(map[string]bool)
	for id, edges := range g.forward {
		for _, e := range edges {
			if e.typ == types.RelDependsOn {
				seen[id] = true
				seen[e.other] = true
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TopologicalOrder runs Kahn's algorithm over the DependsOn subgraph, with
// ties broken by lexicographic id order for a deterministic result. It
// fails with an internal-invariant error if a residual in-degree remains
// after processing, which can only happen if an invalid (cyclic) state was
// loaded from storage bypassing Add's cycle check.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := g.dependsOnIDs()
	indegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for _, id := range nodes {
		indegree[id] = 0
	}
	for _, id := range nodes {
		for _, e := range g.forward[id] {
			if e.typ != types.RelDependsOn {
				continue
			}
			adj[id] = append(adj[id], e.other)
			indegree[e.other]++
		}
	}
	for _, targets := range adj {
		sort.Strings(targets)
	}

	var ready []string
	for _, id := range nodes {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, next := range adj[n] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	for _, id := range nodes {
		if indegree[id] > 0 {
			return nil, memerr.InternalInvariant("topological_order: residual in-degree, graph is not a DAG")
		}
	}
	return order, nil
}

// Ancestors returns every id that id transitively depends on.
func (g *Graph) Ancestors(id string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	visited := make(map[string]bool)
	g.collectLocked(id, Outgoing, maxDepth, 0, visited)
	delete(visited, id)
	out := make([]string, 0, len(visited))
	for k := range visited {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TransitiveClosure returns every id reachable from id via any edge type
// (not just DependsOn), outgoing direction, bounded by maxDepth.
func (g *Graph) TransitiveClosure(id string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	visited := make(map[string]bool)
	g.collectAnyLocked(id, maxDepth, 0, visited)
	delete(visited, id)
	out := make([]string, 0, len(visited))
	for k := range visited {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) collectLocked(id string, dir Direction, maxDepth, depth int, visited map[string]bool) {
	if visited[id] || (maxDepth > 0 && depth > maxDepth) {
		return
	}
	visited[id] = true
	adj := g.forward
	if dir == Incoming {
		adj = g.reverse
	}
	for _, e := range adj[id] {
		if e.typ != types.RelDependsOn {
			continue
		}
		g.collectLocked(e.other, dir, maxDepth, depth+1, visited)
	}
}

func (g *Graph) collectAnyLocked(id string, maxDepth, depth int, visited map[string]bool) {
	if visited[id] || (maxDepth > 0 && depth > maxDepth) {
		return
	}
	visited[id] = true
	for _, e := range g.forward[id] {
		g.collectAnyLocked(e.other, maxDepth, depth+1, visited)
	}
}

// FindPath returns a path from a to b (any edge type, outgoing direction)
// via BFS, or nil if none exists within maxDepth hops.
func (g *Graph) FindPath(a, b string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if a == b {
		return []string{a}
	}
	type frame struct {
		id   string
		path []string
	}
	visited := map[string]bool{a: true}
	queue := []frame{{id: a, path: []string{a}}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && len(f.path) > maxDepth {
			continue
		}
		neighbors := make([]string, 0, len(g.forward[f.id]))
		for _, e := range g.forward[f.id] {
			neighbors = append(neighbors, e.other)
		}
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			path := append(append([]string{}, f.path...), next)
			if next == b {
				return path
			}
			visited[next] = true
			queue = append(queue, frame{id: next, path: path})
		}
	}
	return nil
}

// FindAllCyclesFrom returns every simple cycle reachable from node via
// DependsOn edges. It exists for diagnostics only: Add's cycle check
// prevents any cycle from entering the graph through normal operation, so
// a non-empty result here indicates a bypassed invariant (e.g. a
// reconciled load from storage).
func (g *Graph) FindAllCyclesFrom(node string) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var cycles [][]string
	var stack []string
	onStack := make(map[string]bool)

	var dfs func(cur string)
	dfs = func(cur string) {
		stack = append(stack, cur)
		onStack[cur] = true
		for _, e := range g.forward[cur] {
			if e.typ != types.RelDependsOn {
				continue
			}
			if e.other == node && len(stack) > 0 {
				cycle := append(append([]string{}, stack...), e.other)
				cycles = append(cycles, cycle)
				continue
			}
			if !onStack[e.other] {
				dfs(e.other)
			}
		}
		stack = stack[:len(stack)-1]
		onStack[cur] = false
	}
	dfs(node)
	return cycles
}
