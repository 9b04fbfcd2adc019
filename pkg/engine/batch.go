/*
batch.go implements batch/execute: a caller submits a DAG of named
operations (each an MCP tool call plus the ids of operations it depends
on) and gets back one result or error per operation id. The dependency
graph is validated the same way pkg/graph validates DependsOn edges —
Kahn's algorithm, lexicographic tie-break — except here it runs once over
the whole batch up front rather than incrementally per edge, since a batch
arrives as a complete DAG rather than built edge by edge.
*/
package engine

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/memoryengine/pkg/memerr"
)

// BatchMode selects whether independent operations run one at a time or
// concurrently.
type BatchMode string

const (
	BatchSequential BatchMode = "sequential"
	BatchParallel   BatchMode = "parallel"
)

// BatchOperation is one node in a batch/execute request: a named tool call
// plus the ids of operations that must complete first.
type BatchOperation struct {
	ID        string
	Tool      string
	Arguments map[string]any
	DependsOn []string
}

// BatchResult is one operation's outcome.
type BatchResult struct {
	ID     string
	Value  any
	Err    error
}

// BatchExecute validates ops form a DAG, then runs them in dependency
// order. In Parallel mode, every operation whose dependencies have already
// completed runs concurrently with its siblings; Sequential mode runs
// exactly one operation at a time in the same topological order. A
// cyclic dependency graph fails the whole batch with InvalidBatch before
// anything runs. An operation whose dependency failed is skipped rather
// than executed, and its result carries that as its error — batch
// responses always carry partial results, never an all-or-nothing abort.
func (e *Engine) BatchExecute(ctx context.Context, ops []BatchOperation, mode BatchMode) ([]BatchResult, error) {
	order, err := batchTopologicalOrder(ops)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]BatchOperation, len(ops))
	for _, op := range ops {
		byID[op.ID] = op
	}
	results := make(map[string]BatchResult, len(ops))
	var resultsMu sync.Mutex

	recordResult := func(r BatchResult) {
		resultsMu.Lock()
		results[r.ID] = r
		resultsMu.Unlock()
	}

	run := func(op BatchOperation) {
		for _, dep := range op.DependsOn {
			resultsMu.Lock()
			depResult, ran := results[dep]
			resultsMu.Unlock()
			if !ran || depResult.Err != nil {
				recordResult(BatchResult{ID: op.ID, Err: memerr.InvalidInput("depends_on", "dependency "+dep+" did not complete successfully")})
				return
			}
		}
		value, err := e.dispatchBatchOp(ctx, op)
		recordResult(BatchResult{ID: op.ID, Value: value, Err: err})
	}

	if mode == BatchParallel {
		for _, wave := range batchWaves(order, byID) {
			var g errgroup.Group
			for _, id := range wave {
				op := byID[id]
				g.Go(func() error {
					run(op)
					return nil
				})
			}
			_ = g.Wait()
		}
	} else {
		for _, id := range order {
			run(byID[id])
		}
	}

	out := make([]BatchResult, len(order))
	for i, id := range order {
		out[i] = results[id]
	}
	return out, nil
}

// batchTopologicalOrder runs Kahn's algorithm over the batch's depends_on
// edges, lexicographic tie-break on operation id, failing with
// InvalidBatch if a residual dependency remains (a cycle, or a depends_on
// referencing an id not present in the batch).
func batchTopologicalOrder(ops []BatchOperation) ([]string, error) {
	indegree := make(map[string]int, len(ops))
	adj := make(map[string][]string, len(ops))
	ids := make(map[string]bool, len(ops))
	for _, op := range ops {
		ids[op.ID] = true
		if _, ok := indegree[op.ID]; !ok {
			indegree[op.ID] = 0
		}
	}
	for _, op := range ops {
		for _, dep := range op.DependsOn {
			if !ids[dep] {
				return nil, memerr.InvalidBatch("operation " + op.ID + " depends on unknown id " + dep)
			}
			adj[dep] = append(adj[dep], op.ID)
			indegree[op.ID]++
		}
	}
	for _, targets := range adj {
		sort.Strings(targets)
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
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

	if len(order) != len(ops) {
		return nil, memerr.InvalidBatch("dependency graph is cyclic")
	}
	return order, nil
}

// batchWaves groups a topological order into layers that can run
// concurrently: each wave contains every op whose dependencies all lie in
// earlier waves.
func batchWaves(order []string, byID map[string]BatchOperation) [][]string {
	wave := make(map[string]int, len(order))
	maxWave := 0
	for _, id := range order {
		w := 0
		for _, dep := range byID[id].DependsOn {
			if wave[dep]+1 > w {
				w = wave[dep] + 1
			}
		}
		wave[id] = w
		if w > maxWave {
			maxWave = w
		}
	}
	waves := make([][]string, maxWave+1)
	for _, id := range order {
		waves[wave[id]] = append(waves[wave[id]], id)
	}
	return waves
}
