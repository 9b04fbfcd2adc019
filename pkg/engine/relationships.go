package engine

import (
	"context"
	"time"

	"github.com/cuemby/memoryengine/pkg/events"
	"github.com/cuemby/memoryengine/pkg/graph"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

func toGraphDirection(dir storage.RelationshipDirection) graph.Direction {
	switch dir {
	case storage.DirectionOutgoing:
		return graph.Outgoing
	case storage.DirectionIncoming:
		return graph.Incoming
	default:
		return graph.Both
	}
}

// AddRelationship inserts a directed typed edge between two episodes.
// DependsOn edges are rejected with CycleDetected if they would close a
// cycle; the graph is left unchanged on rejection.
func (e *Engine) AddRelationship(ctx context.Context, sourceID, targetID string, typ types.RelationshipType, strength float64, note string) error {
	r := &types.EpisodeRelationship{
		SourceID: sourceID,
		TargetID: targetID,
		Type:     typ,
		Meta:     types.RelationshipMeta{Strength: strength, Note: note, CreatedAt: time.Now()},
	}
	if err := e.graph.Add(r); err != nil {
		return err
	}
	if err := e.durable.PutRelationship(ctx, r); err != nil {
		e.graph.Remove(r)
		return err
	}
	e.broker.Publish(&events.Event{
		Type: events.EventRelationshipAdded,
		Metadata: map[string]string{
			"source_id": sourceID, "target_id": targetID, "type": string(typ),
		},
	})
	return nil
}

// RemoveRelationship deletes a directed typed edge, idempotently.
func (e *Engine) RemoveRelationship(ctx context.Context, sourceID, targetID string, typ types.RelationshipType) error {
	r := &types.EpisodeRelationship{SourceID: sourceID, TargetID: targetID, Type: typ}
	e.graph.Remove(r)
	if err := e.durable.DeleteRelationship(ctx, r); err != nil {
		return err
	}
	e.broker.Publish(&events.Event{
		Type: events.EventRelationshipRemoved,
		Metadata: map[string]string{
			"source_id": sourceID, "target_id": targetID, "type": string(typ),
		},
	})
	return nil
}

// GetRelationships lists the edges touching episodeID in the given
// direction, optionally filtered to one type.
func (e *Engine) GetRelationships(episodeID string, dir storage.RelationshipDirection, typ *types.RelationshipType) []types.EpisodeRelationship {
	return e.graph.Neighbors(episodeID, toGraphDirection(dir), typ)
}

// FindRelated returns every episode id reachable from episodeID via any
// edge type, outgoing direction, within depth hops.
func (e *Engine) FindRelated(episodeID string, depth int) []string {
	return e.graph.TransitiveClosure(episodeID, depth)
}

// TopologicalOrder returns a dependency-respecting order over the
// DependsOn subgraph, ties broken lexicographically by id.
func (e *Engine) TopologicalOrder() ([]string, error) {
	return e.graph.TopologicalOrder()
}

// ValidateNoCycles reports whether the DependsOn subgraph reachable from
// episodeID contains a cycle. It exists as a diagnostic over the graph's
// FindAllCyclesFrom: under normal operation Add's cycle check makes this
// always empty, so a non-empty result indicates a bypassed invariant
// (e.g. a relationship loaded directly from storage).
func (e *Engine) ValidateNoCycles(episodeID string) [][]string {
	return e.graph.FindAllCyclesFrom(episodeID)
}

// DependencyGraphNode is one entry in a DependencyGraph response: an
// episode id and the ids it directly depends on.
type DependencyGraphNode struct {
	ID        string
	DependsOn []string
}

// DependencyGraph returns the direct DependsOn adjacency for episodeID and
// its transitive closure, for rendering as a dependency tree.
func (e *Engine) DependencyGraph(episodeID string, maxDepth int) []DependencyGraphNode {
	ids := append([]string{episodeID}, e.graph.Ancestors(episodeID, maxDepth)...)
	var typ = types.RelDependsOn
	out := make([]DependencyGraphNode, 0, len(ids))
	for _, id := range ids {
		var deps []string
		for _, r := range e.graph.Neighbors(id, graph.Outgoing, &typ) {
			deps = append(deps, r.TargetID)
		}
		out = append(out, DependencyGraphNode{ID: id, DependsOn: deps})
	}
	return out
}
