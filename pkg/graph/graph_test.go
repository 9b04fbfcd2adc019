package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

func rel(src, dst string, typ types.RelationshipType) *types.EpisodeRelationship {
	return &types.EpisodeRelationship{SourceID: src, TargetID: dst, Type: typ}
}

func TestAddAndNeighbors(t *testing.T) {
	g := New()
	a := assert.New(t)
	a.NoError(g.Add(rel("a", "b", types.RelDependsOn)))

	out := g.Neighbors("a", Outgoing, nil)
	if a.Len(out, 1) {
		a.Equal("b", out[0].TargetID)
	}

	in := g.Neighbors("b", Incoming, nil)
	if a.Len(in, 1) {
		a.Equal("a", in[0].SourceID)
	}
}

func TestAddRejectsCycle(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelDependsOn)))
	assert.NoError(t, g.Add(rel("b", "c", types.RelDependsOn)))

	err := g.Add(rel("c", "a", types.RelDependsOn))
	assert.Error(t, err)
	assert.True(t, memerr.KindIs(err, memerr.KindCycleDetected))
}

func TestAddAllowsNonDependsOnCycle(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelSimilar)))
	assert.NoError(t, g.Add(rel("b", "a", types.RelSimilar)))
}

func TestRemove(t *testing.T) {
	g := New()
	r := rel("a", "b", types.RelFollowedBy)
	assert.NoError(t, g.Add(r))
	assert.True(t, g.Remove(r))
	assert.False(t, g.Remove(r))
	assert.Empty(t, g.Neighbors("a", Both, nil))
}

func TestTopologicalOrder(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelDependsOn)))
	assert.NoError(t, g.Add(rel("b", "c", types.RelDependsOn)))

	order, err := g.TopologicalOrder()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalOrderIgnoresOtherTypes(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelSimilar)))
	order, err := g.TopologicalOrder()
	assert.NoError(t, err)
	assert.Empty(t, order)
}

func TestAncestors(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelDependsOn)))
	assert.NoError(t, g.Add(rel("b", "c", types.RelDependsOn)))

	assert.Equal(t, []string{"b", "c"}, g.Ancestors("a", 0))
	assert.Equal(t, []string{"b"}, g.Ancestors("a", 1))
}

func TestTransitiveClosureAnyType(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelSimilar)))
	assert.NoError(t, g.Add(rel("b", "c", types.RelPartOf)))

	assert.Equal(t, []string{"b", "c"}, g.TransitiveClosure("a", 0))
}

func TestFindPath(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelDependsOn)))
	assert.NoError(t, g.Add(rel("b", "c", types.RelDependsOn)))

	assert.Equal(t, []string{"a", "b", "c"}, g.FindPath("a", "c", 0))
	assert.Nil(t, g.FindPath("c", "a", 0))
	assert.Equal(t, []string{"a"}, g.FindPath("a", "a", 0))
}

func TestFindPathRespectsMaxDepth(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelDependsOn)))
	assert.NoError(t, g.Add(rel("b", "c", types.RelDependsOn)))

	assert.Nil(t, g.FindPath("a", "c", 1))
}

func TestFindAllCyclesFromEmptyWhenAcyclic(t *testing.T) {
	g := New()
	assert.NoError(t, g.Add(rel("a", "b", types.RelDependsOn)))
	assert.Empty(t, g.FindAllCyclesFrom("a"))
}
