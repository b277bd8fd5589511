package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWouldCycle(t *testing.T) {
	// a -> b -> c chain
	adj := map[string][]string{
		"a": {"b"},
		"b": {"c"},
	}

	assert.False(t, wouldCycle(adj, "a", "c"), "deeper edge along an existing chain is fine")
	assert.False(t, wouldCycle(adj, "d", "a"), "fresh node pointing into the chain is fine")
	assert.True(t, wouldCycle(adj, "c", "a"), "closing the chain back to its head is a cycle")
	assert.True(t, wouldCycle(adj, "b", "a"), "two-node loop is a cycle")
}

func TestWouldCycleDiamond(t *testing.T) {
	// two paths from a to d must not be mistaken for a cycle
	adj := map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
	}
	assert.False(t, wouldCycle(adj, "a", "d"))
	assert.True(t, wouldCycle(adj, "d", "a"))
}

func TestWouldCycleEmptyGraph(t *testing.T) {
	assert.False(t, wouldCycle(map[string][]string{}, "a", "b"))
}
