package ctcbeam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newScoredArena(t testing.TB, scores []float64) (*Arena, []NodeIndex) {
	t.Helper()
	a := NewArena(len(scores) + 1)
	root := a.NewRoot(0)
	idxs := make([]NodeIndex, len(scores))
	for i, s := range scores {
		idx := a.GetOrCreateChild(root, i+1) // label 0 is reserved for blank/root
		a.Node(idx).NewP.Total = FromLog(s)
		idxs[i] = idx
	}
	return a, idxs
}

func TestBeamHeapEvictsMinimum(t *testing.T) {
	a := NewArena(8)
	root := a.NewRoot(0)
	mk := func(label int, score float64) NodeIndex {
		idx := a.GetOrCreateChild(root, label)
		a.Node(idx).NewP.Total = FromLog(score)
		return idx
	}

	h := NewBeamHeap(a, 2)
	n1 := mk(1, -1.0)
	n2 := mk(2, -2.0)
	n3 := mk(3, -0.5)

	_, evicted := h.Push(n1)
	require.False(t, evicted)
	_, evicted = h.Push(n2)
	require.False(t, evicted)
	require.True(t, h.Full())

	ev, evicted := h.Push(n3)
	require.True(t, evicted)
	assert.Equal(t, n2, ev) // n2 has the lowest score, -2.0
	assert.Equal(t, 2, h.Len())
}

func TestBeamHeapNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		n := rapid.IntRange(0, 64).Draw(t, "n")

		scores := make([]float64, n)
		for i := range scores {
			scores[i] = rapid.Float64Range(-100, 0).Draw(t, "score")
		}
		a, idxs := newScoredArena(t, scores)
		h := NewBeamHeap(a, capacity)
		for _, idx := range idxs {
			h.Push(idx)
			assert.LessOrEqual(t, h.Len(), capacity)
		}
	})
}

func TestBeamHeapSnapshotIsAdmissionOrderAndExcludesEvicted(t *testing.T) {
	a := NewArena(8)
	root := a.NewRoot(0)
	mk := func(label int, score float64) NodeIndex {
		idx := a.GetOrCreateChild(root, label)
		a.Node(idx).NewP.Total = FromLog(score)
		return idx
	}
	h := NewBeamHeap(a, 2)
	n1 := mk(1, -5.0)
	n2 := mk(2, -1.0)
	n3 := mk(3, -0.5)

	h.Push(n1)
	h.Push(n2)
	evicted, ok := h.Push(n3) // n1 is the minimum, evicted
	require.True(t, ok)
	require.Equal(t, n1, evicted)

	snap := h.Snapshot()
	require.Equal(t, []NodeIndex{n2, n3}, snap)
}

func TestBeamHeapClearResetsOrderAndContents(t *testing.T) {
	a := NewArena(4)
	root := a.NewRoot(0)
	idx := a.GetOrCreateChild(root, 1)
	a.Node(idx).NewP.Total = FromLog(-1)

	h := NewBeamHeap(a, 2)
	h.Push(idx)
	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Snapshot())
}
