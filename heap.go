package ctcbeam

import "container/heap"

// heapData adapts a slice of NodeIndex plus the Arena needed to compare
// them into container/heap's Interface. This is the same pattern used by
// arena-backed priority queues elsewhere in the ecosystem (e.g. Huffman
// tree construction): a flat node slice, a heap over indices into it, and
// comparisons that dereference through the slice rather than copying
// node values into the heap itself.
type heapData struct {
	arena   *Arena
	indices []NodeIndex
}

func (h *heapData) Len() int { return len(h.indices) }

func (h *heapData) Less(i, j int) bool {
	a := h.arena.Node(h.indices[i]).NewP.Total
	b := h.arena.Node(h.indices[j]).NewP.Total
	return a.Less(b)
}

func (h *heapData) Swap(i, j int) { h.indices[i], h.indices[j] = h.indices[j], h.indices[i] }

func (h *heapData) Push(x interface{}) { h.indices = append(h.indices, x.(NodeIndex)) }

func (h *heapData) Pop() interface{} {
	old := h.indices
	n := len(old)
	x := old[n-1]
	h.indices = old[:n-1]
	return x
}

// BeamHeap is a bounded min-heap of NodeIndex, ordered by the referenced
// node's NewP.Total, used to retain only the top beam_width active
// prefixes at each timestep. Pushing past capacity evicts and returns the
// current minimum instead of growing, avoiding an explicit pop+push pair.
//
// Admission order (the order in which Push was called during the current
// timestep) is tracked separately from the heap's internal array order,
// which container/heap rearranges on every sift, so that the decoder can
// iterate the beam in a stable, push-determined order.
type BeamHeap struct {
	data     *heapData
	capacity int
	order    []NodeIndex
}

// NewBeamHeap creates a BeamHeap over arena with the given capacity
// (beam_width). capacity must be at least 1.
func NewBeamHeap(arena *Arena, capacity int) *BeamHeap {
	return &BeamHeap{
		data:     &heapData{arena: arena, indices: make([]NodeIndex, 0, capacity)},
		capacity: capacity,
		order:    make([]NodeIndex, 0, capacity),
	}
}

// Push admits idx into the beam. If the beam has room, idx is inserted and
// no eviction occurs (evicted is the zero value, ok is false). If the beam
// is at capacity, the current minimum is evicted and returned (ok is
// true) and idx takes its place.
func (b *BeamHeap) Push(idx NodeIndex) (evicted NodeIndex, ok bool) {
	if b.data.Len() < b.capacity {
		heap.Push(b.data, idx)
		b.order = append(b.order, idx)
		return 0, false
	}
	evicted = b.data.indices[0]
	b.data.indices[0] = idx
	heap.Fix(b.data, 0)
	for i, v := range b.order {
		if v == evicted {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.order = append(b.order, idx)
	return evicted, true
}

// Min returns the index at the root of the heap: the current worst among
// the kept top-K. Min panics if the heap is empty.
func (b *BeamHeap) Min() NodeIndex { return b.data.indices[0] }

// Len returns the number of indices currently retained.
func (b *BeamHeap) Len() int { return b.data.Len() }

// Full reports whether the beam has reached capacity.
func (b *BeamHeap) Full() bool { return b.data.Len() >= b.capacity }

// Clear empties the heap and its admission-order log, ready for the next
// timestep.
func (b *BeamHeap) Clear() {
	b.data.indices = b.data.indices[:0]
	b.order = b.order[:0]
}

// Snapshot returns a copy of the indices admitted since the last Clear, in
// admission order. The decoder's extend pass iterates this order; its
// no-extend pass sorts a copy by arena index instead, because a tree-parent
// re-admitted through the extend pass can follow its own child in admission
// order.
func (b *BeamHeap) Snapshot() []NodeIndex {
	out := make([]NodeIndex, len(b.order))
	copy(out, b.order)
	return out
}

// Indices returns the heap's current index set in heap-array order. Used
// only where order does not matter (e.g. scanning for the best final
// node).
func (b *BeamHeap) Indices() []NodeIndex { return b.data.indices }
