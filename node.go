package ctcbeam

// NodeIndex addresses a BeamNode within an Arena. Indices are stable for
// the lifetime of the Arena: nodes are never relocated or freed.
type NodeIndex int32

// noParent is the sentinel parent index for the root node.
const noParent NodeIndex = -1

// BeamProbability is the { label, blank, total } triple of LogSpace values
// carried by a BeamNode for one timestep. label is the log-probability that
// the prefix ended by emitting a non-blank label at the most recent step,
// blank is the log-probability it ended by emitting blank, and total is
// logsumexp(label, blank).
type BeamProbability struct {
	Label LogSpace
	Blank LogSpace
	Total LogSpace
}

// inactiveProbability returns the default, all-Neg() BeamProbability.
func inactiveProbability() BeamProbability {
	n := negInf
	return BeamProbability{Label: n, Blank: n, Total: n}
}

// recomputeTotal sets p.Total = logsumexp(p.Label, p.Blank).
func (p *BeamProbability) recomputeTotal() {
	p.Total = logsumexp(p.Label, p.Blank)
}

// BeamNode represents one candidate label prefix in the decoder's prefix
// tree. OldP holds the previous timestep's probabilities, NewP the
// timestep currently being computed. Label is the last label on the path
// from the root (the root's Label equals the blank index). Parent is the
// arena index of the tree-parent, or noParent for the root. Children maps
// a label to the arena index of the unique child extending the prefix by
// that label.
type BeamNode struct {
	OldP     BeamProbability
	NewP     BeamProbability
	Label    int
	Parent   NodeIndex
	Children map[int]NodeIndex
}

// Active reports whether the node currently participates in the decode
// (i.e. has a non-zero probability of being the true prefix at the
// timestep being computed).
func (n *BeamNode) Active() bool { return !n.NewP.Total.IsNegInf() }

// Arena is an append-only store of BeamNodes for a single decode of a
// single batch item, addressed by NodeIndex. Parent/child links are
// indices rather than pointers so the tree can grow without invalidating
// previously-handed-out references, and so index slices (beam snapshots)
// can be copied cheaply. The arena itself holds *BeamNode (one heap
// allocation per node) rather than BeamNode by value: growing the index
// slice must never invalidate a *BeamNode a caller is still holding mid
// timestep, and a value slice's backing array is reallocated by append
// whenever it outgrows its capacity.
type Arena struct {
	nodes []*BeamNode
}

// NewArena allocates an Arena with room for at least capacityHint nodes
// before its index slice must grow.
func NewArena(capacityHint int) *Arena {
	if capacityHint < 1 {
		capacityHint = 1
	}
	return &Arena{nodes: make([]*BeamNode, 0, capacityHint)}
}

// Len returns the number of nodes allocated so far.
func (a *Arena) Len() int { return len(a.nodes) }

// Node returns the node at idx for in-place mutation.
func (a *Arena) Node(idx NodeIndex) *BeamNode { return a.nodes[idx] }

// NewRoot allocates the root node: Label = blankIdx, no parent, and the
// pre-first-timestep boundary probability (p=1 of "ended in blank", p=0 of
// "ended in label").
func (a *Arena) NewRoot(blankIdx int) NodeIndex {
	root := &BeamNode{
		OldP:     inactiveProbability(),
		NewP:     BeamProbability{Label: negInf, Blank: FromLog(0), Total: FromLog(0)},
		Label:    blankIdx,
		Parent:   noParent,
		Children: make(map[int]NodeIndex),
	}
	a.nodes = append(a.nodes, root)
	return NodeIndex(len(a.nodes) - 1)
}

// GetOrCreateChild returns the existing child of parent for label if one
// exists, or allocates a fresh, inactive node wired into parent's children
// map and returns its index.
func (a *Arena) GetOrCreateChild(parent NodeIndex, label int) NodeIndex {
	if existing, ok := a.nodes[parent].Children[label]; ok {
		return existing
	}
	child := &BeamNode{
		OldP:     inactiveProbability(),
		NewP:     inactiveProbability(),
		Label:    label,
		Parent:   parent,
		Children: make(map[int]NodeIndex),
	}
	a.nodes = append(a.nodes, child)
	idx := NodeIndex(len(a.nodes) - 1)
	a.nodes[parent].Children[label] = idx
	return idx
}

// Deactivate resets idx's NewP to the inactive default. OldP, Parent,
// Label, and Children are untouched, so the node can be revived with fresh
// NewP values in a later timestep and its subtree remains addressable.
func (a *Arena) Deactivate(idx NodeIndex) {
	a.nodes[idx].NewP = inactiveProbability()
}

// ReconstructSequence walks parent links from idx to the root and returns
// the labels along that path, root-to-idx order (the root's own label is
// not included).
func (a *Arena) ReconstructSequence(idx NodeIndex) []int {
	var reversed []int
	for idx != noParent {
		n := a.nodes[idx]
		if n.Parent == noParent {
			break
		}
		reversed = append(reversed, n.Label)
		idx = n.Parent
	}
	out := make([]int, len(reversed))
	for i, l := range reversed {
		out[len(reversed)-1-i] = l
	}
	return out
}
