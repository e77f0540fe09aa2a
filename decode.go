package ctcbeam

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Result is the batch output of Decode/DecodeWithLM: row-major, zero-padded
// label sequences plus each row's true length.
type Result struct {
	// Sequences is row-major [batch, MaxOutputLen], zero-padded on the
	// right.
	Sequences []int32
	// Lengths holds the true, unpadded length of each row.
	Lengths []int32
	// MaxOutputLen is the row width of Sequences.
	MaxOutputLen int
}

// Option configures optional decoder behavior (logging, metrics,
// cancellation). The zero value of every field is a safe no-op.
type Option func(*config)

type config struct {
	logger  zerolog.Logger
	metrics *Metrics
	ctx     context.Context
}

func defaultConfig() config {
	return config{logger: zerolog.Nop(), ctx: context.Background()}
}

// WithLogger attaches a zerolog.Logger the decoder uses for lifecycle and
// anomaly events. The default is zerolog.Nop() (silent).
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics attaches a Metrics bundle the decoder reports against. The
// default is nil, which makes every recording call a no-op.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithContext attaches a context checked once per batch item; if it is
// already done when a batch item's decode would start, decoding stops and
// ctx.Err() is returned. The default is context.Background().
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// Decode runs prefix beam search CTC decoding over a batch with no
// language model.
func Decode(predictions []float32, lengths []int32, numClasses, beamWidth, blankIdx int, opts ...Option) (*Result, error) {
	return decodeBatch(predictions, lengths, numClasses, beamWidth, blankIdx, nil, opts)
}

// DecodeWithLM runs prefix beam search CTC decoding over a batch, rescoring
// prefix extensions with lm.
func DecodeWithLM(predictions []float32, lengths []int32, numClasses, beamWidth, blankIdx int, lm *LanguageModel, opts ...Option) (*Result, error) {
	if lm == nil {
		return nil, preconditionf("lm must not be nil; use Decode for unconditioned decoding")
	}
	return decodeBatch(predictions, lengths, numClasses, beamWidth, blankIdx, lm, opts)
}

func decodeBatch(predictions []float32, lengths []int32, numClasses, beamWidth, blankIdx int, lm *LanguageModel, opts []Option) (*Result, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if beamWidth < 1 {
		return nil, preconditionf("beam_width must be at least 1, got %d", beamWidth)
	}
	if numClasses < 1 {
		return nil, preconditionf("num_classes must be at least 1, got %d", numClasses)
	}
	if blankIdx < 0 || blankIdx >= numClasses {
		return nil, preconditionf("blank_idx %d out of range [0, %d)", blankIdx, numClasses)
	}
	if lm != nil && (lm.NumClasses != numClasses || lm.BlankIdx != blankIdx) {
		return nil, preconditionf("language model was built for num_classes=%d blank_idx=%d, decode called with num_classes=%d blank_idx=%d", lm.NumClasses, lm.BlankIdx, numClasses, blankIdx)
	}

	batch := len(lengths)
	tensor, err := NewTensor(predictions, batch, numClasses)
	if err != nil {
		return nil, err
	}

	for i, l := range lengths {
		if l < 0 {
			return nil, preconditionf("lengths[%d] = %d must be non-negative", i, l)
		}
		if int(l) > tensor.MaxNumPreds {
			return nil, preconditionf("lengths[%d] = %d exceeds max_num_preds=%d derived from predictions buffer", i, l, tensor.MaxNumPreds)
		}
	}

	sequences := make([][]int, batch)
	maxOutputLen := 0
	for i := range lengths {
		if err := cfg.ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		seq, err := decodeOne(tensor, i, int(lengths[i]), numClasses, beamWidth, blankIdx, lm, &cfg)
		cfg.metrics.observeDecodeDuration(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		sequences[i] = seq
		if len(seq) > maxOutputLen {
			maxOutputLen = len(seq)
		}
		cfg.logger.Debug().
			Int("batch", i).
			Int("timesteps", int(lengths[i])).
			Int("sequence_len", len(seq)).
			Msg("decoded batch item")
	}

	out := &Result{
		Sequences:    make([]int32, batch*maxOutputLen),
		Lengths:      make([]int32, batch),
		MaxOutputLen: maxOutputLen,
	}
	for i, seq := range sequences {
		out.Lengths[i] = int32(len(seq))
		for j, label := range seq {
			out.Sequences[i*maxOutputLen+j] = int32(label)
		}
	}
	return out, nil
}

// decodeOne runs the per-timestep recurrence of §4.4 for a single batch
// item and returns its decoded (collapsed) label sequence. It returns a
// *DecodeError of KindInvariant if the beam ever exceeds beam_width or the
// final beam's index set turns up empty after surviving the per-timestep
// empty-beam check, either of which would mean the arena/heap bookkeeping
// reached a state the algorithm assumes can't happen.
func decodeOne(tensor *Tensor, batch, numSteps, numClasses, beamWidth, blankIdx int, lm *LanguageModel, cfg *config) ([]int, error) {
	arena := NewArena(beamWidth * 4)
	beam := NewBeamHeap(arena, beamWidth)

	root := arena.NewRoot(blankIdx)
	beam.Push(root)

	for t := 0; t < numSteps; t++ {
		snapshot := beam.Snapshot()
		beam.Clear()

		for _, b := range snapshot {
			node := arena.Node(b)
			node.OldP = node.NewP
			node.NewP = inactiveProbability()
		}

		// No-extend branch: the prefix doesn't change, one more symbol is
		// emitted. A node reads its tree-parent's NewP.Total computed in
		// this same pass, so nodes are visited in ascending arena index
		// order: a parent is always allocated before its children, so it is
		// processed first whenever both are in this snapshot.
		byIndex := make([]NodeIndex, len(snapshot))
		copy(byIndex, snapshot)
		sort.Slice(byIndex, func(i, j int) bool { return byIndex[i] < byIndex[j] })
		for _, b := range byIndex {
			node := arena.Node(b)
			node.NewP.Label = node.OldP.Label
			if node.Parent != noParent {
				parent := arena.Node(node.Parent)
				if parent.Active() {
					var prev LogSpace
					if node.Label == parent.Label {
						prev = parent.OldP.Blank
					} else {
						prev = parent.OldP.Total
					}
					if lm != nil {
						prev = prev.Mul(lm.Score(arena, node.Parent, b, blankIdx))
					}
					node.NewP.Label = node.NewP.Label.Add(prev)
				}
			}
			node.NewP.Label = node.NewP.Label.MulRaw(math.Log(float64(tensor.At(batch, t, node.Label))))
			node.NewP.Blank = node.OldP.Total.MulRaw(math.Log(float64(tensor.At(batch, t, blankIdx))))
			node.NewP.recomputeTotal()

			if !node.NewP.Total.IsNegInf() {
				if _, evicted := beam.Push(b); evicted {
					cfg.metrics.incEvictions()
				}
			}
		}

		// Extend branch: try appending every non-blank label to each
		// snapshotted prefix.
		for _, b := range snapshot {
			node := arena.Node(b)
			if node.OldP.Total.IsNegInf() {
				continue
			}
			if beam.Full() {
				worst := arena.Node(beam.Min()).NewP.Total
				if !node.OldP.Total.Greater(worst) {
					continue
				}
			}

			for label := 0; label < numClasses; label++ {
				if label == blankIdx {
					continue
				}
				logit := FromProb(float64(tensor.At(batch, t, label)))
				if logit.IsNegInf() {
					continue
				}

				c := arena.GetOrCreateChild(b, label)
				child := arena.Node(c)
				if child.Active() {
					continue
				}

				child.NewP.Blank = negInf
				var prev LogSpace
				if node.Label == label {
					prev = node.OldP.Blank
				} else {
					prev = node.OldP.Total
				}
				if lm != nil {
					prev = prev.Mul(lm.Score(arena, b, c, blankIdx))
				}
				child.NewP.Label = prev.MulRaw(float64(logit))
				child.NewP.Total = child.NewP.Label

				admit := !child.NewP.Total.IsNegInf()
				if admit && beam.Full() {
					admit = child.NewP.Total.Greater(arena.Node(beam.Min()).NewP.Total)
				}
				if admit {
					if evictedIdx, evicted := beam.Push(c); evicted {
						arena.Deactivate(evictedIdx)
						cfg.metrics.incEvictions()
					}
				} else {
					arena.Deactivate(c)
				}
			}
		}

		if beam.Len() > beamWidth {
			return nil, invariant(fmt.Sprintf("beam holds %d prefixes after timestep %d, exceeding beam_width=%d", beam.Len(), t, beamWidth))
		}

		cfg.metrics.observeBeamOccupancy(beam.Len())
		if beam.Len() == 0 {
			cfg.metrics.incEmptyBeam()
			cfg.logger.Warn().Int("batch", batch).Int("timestep", t).Msg("beam went empty; no active candidates")
			return nil, nil
		}
	}

	best, err := bestNode(arena, beam)
	if err != nil {
		return nil, err
	}
	return arena.ReconstructSequence(best), nil
}

// bestNode scans the beam's current indices for the one with the greatest
// NewP.Total. It returns a *DecodeError of KindInvariant if the beam's
// index set is empty, which should be unreachable: decodeOne returns before
// calling bestNode whenever the beam has gone empty.
func bestNode(arena *Arena, beam *BeamHeap) (NodeIndex, error) {
	indices := beam.Indices()
	if len(indices) == 0 {
		return 0, invariant("bestNode called with an empty beam")
	}
	best := indices[0]
	bestTotal := arena.Node(best).NewP.Total
	for _, idx := range indices[1:] {
		total := arena.Node(idx).NewP.Total
		if total.Greater(bestTotal) {
			best = idx
			bestTotal = total
		}
	}
	return best, nil
}
