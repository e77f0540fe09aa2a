package ctcbeam

import "gonum.org/v1/gonum/mat"

// Tensor is a read-only, zero-copy view over a caller-supplied row-major
// prediction buffer of shape (Batch, MaxNumPreds, NumClasses). It centralizes
// the offset arithmetic the decoder driver would otherwise repeat inline.
type Tensor struct {
	Data        []float32
	Batch       int
	MaxNumPreds int
	NumClasses  int
}

// NewTensor builds a Tensor, deriving MaxNumPreds from the buffer length,
// batch count and class count, rather than from max(lengths) as a caller
// might expect; the two agree only when the caller has sized the buffer
// exactly to the batch's longest sequence, which Decode's own callers are
// expected to do. It returns a *DecodeError of KindPrecondition if the
// buffer length is not an exact multiple of batch*numClasses.
func NewTensor(data []float32, batch, numClasses int) (*Tensor, error) {
	if batch <= 0 {
		return &Tensor{Data: data, Batch: 0, MaxNumPreds: 0, NumClasses: numClasses}, nil
	}
	if numClasses < 1 {
		return nil, preconditionf("num_classes must be at least 1, got %d", numClasses)
	}
	stride := batch * numClasses
	if stride == 0 || len(data)%stride != 0 {
		return nil, preconditionf("predictions length %d is not a multiple of batch*num_classes=%d", len(data), stride)
	}
	return &Tensor{
		Data:        data,
		Batch:       batch,
		MaxNumPreds: len(data) / stride,
		NumClasses:  numClasses,
	}, nil
}

// offset returns the start index of the (batch, t) row.
func (t *Tensor) offset(batch, ts int) int {
	return batch*t.MaxNumPreds*t.NumClasses + ts*t.NumClasses
}

// At returns the probability of class c at timestep ts of batch item batch.
func (t *Tensor) At(batch, ts, c int) float32 {
	return t.Data[t.offset(batch, ts)+c]
}

// Row returns a zero-copy subslice of the NumClasses class probabilities at
// (batch, ts).
func (t *Tensor) Row(batch, ts int) []float32 {
	off := t.offset(batch, ts)
	return t.Data[off : off+t.NumClasses]
}

// RowVec returns the same row as a *mat.VecDense for callers that want to
// run further numeric analysis (entropy, top-2 margin, etc.) over a
// timestep's class distribution. gonum vectors are float64, so this copies
// and widens the row rather than aliasing it.
func (t *Tensor) RowVec(batch, ts int) *mat.VecDense {
	row := t.Row(batch, ts)
	widened := make([]float64, len(row))
	for i, v := range row {
		widened[i] = float64(v)
	}
	return mat.NewVecDense(len(widened), widened)
}
