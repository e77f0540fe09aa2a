package ctcbeam

import "math"

// LogSpace is a real number x representing log(p) for some probability p.
// It is a distinct type from float64 so that the decoder's recurrences,
// which mix "probability addition" (logsumexp) and "probability
// multiplication" (ordinary sum) in the same formulas, can never
// accidentally apply one where the other was meant.
type LogSpace float64

func init() {
	// math.Inf is not a compile-time constant, so negInf is finalized here
	// rather than declared as a const.
	negInf = LogSpace(math.Inf(-1))
}

var negInf LogSpace

// Neg returns the LogSpace value representing probability zero. It is a
// function rather than the NegInf const because math.Inf is not a Go
// constant expression.
func Neg() LogSpace { return negInf }

// FromLog wraps a raw, already-in-log-space value.
func FromLog(x float64) LogSpace { return LogSpace(x) }

// FromProb converts a linear-space probability to LogSpace. A probability of
// exactly 0 maps to Neg().
func FromProb(p float64) LogSpace { return LogSpace(math.Log(p)) }

// Float64 returns the underlying log-probability.
func (l LogSpace) Float64() float64 { return float64(l) }

// IsNegInf reports whether l represents probability zero.
func (l LogSpace) IsNegInf() bool { return math.IsInf(float64(l), -1) }

// logsumexp computes log(exp(a)+exp(b)) in a numerically stable way. If
// either operand is Neg(), the other is returned unchanged (log(0+p) = log p).
func logsumexp(a, b LogSpace) LogSpace {
	if a.IsNegInf() {
		return b
	}
	if b.IsNegInf() {
		return a
	}
	af, bf := float64(a), float64(b)
	diff := af - bf
	if diff < 0 {
		diff = -diff
	}
	m := af
	if bf > af {
		m = bf
	}
	return LogSpace(m + math.Log1p(math.Exp(-diff)))
}

// Add returns the LogSpace value representing the sum, in linear space, of
// the probabilities l and other: log(exp(l)+exp(other)).
func (l LogSpace) Add(other LogSpace) LogSpace { return logsumexp(l, other) }

// AddRaw is Add with the other operand given as a raw log-probability.
func (l LogSpace) AddRaw(raw float64) LogSpace { return logsumexp(l, LogSpace(raw)) }

// Mul returns the LogSpace value representing the product, in linear space,
// of the probabilities l and other: ordinary addition of the logs.
func (l LogSpace) Mul(other LogSpace) LogSpace { return l + other }

// MulRaw is Mul with the other operand given as a raw log-probability.
func (l LogSpace) MulRaw(raw float64) LogSpace { return l + LogSpace(raw) }

// AddInPlace applies Add and stores the result back into l.
func (l *LogSpace) AddInPlace(other LogSpace) { *l = l.Add(other) }

// MulInPlace applies Mul and stores the result back into l.
func (l *LogSpace) MulInPlace(other LogSpace) { *l = l.Mul(other) }

// Less reports whether l represents a smaller probability than other. Total
// order consistent with the real value, with Neg() as the least element.
func (l LogSpace) Less(other LogSpace) bool { return l < other }

// Greater reports whether l represents a larger probability than other.
func (l LogSpace) Greater(other LogSpace) bool { return l > other }
