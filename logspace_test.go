package ctcbeam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"pgregory.net/rapid"
)

func TestLogSpaceAddWithNegInf(t *testing.T) {
	a := FromLog(-3.2)
	require.True(t, a.Add(Neg()) == a)
	require.True(t, Neg().Add(a) == a)
}

func TestLogSpaceAddMatchesLinearSpace(t *testing.T) {
	a := FromProb(0.3)
	b := FromProb(0.4)
	got := math.Exp(a.Add(b).Float64())
	assert.True(t, floats.EqualWithinAbsOrRel(got, 0.7, 1e-9, 1e-9), "got %v", got)
}

func TestLogSpaceMulMatchesLinearSpace(t *testing.T) {
	a := FromProb(0.3)
	b := FromProb(0.4)
	got := math.Exp(a.Mul(b).Float64())
	assert.True(t, floats.EqualWithinAbsOrRel(got, 0.12, 1e-9, 1e-9), "got %v", got)
}

func TestLogSpaceAddAtLeastOperands(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := LogSpace(rapid.Float64Range(-50, 0).Draw(t, "a"))
		b := LogSpace(rapid.Float64Range(-50, 0).Draw(t, "b"))
		sum := a.Add(b)
		max := a
		if b.Greater(max) {
			max = b
		}
		assert.True(t, sum.Float64() >= max.Float64()-1e-9)
	})
}

func TestLogSpaceAddCommutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := LogSpace(rapid.Float64Range(-50, 0).Draw(t, "a"))
		b := LogSpace(rapid.Float64Range(-50, 0).Draw(t, "b"))
		ab := a.Add(b).Float64()
		ba := b.Add(a).Float64()
		assert.True(t, floats.EqualWithinAbsOrRel(ab, ba, 1e-9, 1e-9))
	})
}

func TestLogSpaceOrdering(t *testing.T) {
	assert.True(t, Neg().Less(FromLog(-1)))
	assert.True(t, FromLog(-2).Less(FromLog(-1)))
	assert.False(t, FromLog(-1).Less(FromLog(-1)))
}
