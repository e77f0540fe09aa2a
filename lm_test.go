package ctcbeam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLanguageModelValidatesTableSizes(t *testing.T) {
	_, err := NewLanguageModel(4, 0, []float64{0.5, 0.3, 0.2}, make([]float64, 3*3), 1.0, 1e-6)
	require.NoError(t, err)

	_, err = NewLanguageModel(4, 0, []float64{0.5}, make([]float64, 3*3), 1.0, 1e-6)
	require.Error(t, err)

	// A table padded to a row stride of numClasses is rejected: the
	// ratified layout is tightly packed at numClasses-1 per row.
	_, err = NewLanguageModel(4, 0, []float64{0.5, 0.3, 0.2}, make([]float64, 3*4), 1.0, 1e-6)
	require.Error(t, err)

	_, err = NewLanguageModel(4, 0, []float64{0.5, 0.3, 0.2}, make([]float64, 3*3), 1.0, -1)
	require.Error(t, err)
}

func TestLanguageModelScoresFirstCharacterFromRoot(t *testing.T) {
	lm, err := NewLanguageModel(3, 0, []float64{0.1, 0.9}, make([]float64, 2*2), 1.0, 1e-6)
	require.NoError(t, err)

	a := NewArena(4)
	root := a.NewRoot(0)
	child := a.GetOrCreateChild(root, 2)

	got := lm.Score(a, root, child, 0)
	want := math.Log(0.9)
	assert.InDelta(t, want, got.Float64(), 1e-12)
}

func TestLanguageModelAppliesMinProbFloor(t *testing.T) {
	lm, err := NewLanguageModel(3, 0, []float64{0.0, 0.9}, make([]float64, 2*2), 1.0, 0.01)
	require.NoError(t, err)

	a := NewArena(4)
	root := a.NewRoot(0)
	child := a.GetOrCreateChild(root, 1)

	got := lm.Score(a, root, child, 0)
	assert.InDelta(t, math.Log(0.01), got.Float64(), 1e-12)
}

func TestLanguageModelWeightZeroIsMultiplicativeIdentity(t *testing.T) {
	lm, err := NewLanguageModel(3, 0, []float64{0.1, 0.9}, make([]float64, 2*2), 0.0, 1e-6)
	require.NoError(t, err)

	a := NewArena(4)
	root := a.NewRoot(0)
	child := a.GetOrCreateChild(root, 1)

	got := lm.Score(a, root, child, 0)
	assert.True(t, got == FromLog(0))
}

func TestLanguageModelSecondCharacterUsesBigramTable(t *testing.T) {
	// num_classes=4, blank=0 -> non-blank labels {1,2,3} map to {0,1,2}.
	// Row stride is num_classes-1=3, tightly packed.
	second := make([]float64, 3*3)
	// from label 1 (map 0) to label 3 (map 2): row 0, column 2.
	second[0*3+2] = 0.42
	lm, err := NewLanguageModel(4, 0, []float64{0.2, 0.3, 0.5}, second, 1.0, 1e-6)
	require.NoError(t, err)

	a := NewArena(4)
	root := a.NewRoot(0)
	from := a.GetOrCreateChild(root, 1)
	to := a.GetOrCreateChild(from, 3)

	got := lm.Score(a, from, to, 0)
	assert.InDelta(t, math.Log(0.42), got.Float64(), 1e-12)
}
