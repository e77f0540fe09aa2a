package ctcbeam

import "math"

// LanguageModel is an optional bigram character language model used to
// rescore prefix extensions during decode. Labels are numbered
// [0, NumClasses) with BlankIdx somewhere in that range; the probability
// tables omit the blank entirely, so a label L maps to table index L if
// L < BlankIdx, else L-1.
//
// SecondCharProbs is a tightly packed (NumClasses-1) x (NumClasses-1) row
// major table: row stride is NumClasses-1, with no padding column. A
// transition from label a to label b is scored at
// map(a)*(NumClasses-1) + map(b). NewLanguageModel validates the table
// length against this layout.
type LanguageModel struct {
	NumClasses      int
	BlankIdx        int
	FirstCharProbs  []float64 // length NumClasses-1
	SecondCharProbs []float64 // length (NumClasses-1) * (NumClasses-1)
	Weight          float64
	MinProb         float64
}

// NewLanguageModel validates and constructs a LanguageModel. It returns a
// *DecodeError of KindPrecondition if the tables are sized incorrectly or
// MinProb is not strictly positive.
func NewLanguageModel(numClasses, blankIdx int, firstCharProbs, secondCharProbs []float64, weight, minProb float64) (*LanguageModel, error) {
	if numClasses < 2 {
		return nil, preconditionf("num_classes must be at least 2 to carry a non-blank alphabet, got %d", numClasses)
	}
	if blankIdx < 0 || blankIdx >= numClasses {
		return nil, preconditionf("blank_idx %d out of range [0, %d)", blankIdx, numClasses)
	}
	wantFirst := numClasses - 1
	if len(firstCharProbs) != wantFirst {
		return nil, preconditionf("first_char_probs must have length %d, got %d", wantFirst, len(firstCharProbs))
	}
	wantSecond := (numClasses - 1) * (numClasses - 1)
	if len(secondCharProbs) != wantSecond {
		return nil, preconditionf("second_char_probs must have length %d (row stride num_classes-1=%d), got %d", wantSecond, numClasses-1, len(secondCharProbs))
	}
	if minProb <= 0 {
		return nil, preconditionf("lm_min_prob must be strictly positive, got %v", minProb)
	}
	if weight < 0 {
		return nil, preconditionf("lm_weight must be non-negative, got %v", weight)
	}
	return &LanguageModel{
		NumClasses:      numClasses,
		BlankIdx:        blankIdx,
		FirstCharProbs:  firstCharProbs,
		SecondCharProbs: secondCharProbs,
		Weight:          weight,
		MinProb:         minProb,
	}, nil
}

// mapLabel maps a class label (which may equal BlankIdx) to the
// blank-excluded table index used by FirstCharProbs/SecondCharProbs.
func (lm *LanguageModel) mapLabel(label int) int {
	if label < lm.BlankIdx {
		return label
	}
	return label - 1
}

// Score returns the LM contribution, in LogSpace, of the transition from
// node a to node b. If a.Label == blankIdx, a is the root and b is scored
// as the first character of the sequence; otherwise b is scored as
// following a's label under the bigram table. The raw probability is
// floored at MinProb before taking the log, then scaled by Weight.
func (lm *LanguageModel) Score(arena *Arena, a, b NodeIndex, blankIdx int) LogSpace {
	aLabel := arena.Node(a).Label
	bLabel := arena.Node(b).Label

	var p float64
	if aLabel == blankIdx {
		p = lm.FirstCharProbs[lm.mapLabel(bLabel)]
	} else {
		p = lm.SecondCharProbs[lm.mapLabel(aLabel)*(lm.NumClasses-1)+lm.mapLabel(bLabel)]
	}
	if p < lm.MinProb {
		p = lm.MinProb
	}
	return FromLog(lm.Weight * math.Log(p))
}
