package decoder

import (
	"sort"

	"github.com/FabricioMatos/flashlight-text-go/lexicon"
	"github.com/FabricioMatos/flashlight-text-go/lm"
)

// state is one node in the hypothesis graph: a partial decoding ending at a
// given frame. States live in per-frame arenas owned by the decoder; parent
// points into an earlier arena and stays valid until the pruner discards
// that frame.
type state struct {
	score     float64
	lmState   *lm.State
	lex       *lexicon.TrieNode
	parent    *state
	token     int  // token emitted on the transition into this state
	word      int  // word label emitted on this transition, -1 if none
	prevBlank bool // CTC: the previous emission was blank
	amScore   float64
	lmScore   float64
}

// DecodeResult is one backtracked hypothesis. Words and Tokens carry one
// entry per frame (including the seed frame); frames that emit nothing hold
// -1. FrameScores is the cumulative path score at each frame.
type DecodeResult struct {
	Score       float64
	AMScore     float64
	LMScore     float64
	Words       []int
	Tokens      []int
	FrameScores []float64
}

// WordIDs returns the emitted word labels in order, dropping the -1 padding.
func (r *DecodeResult) WordIDs() []int {
	out := make([]int, 0, len(r.Words))
	for _, w := range r.Words {
		if w >= 0 {
			out = append(out, w)
		}
	}
	return out
}

// TokenIDs returns a copy of the per-frame token sequence.
func (r *DecodeResult) TokenIDs() []int {
	out := make([]int, len(r.Tokens))
	copy(out, r.Tokens)
	return out
}

// getHypothesis backtracks the parent chain of node into a DecodeResult
// covering frames [0, finalFrame].
func getHypothesis(node *state, finalFrame int) DecodeResult {
	if node == nil || finalFrame < 0 {
		return DecodeResult{}
	}
	res := DecodeResult{
		Score:       node.score,
		AMScore:     node.amScore,
		LMScore:     node.lmScore,
		Words:       make([]int, finalFrame+1),
		Tokens:      make([]int, finalFrame+1),
		FrameScores: make([]float64, finalFrame+1),
	}
	for i := range res.Words {
		res.Words[i] = -1
		res.Tokens[i] = -1
	}
	i := 0
	for n := node; n != nil && finalFrame-i >= 0; n = n.parent {
		res.Words[finalFrame-i] = n.word
		res.Tokens[finalFrame-i] = n.token
		res.FrameScores[finalFrame-i] = n.score
		i++
	}
	return res
}

// findBestAncestor picks the best-scoring state of the frame (ties broken by
// position) and walks lookBack parent steps up from it.
func findBestAncestor(frame []state, lookBack int) *state {
	if len(frame) == 0 {
		return nil
	}
	best := &frame[0]
	for i := 1; i < len(frame); i++ {
		if frame[i].score > best.score {
			best = &frame[i]
		}
	}
	for n := 0; n < lookBack && best.parent != nil; n++ {
		best = best.parent
	}
	return best
}

// allHypotheses backtracks every state of the frame, sorted by descending
// score with the frame order as tie-break.
func allHypotheses(frame []state, finalFrame int) []DecodeResult {
	out := make([]DecodeResult, 0, len(frame))
	for i := range frame {
		out = append(out, getHypothesis(&frame[i], finalFrame))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
