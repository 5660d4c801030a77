package decoder

import (
	"math"
	"sort"

	"github.com/FabricioMatos/flashlight-text-go/internal/mathutil"
	"github.com/FabricioMatos/flashlight-text-go/lexicon"
	"github.com/FabricioMatos/flashlight-text-go/lm"
)

// mergeKey identifies candidates whose futures are indistinguishable: same
// LM context, same trie position, same emitted word, same blank flag. The
// last token is deliberately not part of the key.
type mergeKey struct {
	lmState   *lm.State
	lex       *lexicon.TrieNode
	word      int
	prevBlank bool
}

// candidateBuffer accumulates proposed states for one frame. Candidates far
// below the running best are rejected on entry; candidates with an equal
// merge key are combined in place.
type candidateBuffer struct {
	bestScore float64
	byKey     map[mergeKey]int // index into list
	list      []state
}

func newCandidateBuffer(beamSize int) *candidateBuffer {
	return &candidateBuffer{
		bestScore: math.Inf(-1),
		byKey:     make(map[mergeKey]int, 2*beamSize),
	}
}

func (b *candidateBuffer) reset() {
	b.bestScore = math.Inf(-1)
	clear(b.byKey)
	b.list = b.list[:0]
}

// add inserts a candidate, dropping it early when it falls below
// bestScore-threshold and merging it with an existing candidate of equal
// key. On merge the higher-scoring entry keeps its parent, token and score
// decomposition.
func (b *candidateBuffer) add(cand state, threshold float64, logAdd bool) {
	if cand.score < b.bestScore-threshold {
		return
	}
	if cand.score > b.bestScore {
		b.bestScore = cand.score
	}
	key := mergeKey{cand.lmState, cand.lex, cand.word, cand.prevBlank}
	if i, ok := b.byKey[key]; ok {
		prev := &b.list[i]
		if logAdd {
			merged := mathutil.LogAdd(prev.score, cand.score)
			if cand.score > prev.score {
				*prev = cand
			}
			prev.score = merged
		} else if cand.score > prev.score {
			*prev = cand
		}
		return
	}
	b.byKey[key] = len(b.list)
	b.list = append(b.list, cand)
}

// store selects the top beamSize candidates with score at or above
// bestScore-threshold into a fresh frame arena. Ordering is by descending
// score; equal scores keep their insertion order.
func (b *candidateBuffer) store(beamSize int, threshold float64) []state {
	floor := b.bestScore - threshold
	kept := make([]state, 0, len(b.list))
	for i := range b.list {
		if b.list[i].score >= floor {
			kept = append(kept, b.list[i])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})
	if len(kept) > beamSize {
		kept = kept[:beamSize]
	}
	// Copy into an exactly-sized arena; later frames hold parent pointers
	// into it, so it must never be appended to again.
	frame := make([]state, len(kept))
	copy(frame, kept)
	return frame
}
