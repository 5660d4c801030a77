package decoder

import (
	"math"
	"sort"

	"github.com/FabricioMatos/flashlight-text-go/lexicon"
	"github.com/FabricioMatos/flashlight-text-go/lm"
	"github.com/pkg/errors"
)

// LexiconDecoder performs lexicon-constrained beam search over emission
// matrices. Lifecycle: Begin, any number of Step calls, End, then
// BestHypothesis / AllFinalHypotheses; Prune may be interleaved between
// Steps to commit and discard old frames.
//
// A LexiconDecoder is not safe for concurrent use. Independent instances
// may run in parallel, each owning its language model adapter; the trie is
// read-only and may be shared.
type LexiconDecoder struct {
	opt         Options
	trie        *lexicon.Trie
	lm          lm.LM
	sil         int       // silence / word-separator token index
	blank       int       // CTC blank token index
	unk         int       // unknown-word label
	transitions []float64 // ASG token-to-token transitions, indexed [to*N+from]
	isLMToken   bool      // score the LM per token instead of per word

	customVocab map[int]struct{}

	hyp            map[int][]state
	candidates     *candidateBuffer
	nDecodedFrames int
	nPrunedFrames  int

	nTokens    int // fixed after the first Step
	tokenOrder []int
	liveStates []*lm.State
}

// NewLexiconDecoder creates a decoder over the given trie and language
// model. sil and blank are token indices (blank is ignored for ASG), unk is
// the word label emitted for unknown words. transitions must hold N*N
// entries for ASG and may be nil for CTC. When isLMToken is set the LM is
// consulted on every token instead of only at word boundaries.
func NewLexiconDecoder(
	opt Options,
	trie *lexicon.Trie,
	model lm.LM,
	sil, blank, unk int,
	transitions []float64,
	isLMToken bool,
) (*LexiconDecoder, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if trie == nil || model == nil {
		return nil, errors.Wrap(ErrConfiguration, "nil trie or language model")
	}
	if sil < 0 {
		return nil, errors.Wrapf(ErrConfiguration, "silence token %d", sil)
	}
	if opt.Criterion == CriterionCTC && blank < 0 {
		return nil, errors.Wrapf(ErrConfiguration, "blank token %d", blank)
	}
	if opt.Criterion == CriterionASG && len(transitions) == 0 {
		return nil, errors.Wrap(ErrConfiguration, "ASG requires a transition matrix")
	}
	return &LexiconDecoder{
		opt:         opt,
		trie:        trie,
		lm:          model,
		sil:         sil,
		blank:       blank,
		unk:         unk,
		transitions: transitions,
		isLMToken:   isLMToken,
		candidates:  newCandidateBuffer(opt.BeamSize),
	}, nil
}

// SetCustomVocabulary installs the word labels whose emission scores are
// boosted by CustomWordFactor.
func (d *LexiconDecoder) SetCustomVocabulary(wordIDs []int) {
	d.customVocab = make(map[int]struct{}, len(wordIDs))
	for _, w := range wordIDs {
		d.customVocab[w] = struct{}{}
	}
}

// Begin resets the decoder and seeds frame 0 with the root hypothesis.
func (d *LexiconDecoder) Begin() {
	d.hyp = make(map[int][]state)
	d.hyp[0] = []state{{
		score:   0,
		lmState: d.lm.Start(false),
		lex:     d.trie.Root(),
		token:   d.sil,
		word:    -1,
	}}
	d.nDecodedFrames = 0
	d.nPrunedFrames = 0
}

// Step extends the hypothesis graph by T frames of emissions, a row-major
// T×N matrix of per-token scores.
func (d *LexiconDecoder) Step(emissions []float32, T, N int) error {
	if T < 0 || N <= 0 {
		return errors.Wrapf(ErrInput, "dimensions T=%d N=%d", T, N)
	}
	if len(emissions) < T*N {
		return errors.Wrapf(ErrInput, "emissions length %d, need %d", len(emissions), T*N)
	}
	if d.nTokens != 0 && d.nTokens != N {
		return errors.Wrapf(ErrInput, "token count changed from %d to %d", d.nTokens, N)
	}
	if d.sil >= N {
		return errors.Wrapf(ErrInput, "silence token %d outside vocabulary of %d", d.sil, N)
	}
	if d.opt.Criterion == CriterionCTC && d.blank >= N {
		return errors.Wrapf(ErrInput, "blank token %d outside vocabulary of %d", d.blank, N)
	}
	if d.opt.Criterion == CriterionASG && len(d.transitions) < N*N {
		return errors.Wrapf(ErrInput, "transition matrix has %d entries, need %d", len(d.transitions), N*N)
	}
	d.nTokens = N
	if d.hyp == nil {
		d.Begin()
	}

	startFrame := d.nDecodedFrames - d.nPrunedFrames
	root := d.trie.Root()

	if cap(d.tokenOrder) < N {
		d.tokenOrder = make([]int, N)
	}
	idx := d.tokenOrder[:N]

	for t := 0; t < T; t++ {
		frame := emissions[t*N : (t+1)*N]

		// Token beam: only the best BeamSizeToken tokens are considered
		// for child and unknown-word expansion. Stable sort keeps the
		// token index as secondary key for determinism.
		for i := range idx {
			idx[i] = i
		}
		if N > d.opt.BeamSizeToken {
			sort.SliceStable(idx, func(i, j int) bool {
				return frame[idx[i]] > frame[idx[j]]
			})
		}
		limit := N
		if d.opt.BeamSizeToken < N {
			limit = d.opt.BeamSizeToken
		}

		d.candidates.reset()
		prevFrame := d.hyp[startFrame+t]
		for h := range prevFrame {
			prevHyp := &prevFrame[h]
			prevLex := prevHyp.lex
			prevTok := prevHyp.token
			lexMaxScore := 0.0
			if prevLex != root {
				lexMaxScore = prevLex.MaxScore
			}

			// (1) Advance within the trie.
			for r := 0; r < limit; r++ {
				n := idx[r]
				child, ok := prevLex.Children[n]
				if !ok {
					continue
				}
				amScore := float64(frame[n])
				if d.nDecodedFrames+t > 0 && d.opt.Criterion == CriterionASG {
					amScore += d.transitions[n*N+prevTok]
				}
				score := prevHyp.score + amScore
				if n == d.sil {
					score += d.opt.SilScore
				}

				var lmState *lm.State
				lmScore := 0.0
				if d.isLMToken {
					lmState, lmScore = d.lm.Score(prevHyp.lmState, n)
				}

				// We eat up a new token. CTC forbids repeating the
				// previous token without a blank in between.
				if d.opt.Criterion != CriterionCTC || prevHyp.prevBlank || n != prevTok {
					if len(child.Children) > 0 {
						extState, extScore := lmState, lmScore
						if !d.isLMToken {
							// Look-ahead bound: best completion through
							// the child, with the bound accumulated so
							// far removed.
							extState = prevHyp.lmState
							extScore = child.MaxScore - lexMaxScore
						}
						d.candidates.add(state{
							score:   score + d.opt.LMWeight*extScore,
							lmState: extState,
							lex:     child,
							parent:  prevHyp,
							token:   n,
							word:    -1,
							amScore: prevHyp.amScore + amScore,
							lmScore: prevHyp.lmScore + extScore,
						}, d.opt.BeamThreshold, d.opt.LogAdd)
					}
				}

				// We got a true word.
				for _, label := range child.Labels {
					if prevLex == root && prevTok == n {
						// A single-token word predicted in consecutive
						// frames must not be emitted twice: CTC requires
						// a blank between two identical tokens.
						continue
					}
					wordState, wordScore := lmState, lmScore
					if !d.isLMToken {
						wordState, wordScore = d.lm.Score(prevHyp.lmState, label)
						wordScore -= lexMaxScore
					}
					total := score + d.opt.LMWeight*wordScore + d.opt.WordScore
					if _, boosted := d.customVocab[label]; boosted && d.opt.CustomWordFactor != 0 {
						if wordLen := child.Depth - 1; wordLen > 0 {
							total += math.Abs(total * d.opt.CustomWordFactor * float64(wordLen) / d.opt.CustomWordLenRef)
						}
					}
					d.candidates.add(state{
						score:   total,
						lmState: wordState,
						lex:     root,
						parent:  prevHyp,
						token:   n,
						word:    label,
						amScore: prevHyp.amScore + amScore,
						lmScore: prevHyp.lmScore + wordScore,
					}, d.opt.BeamThreshold, d.opt.LogAdd)
				}

				// We got an unknown word: only where the child completes
				// no word (no labels), whether or not it has children.
				if len(child.Labels) == 0 && d.opt.UnkScore > math.Inf(-1) {
					unkState, unkScore := lmState, lmScore
					if !d.isLMToken {
						unkState, unkScore = d.lm.Score(prevHyp.lmState, d.unk)
						unkScore -= lexMaxScore
					}
					d.candidates.add(state{
						score:   score + d.opt.LMWeight*unkScore + d.opt.UnkScore,
						lmState: unkState,
						lex:     root,
						parent:  prevHyp,
						token:   n,
						word:    d.unk,
						amScore: prevHyp.amScore + amScore,
						lmScore: prevHyp.lmScore + unkScore,
					}, d.opt.BeamThreshold, d.opt.LogAdd)
				}
			}

			// (2) Stay on the same trie node.
			if d.opt.Criterion != CriterionCTC || !prevHyp.prevBlank || prevLex == root {
				n := prevTok
				if prevLex == root {
					n = d.sil
				}
				amScore := float64(frame[n])
				if d.nDecodedFrames+t > 0 && d.opt.Criterion == CriterionASG {
					amScore += d.transitions[n*N+prevTok]
				}
				score := prevHyp.score + amScore
				if n == d.sil {
					score += d.opt.SilScore
				}
				d.candidates.add(state{
					score:   score,
					lmState: prevHyp.lmState,
					lex:     prevLex,
					parent:  prevHyp,
					token:   n,
					word:    -1,
					amScore: prevHyp.amScore + amScore,
					lmScore: prevHyp.lmScore,
				}, d.opt.BeamThreshold, d.opt.LogAdd)
			}

			// (3) CTC only: emit blank.
			if d.opt.Criterion == CriterionCTC {
				n := d.blank
				amScore := float64(frame[n])
				d.candidates.add(state{
					score:     prevHyp.score + amScore,
					lmState:   prevHyp.lmState,
					lex:       prevLex,
					parent:    prevHyp,
					token:     n,
					word:      -1,
					prevBlank: true,
					amScore:   prevHyp.amScore + amScore,
					lmScore:   prevHyp.lmScore,
				}, d.opt.BeamThreshold, d.opt.LogAdd)
			}
		}

		d.hyp[startFrame+t+1] = d.candidates.store(d.opt.BeamSize, d.opt.BeamThreshold)
		d.updateLMCache(d.hyp[startFrame+t+1])
	}

	d.nDecodedFrames += T
	return nil
}

// End closes open hypotheses with the language model's sentence-end score.
// Hypotheses stopping mid-word are dropped when at least one hypothesis
// ends at a word boundary.
func (d *LexiconDecoder) End() {
	d.candidates.reset()
	final := d.nDecodedFrames - d.nPrunedFrames
	frame := d.hyp[final]
	root := d.trie.Root()

	hasNiceEnding := false
	for i := range frame {
		if frame[i].lex == root {
			hasNiceEnding = true
			break
		}
	}

	for i := range frame {
		prevHyp := &frame[i]
		if hasNiceEnding && prevHyp.lex != root {
			continue
		}
		lmState, lmScore := d.lm.Finish(prevHyp.lmState)
		d.candidates.add(state{
			score:   prevHyp.score + d.opt.LMWeight*lmScore,
			lmState: lmState,
			lex:     prevHyp.lex,
			parent:  prevHyp,
			token:   d.sil,
			word:    -1,
			amScore: prevHyp.amScore,
			lmScore: prevHyp.lmScore + lmScore,
		}, d.opt.BeamThreshold, d.opt.LogAdd)
	}

	d.hyp[final+1] = d.candidates.store(d.opt.BeamSize, d.opt.BeamThreshold)
	d.nDecodedFrames++
}

// Decode runs the full lifecycle over one emission matrix and returns all
// final hypotheses, best first.
func (d *LexiconDecoder) Decode(emissions []float32, T, N int) ([]DecodeResult, error) {
	d.Begin()
	if err := d.Step(emissions, T, N); err != nil {
		return nil, err
	}
	d.End()
	return d.AllFinalHypotheses(), nil
}

// NHypothesis returns the number of live hypotheses at the final frame.
func (d *LexiconDecoder) NHypothesis() int {
	return len(d.hyp[d.nDecodedFrames-d.nPrunedFrames])
}

// NDecodedFramesInBuffer returns the number of frames currently retained,
// including the seed frame.
func (d *LexiconDecoder) NDecodedFramesInBuffer() int {
	return d.nDecodedFrames - d.nPrunedFrames + 1
}

// BestHypothesis backtracks the best ancestor lookBack frames before the
// final frame. An empty beam yields an empty result.
func (d *LexiconDecoder) BestHypothesis(lookBack int) DecodeResult {
	final := d.nDecodedFrames - d.nPrunedFrames
	if final-lookBack < 1 {
		return DecodeResult{}
	}
	best := findBestAncestor(d.hyp[final], lookBack)
	return getHypothesis(best, final-lookBack)
}

// AllFinalHypotheses backtracks every live hypothesis at the final frame,
// sorted by descending score.
func (d *LexiconDecoder) AllFinalHypotheses() []DecodeResult {
	final := d.nDecodedFrames - d.nPrunedFrames
	if final < 1 {
		return nil
	}
	return allHypotheses(d.hyp[final], final)
}

// Prune commits the best path up to lookBack frames before the final frame,
// discards the frames before it and rebases the surviving scores so they
// represent the suffix. Subsequent decoding is unaffected: results equal
// the committed prefix followed by what an unpruned decoder would produce.
func (d *LexiconDecoder) Prune(lookBack int) {
	final := d.nDecodedFrames - d.nPrunedFrames
	if final-lookBack < 1 {
		return
	}
	best := findBestAncestor(d.hyp[final], lookBack)
	if best == nil {
		return
	}
	startFrame := final - lookBack
	if startFrame < 1 {
		return
	}

	// Shift retained frames to the origin.
	for i := 0; i <= lookBack; i++ {
		d.hyp[i] = d.hyp[startFrame+i]
	}
	for i := lookBack + 1; i <= startFrame+lookBack; i++ {
		delete(d.hyp, i)
	}

	// Detach the committed prefix and rebase scores against it.
	frame0 := d.hyp[0]
	for i := range frame0 {
		frame0[i].parent = nil
	}
	baseScore, baseAM, baseLM := best.score, best.amScore, best.lmScore
	for i := 0; i <= lookBack; i++ {
		fr := d.hyp[i]
		for j := range fr {
			fr[j].score -= baseScore
			fr[j].amScore -= baseAM
			fr[j].lmScore -= baseLM
		}
	}

	d.nPrunedFrames = d.nDecodedFrames - lookBack
}

func (d *LexiconDecoder) updateLMCache(frame []state) {
	d.liveStates = d.liveStates[:0]
	for i := range frame {
		d.liveStates = append(d.liveStates, frame[i].lmState)
	}
	d.lm.CleanUp(d.liveStates)
}
