package lm

import (
	"strings"

	"github.com/FabricioMatos/flashlight-text-go/internal/mathutil"
	"github.com/FabricioMatos/flashlight-text-go/lexicon"
)

const (
	sentenceBegin = "<s>"
	sentenceEnd   = "</s>"
	unknownWord   = "<unk>"
)

// Model is a backoff n-gram language model.
type Model struct {
	Order      int // 2 for bigram, 3 for trigram
	Unigrams   map[string]ngramEntry
	Bigrams    map[[2]string]ngramEntry
	Trigrams   map[[3]string]ngramEntry
	OOVLogProb float64 // natural-log probability for out-of-vocabulary words
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NewModel creates an empty n-gram model.
func NewModel(order int) *Model {
	return &Model{
		Order:      order,
		Unigrams:   make(map[string]ngramEntry),
		Bigrams:    make(map[[2]string]ngramEntry),
		Trigrams:   make(map[[3]string]ngramEntry),
		OOVLogProb: mathutil.LogZero,
	}
}

// LogProb returns the log probability of a word given its history.
// Uses backoff when the exact n-gram is not found.
func (m *Model) LogProb(history []string, word string) float64 {
	if m.Order >= 3 && len(history) >= 2 {
		key := [3]string{history[len(history)-2], history[len(history)-1], word}
		if e, ok := m.Trigrams[key]; ok {
			return e.LogProb
		}
		// Backoff to bigram
		biKey := [2]string{history[len(history)-2], history[len(history)-1]}
		if e, ok := m.Bigrams[biKey]; ok {
			return e.LogBackoff + m.logProbBigram(history[len(history)-1], word)
		}
	}

	if m.Order >= 2 && len(history) >= 1 {
		return m.logProbBigram(history[len(history)-1], word)
	}

	return m.logProbUnigram(word)
}

func (m *Model) logProbBigram(prev, word string) float64 {
	key := [2]string{prev, word}
	if e, ok := m.Bigrams[key]; ok {
		return e.LogProb
	}
	// Backoff to unigram
	if e, ok := m.Unigrams[prev]; ok {
		return e.LogBackoff + m.logProbUnigram(word)
	}
	return m.logProbUnigram(word)
}

func (m *Model) logProbUnigram(word string) float64 {
	if e, ok := m.Unigrams[word]; ok {
		return e.LogProb
	}
	return m.OOVLogProb
}

// defaultStateCacheLimit bounds the interned-state table before CleanUp
// starts evicting.
const defaultStateCacheLimit = 10000

// NGramLM adapts a Model to the decoder's incremental interface. States are
// interned by truncated history, so equal contexts share one handle and the
// decoder can merge hypotheses by pointer.
type NGramLM struct {
	model *Model
	words *lexicon.Dictionary // decoder word id -> LM vocabulary entry

	states map[string]*State

	// CacheLimit bounds the interned-state table; CleanUp evicts dead
	// states once it is exceeded.
	CacheLimit int
}

// NewNGramLM wraps an n-gram model for decoding. The dictionary maps the
// decoder's word indices to the model's vocabulary strings.
func NewNGramLM(model *Model, words *lexicon.Dictionary) *NGramLM {
	return &NGramLM{
		model:      model,
		words:      words,
		states:     make(map[string]*State),
		CacheLimit: defaultStateCacheLimit,
	}
}

// Start returns the sentence-begin state, or an empty-context state when
// startWithNothing is true.
func (g *NGramLM) Start(startWithNothing bool) *State {
	if startWithNothing {
		return g.intern(nil)
	}
	return g.intern([]string{sentenceBegin})
}

// Score returns the interned successor state and the backoff log-probability
// of the word at index given the state's history.
func (g *NGramLM) Score(state *State, index int) (*State, float64) {
	word := g.words.Entry(index)
	if word == "" {
		word = unknownWord
	}
	ctx := stateContext(state)
	delta := g.model.LogProb(ctx, word)
	return g.intern(g.shift(ctx, word)), delta
}

// Finish scores the sentence-end symbol.
func (g *NGramLM) Finish(state *State) (*State, float64) {
	ctx := stateContext(state)
	delta := g.model.LogProb(ctx, sentenceEnd)
	return g.intern(g.shift(ctx, sentenceEnd)), delta
}

// CleanUp drops interned states that are no longer referenced by the beam
// once the table exceeds CacheLimit.
func (g *NGramLM) CleanUp(live []*State) {
	if len(g.states) <= g.CacheLimit {
		return
	}
	kept := make(map[string]*State, len(live))
	for _, s := range live {
		kept[contextKey(stateContext(s))] = s
	}
	g.states = kept
}

// shift appends word to the history and truncates it to the model's context
// length (order-1).
func (g *NGramLM) shift(ctx []string, word string) []string {
	next := make([]string, 0, len(ctx)+1)
	next = append(next, ctx...)
	next = append(next, word)
	if max := g.model.Order - 1; max >= 0 && len(next) > max {
		next = next[len(next)-max:]
	}
	return next
}

func (g *NGramLM) intern(ctx []string) *State {
	key := contextKey(ctx)
	if s, ok := g.states[key]; ok {
		return s
	}
	s := &State{payload: ctx}
	g.states[key] = s
	return s
}

func stateContext(s *State) []string {
	ctx, _ := s.payload.([]string)
	return ctx
}

func contextKey(ctx []string) string {
	return strings.Join(ctx, "\x1f")
}
