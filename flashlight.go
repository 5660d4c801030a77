// Package flashlight wires a pronunciation lexicon, a language model and
// the beam search decoder into a ready-to-use decoding engine.
package flashlight

import (
	"github.com/pkg/errors"

	"github.com/FabricioMatos/flashlight-text-go/decoder"
	"github.com/FabricioMatos/flashlight-text-go/lexicon"
	"github.com/FabricioMatos/flashlight-text-go/lm"
)

// Engine holds the shared, read-only decoding resources: dictionaries, the
// smeared trie and the n-gram model. Decoders created from it are
// independent and may run in parallel; each owns its LM adapter instance.
type Engine struct {
	Tokens *lexicon.Dictionary
	Words  *lexicon.Dictionary
	Trie   *lexicon.Trie

	model       *lm.Model
	opts        decoder.Options
	silToken    string
	blankToken  string
	unkWord     string
	useZeroLM   bool
	transitions []float64
	customVocab []string
	isLMToken   bool

	sil   int
	blank int
	unk   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecoderOptions sets custom beam search parameters.
func WithDecoderOptions(opts decoder.Options) Option {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithSpecialTokens overrides the silence and blank token spellings
// (defaults "|" and "#").
func WithSpecialTokens(sil, blank string) Option {
	return func(e *Engine) {
		e.silToken = sil
		e.blankToken = blank
	}
}

// WithUnkWord overrides the unknown-word label (default "<unk>").
func WithUnkWord(unk string) Option {
	return func(e *Engine) {
		e.unkWord = unk
	}
}

// WithZeroLM replaces the n-gram model with a zero scorer; the LM path is
// ignored.
func WithZeroLM() Option {
	return func(e *Engine) {
		e.useZeroLM = true
	}
}

// WithTransitions installs the ASG token-to-token transition matrix,
// indexed [to*N+from].
func WithTransitions(transitions []float64) Option {
	return func(e *Engine) {
		e.transitions = transitions
	}
}

// WithCustomVocabulary boosts the given words during decoding; the boost
// strength comes from the decoder options.
func WithCustomVocabulary(words []string) Option {
	return func(e *Engine) {
		e.customVocab = words
	}
}

// WithTokenLM scores the language model on every token instead of only at
// word boundaries.
func WithTokenLM() Option {
	return func(e *Engine) {
		e.isLMToken = true
	}
}

// NewEngine loads the token inventory, the pronunciation lexicon and the
// ARPA language model, builds the smeared trie with per-word unigram scores
// and prepares decoder construction.
func NewEngine(tokensPath, lexiconPath, lmPath string, options ...Option) (*Engine, error) {
	e := &Engine{
		opts:       decoder.DefaultOptions(),
		silToken:   "|",
		blankToken: "#",
		unkWord:    "<unk>",
	}
	for _, opt := range options {
		opt(e)
	}

	tokens, err := lexicon.LoadDictionaryFile(tokensPath)
	if err != nil {
		return nil, err
	}
	lex, err := lexicon.LoadFile(lexiconPath)
	if err != nil {
		return nil, err
	}

	var model *lm.Model
	if !e.useZeroLM {
		model, err = lm.LoadARPAFile(lmPath)
		if err != nil {
			return nil, err
		}
	}

	if err := e.build(tokens, lex, model); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineFromModels builds an Engine from pre-loaded resources. model may
// be nil to use a zero LM.
func NewEngineFromModels(tokens *lexicon.Dictionary, lex *lexicon.Lexicon, model *lm.Model, options ...Option) (*Engine, error) {
	e := &Engine{
		opts:       decoder.DefaultOptions(),
		silToken:   "|",
		blankToken: "#",
		unkWord:    "<unk>",
	}
	for _, opt := range options {
		opt(e)
	}
	if model == nil {
		e.useZeroLM = true
	}
	if err := e.build(tokens, lex, model); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(tokens *lexicon.Dictionary, lex *lexicon.Lexicon, model *lm.Model) error {
	e.Tokens = tokens

	sil, ok := tokens.Index(e.silToken)
	if !ok {
		return errors.Errorf("flashlight: silence token %q not in token inventory", e.silToken)
	}
	e.sil = sil
	e.blank = -1
	if e.opts.Criterion == decoder.CriterionCTC {
		blank, ok := tokens.Index(e.blankToken)
		if !ok {
			return errors.Errorf("flashlight: blank token %q not in token inventory", e.blankToken)
		}
		e.blank = blank
	}

	// Word dictionary in lexicon order; the unknown label comes last so it
	// never shadows a real word.
	e.Words = lexicon.NewDictionary()
	for _, w := range lex.Words {
		e.Words.Add(w)
	}
	e.unk = e.Words.Add(e.unkWord)
	e.model = model

	// The trie carries each word's unigram LM score so smearing yields the
	// look-ahead bound used during within-word extension.
	e.Trie = lexicon.NewTrie()
	for _, word := range lex.Words {
		label, _ := e.Words.Index(word)
		unigram := 0.0
		if model != nil {
			unigram = model.LogProb(nil, word)
		}
		for _, entry := range lex.Lookup(word) {
			indices := make([]int, len(entry.Tokens))
			for i, tok := range entry.Tokens {
				idx, ok := tokens.Index(tok)
				if !ok {
					return errors.Errorf("flashlight: token %q of word %q not in token inventory", tok, word)
				}
				indices[i] = idx
			}
			if _, err := e.Trie.Insert(indices, label, unigram); err != nil {
				return errors.Wrapf(err, "flashlight: insert %q", word)
			}
		}
	}
	e.Trie.Smear(lexicon.SmearingMax)
	return nil
}

// NewDecoder creates an independent decoder over the engine's resources
// with its own language model adapter. Each call returns a fresh instance;
// instances must not be shared across goroutines.
func (e *Engine) NewDecoder() (*decoder.LexiconDecoder, error) {
	var model lm.LM
	if e.model != nil {
		model = lm.NewNGramLM(e.model, e.Words)
	} else {
		model = lm.NewZeroLM()
	}
	dec, err := decoder.NewLexiconDecoder(e.opts, e.Trie, model, e.sil, e.blank, e.unk, e.transitions, e.isLMToken)
	if err != nil {
		return nil, err
	}
	if len(e.customVocab) > 0 {
		ids := make([]int, 0, len(e.customVocab))
		for _, w := range e.customVocab {
			if idx, ok := e.Words.Index(w); ok {
				ids = append(ids, idx)
			}
		}
		dec.SetCustomVocabulary(ids)
	}
	return dec, nil
}

// Decode runs the full lifecycle over one emission matrix with a fresh
// decoder and returns all final hypotheses, best first.
func (e *Engine) Decode(emissions []float32, T, N int) ([]decoder.DecodeResult, error) {
	dec, err := e.NewDecoder()
	if err != nil {
		return nil, err
	}
	return dec.Decode(emissions, T, N)
}

// Transcript maps a hypothesis' word labels back to strings.
func (e *Engine) Transcript(r decoder.DecodeResult) []string {
	ids := r.WordIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = e.Words.Entry(id)
	}
	return out
}
