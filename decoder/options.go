// Package decoder implements lexicon-constrained beam search over per-frame
// acoustic emission scores. Each frame, live hypotheses are expanded along
// the pronunciation trie, scored against an incremental language model, and
// pruned to a fixed beam; word sequences are recovered by backtracking the
// hypothesis graph.
package decoder

import (
	"math"

	"github.com/pkg/errors"
)

// Error kinds reported by the decoder. Wrap causes are inspected with
// errors.Is.
var (
	// ErrConfiguration marks invalid construction parameters.
	ErrConfiguration = errors.New("decoder: invalid configuration")
	// ErrInput marks malformed emission input passed to Step.
	ErrInput = errors.New("decoder: invalid input")
)

// CriterionType selects the emission criterion the acoustic model was
// trained with, which determines the blank rule and transition use.
type CriterionType int

const (
	// CriterionCTC uses a blank symbol; repeating a token requires an
	// intervening blank.
	CriterionCTC CriterionType = iota
	// CriterionASG uses a token-to-token transition matrix and no blank.
	CriterionASG
)

func (c CriterionType) String() string {
	switch c {
	case CriterionCTC:
		return "ctc"
	case CriterionASG:
		return "asg"
	}
	return "unknown"
}

// Options holds beam search parameters.
type Options struct {
	BeamSize      int     // max hypotheses retained per frame
	BeamSizeToken int     // max tokens considered per expansion
	BeamThreshold float64 // candidates below best-threshold are dropped
	LMWeight      float64 // scaling of LM log-probabilities
	WordScore     float64 // bonus added on word emission
	UnkScore      float64 // bonus for unknown-word emission; -Inf disables
	SilScore      float64 // bonus for the silence token
	LogAdd        bool    // merge hypotheses via log-sum-exp instead of max
	Criterion     CriterionType

	// CustomWordFactor scales the score boost applied to words from the
	// custom vocabulary; 0 disables the boost.
	CustomWordFactor float64

	// CustomWordLenRef calibrates the boost against word length: the
	// increment is |total * CustomWordFactor * wordLen / CustomWordLenRef|.
	// The historical value 15 was computed from the longest word of the
	// vocabulary the boost was tuned on. Note the absolute value is taken
	// of a log-domain (typically negative) total, so worse base scores
	// receive larger increments; kept for compatibility with existing
	// tunings.
	CustomWordLenRef float64
}

// DefaultOptions returns reasonable default parameters.
func DefaultOptions() Options {
	return Options{
		BeamSize:         500,
		BeamSizeToken:    50,
		BeamThreshold:    25.0,
		LMWeight:         1.0,
		UnkScore:         math.Inf(-1),
		Criterion:        CriterionCTC,
		CustomWordLenRef: 15.0,
	}
}

// Validate checks the options for construction-time errors.
func (o Options) Validate() error {
	if o.BeamSize <= 0 {
		return errors.Wrapf(ErrConfiguration, "beam size %d", o.BeamSize)
	}
	if o.BeamSizeToken <= 0 {
		return errors.Wrapf(ErrConfiguration, "token beam size %d", o.BeamSizeToken)
	}
	if o.BeamThreshold < 0 {
		return errors.Wrapf(ErrConfiguration, "beam threshold %f", o.BeamThreshold)
	}
	if o.Criterion != CriterionCTC && o.Criterion != CriterionASG {
		return errors.Wrapf(ErrConfiguration, "criterion %d", o.Criterion)
	}
	if o.CustomWordFactor != 0 && o.CustomWordLenRef <= 0 {
		return errors.Wrapf(ErrConfiguration, "custom word length reference %f", o.CustomWordLenRef)
	}
	return nil
}
