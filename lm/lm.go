// Package lm defines the incremental language model interface consumed by
// the beam search decoder, plus two implementations: a trivial zero scorer
// and a backoff n-gram model loaded from ARPA files.
package lm

// State is an opaque handle to language model conditioning context. The
// decoder merges hypotheses by comparing handles, so an implementation must
// return the identical *State for contexts that guarantee identical future
// scores.
type State struct {
	children map[int]*State
	payload  any
}

// Child returns the successor handle for idx, creating it on first use.
func (s *State) Child(idx int) *State {
	if s.children == nil {
		s.children = make(map[int]*State)
	}
	child, ok := s.children[idx]
	if !ok {
		child = &State{}
		s.children[idx] = child
	}
	return child
}

// LM scores token or word indices incrementally. Implementations are owned
// by a single decoder instance; callers wanting shared caches must provide
// their own synchronization.
type LM interface {
	// Start returns the state at utterance start. When startWithNothing is
	// true the state carries no sentence-begin context.
	Start(startWithNothing bool) *State

	// Score returns the successor state and the log-probability delta of
	// index given state.
	Score(state *State, index int) (*State, float64)

	// Finish closes the sentence and returns the end-of-sentence delta.
	Finish(state *State) (*State, float64)

	// CleanUp lets the model evict cached states not in the live set. The
	// decoder calls it after each frame with the states still referenced by
	// the beam.
	CleanUp(live []*State)
}
