package lm

// ZeroLM assigns zero log-probability to every continuation. It stands in
// where no language model is wanted; states are still distinguished by their
// index path so hypothesis merging stays conservative.
type ZeroLM struct {
	root *State
}

// NewZeroLM creates a zero-scoring language model.
func NewZeroLM() *ZeroLM {
	return &ZeroLM{root: &State{}}
}

// Start returns the root state.
func (z *ZeroLM) Start(startWithNothing bool) *State {
	return z.root
}

// Score advances to the per-index child state with zero delta.
func (z *ZeroLM) Score(state *State, index int) (*State, float64) {
	return state.Child(index), 0
}

// Finish advances to a terminal child state with zero delta.
func (z *ZeroLM) Finish(state *State) (*State, float64) {
	return state.Child(-1), 0
}

// CleanUp is a no-op.
func (z *ZeroLM) CleanUp(live []*State) {}
