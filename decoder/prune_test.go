package decoder

import (
	"math"
	"reflect"
	"testing"

	"github.com/FabricioMatos/flashlight-text-go/lm"
)

// pruneFixture returns 20 frames spelling "ab" five times: a blank b blank.
func pruneFixture() []float32 {
	var rows [][]float32
	for i := 0; i < 5; i++ {
		rows = append(rows, row(3, 0), row(3, 2), row(3, 1), row(3, 2))
	}
	return emit(rows...)
}

func newPruneDecoder(t *testing.T) *LexiconDecoder {
	t.Helper()
	trie := buildTrie(t, [][]int{{0, 1}})
	dec, err := NewLexiconDecoder(ctcOptions(4), trie, lm.NewZeroLM(), 2, 2, 1, nil, false)
	if err != nil {
		t.Fatalf("NewLexiconDecoder: %v", err)
	}
	return dec
}

// Decoding with a mid-stream Prune must produce the committed prefix
// followed by exactly what the unpruned decoder produces.
func TestPruneRoundTrip(t *testing.T) {
	emissions := pruneFixture()

	full := newPruneDecoder(t)
	full.Begin()
	if err := full.Step(emissions, 20, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	full.End()
	want := full.BestHypothesis(0)

	dec := newPruneDecoder(t)
	dec.Begin()
	if err := dec.Step(emissions[:10*3], 10, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	prefix := dec.BestHypothesis(5)
	dec.Prune(5)
	if got := dec.NDecodedFramesInBuffer(); got != 6 {
		t.Fatalf("frames in buffer after prune = %d, want 6", got)
	}
	if err := dec.Step(emissions[10*3:], 10, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	dec.End()
	suffix := dec.BestHypothesis(0)

	// The prefix's last frame is the suffix's frame 0.
	if prefix.Words[5] != suffix.Words[0] || prefix.Tokens[5] != suffix.Tokens[0] {
		t.Fatalf("prefix/suffix seam mismatch: %d/%d vs %d/%d",
			prefix.Words[5], prefix.Tokens[5], suffix.Words[0], suffix.Tokens[0])
	}

	gotWords := append(append([]int{}, prefix.Words[:5]...), suffix.Words...)
	gotTokens := append(append([]int{}, prefix.Tokens[:5]...), suffix.Tokens...)
	if !reflect.DeepEqual(gotWords, want.Words) {
		t.Errorf("words = %v, want %v", gotWords, want.Words)
	}
	if !reflect.DeepEqual(gotTokens, want.Tokens) {
		t.Errorf("tokens = %v, want %v", gotTokens, want.Tokens)
	}

	// Suffix scores are rebased against the committed prefix.
	if math.Abs(prefix.Score+suffix.Score-want.Score) > 1e-9 {
		t.Errorf("prefix %f + suffix %f != full %f", prefix.Score, suffix.Score, want.Score)
	}
}

func TestPruneNoOpWhenLookBackCoversBuffer(t *testing.T) {
	dec := newPruneDecoder(t)
	dec.Begin()
	if err := dec.Step(pruneFixture()[:8*3], 8, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}

	before := dec.NDecodedFramesInBuffer()
	dec.Prune(8)
	if got := dec.NDecodedFramesInBuffer(); got != before {
		t.Errorf("Prune(decoded) changed buffer: %d -> %d", before, got)
	}
	dec.Prune(50)
	if got := dec.NDecodedFramesInBuffer(); got != before {
		t.Errorf("Prune(large) changed buffer: %d -> %d", before, got)
	}
}

func TestPruneAlmostAll(t *testing.T) {
	// Pruning everything but the buffer keeps the word sequence intact:
	// the discarded prefix is the wordless seed frame.
	emissions := pruneFixture()[:8*3]

	full := newPruneDecoder(t)
	full.Begin()
	if err := full.Step(emissions, 8, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	full.End()
	fullBest := full.BestHypothesis(0)
	want := fullBest.WordIDs()

	dec := newPruneDecoder(t)
	dec.Begin()
	if err := dec.Step(emissions, 8, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	dec.Prune(7)
	dec.End()
	decBest := dec.BestHypothesis(0)
	if got := decBest.WordIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("words after Prune(7) = %v, want %v", got, want)
	}
}

func TestPruneRebasesScores(t *testing.T) {
	dec := newPruneDecoder(t)
	dec.Begin()
	if err := dec.Step(pruneFixture()[:10*3], 10, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}

	dec.Prune(5)
	frame0 := dec.hyp[0]
	if len(frame0) == 0 {
		t.Fatal("empty frame 0 after prune")
	}
	best := math.Inf(-1)
	for i := range frame0 {
		if frame0[i].parent != nil {
			t.Error("frame 0 state still holds a parent after prune")
		}
		if frame0[i].score > best {
			best = frame0[i].score
		}
	}
	// The committed ancestor's score was subtracted, so the best path
	// through frame 0 now starts at zero.
	if math.Abs(best) > 1e-9 {
		t.Errorf("best frame-0 score after rebase = %f, want 0", best)
	}
}
