package lm

import (
	"math"
	"strings"
	"testing"

	"github.com/FabricioMatos/flashlight-text-go/lexicon"
)

const testARPA = `\data\
ngram 1=5
ngram 2=4

\1-grams:
-1.0	</s>
-1.0	<s>	0.0
-0.5	hello	-0.2
-0.7	world	0.0
-2.0	<unk>

\2-grams:
-0.3	<s>	hello
-0.4	hello	world
-0.9	world	</s>
-0.6	<s>	world

\end\
`

func loadTestModel(t *testing.T) *Model {
	t.Helper()
	model, err := LoadARPA(strings.NewReader(testARPA))
	if err != nil {
		t.Fatalf("LoadARPA: %v", err)
	}
	return model
}

func TestLoadARPA(t *testing.T) {
	model := loadTestModel(t)
	if model.Order != 2 {
		t.Errorf("Order = %d, want 2", model.Order)
	}
	if len(model.Unigrams) != 5 {
		t.Errorf("unigrams = %d, want 5", len(model.Unigrams))
	}
	if len(model.Bigrams) != 4 {
		t.Errorf("bigrams = %d, want 4", len(model.Bigrams))
	}

	// -0.5 log10 converted to natural log.
	want := -0.5 * math.Ln10
	if got := model.LogProb(nil, "hello"); math.Abs(got-want) > 1e-10 {
		t.Errorf("LogProb(hello) = %f, want %f", got, want)
	}
}

func TestModelBackoff(t *testing.T) {
	model := loadTestModel(t)

	// Exact bigram.
	want := -0.4 * math.Ln10
	if got := model.LogProb([]string{"hello"}, "world"); math.Abs(got-want) > 1e-10 {
		t.Errorf("LogProb(world|hello) = %f, want %f", got, want)
	}

	// Missing bigram backs off: backoff(hello) + unigram(hello).
	want = -0.2*math.Ln10 + -0.5*math.Ln10
	if got := model.LogProb([]string{"hello"}, "hello"); math.Abs(got-want) > 1e-10 {
		t.Errorf("LogProb(hello|hello) = %f, want %f", got, want)
	}
}

func TestModelOOV(t *testing.T) {
	model := loadTestModel(t)
	model.OOVLogProb = -20.0
	if got := model.LogProb(nil, "zzz"); got != -20.0 {
		t.Errorf("OOV LogProb = %f, want -20", got)
	}
}

func wordDict(entries ...string) *lexicon.Dictionary {
	d := lexicon.NewDictionary()
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

func TestNGramLMScore(t *testing.T) {
	model := loadTestModel(t)
	words := wordDict("hello", "world")
	g := NewNGramLM(model, words)

	start := g.Start(false)
	s1, delta := g.Score(start, 0) // hello after <s>
	want := -0.3 * math.Ln10
	if math.Abs(delta-want) > 1e-10 {
		t.Errorf("Score(hello|<s>) = %f, want %f", delta, want)
	}

	s2, delta := g.Score(s1, 1) // world after hello
	want = -0.4 * math.Ln10
	if math.Abs(delta-want) > 1e-10 {
		t.Errorf("Score(world|hello) = %f, want %f", delta, want)
	}

	_, delta = g.Finish(s2)
	want = -0.9 * math.Ln10
	if math.Abs(delta-want) > 1e-10 {
		t.Errorf("Finish after world = %f, want %f", delta, want)
	}
}

func TestNGramLMStateIdentity(t *testing.T) {
	model := loadTestModel(t)
	words := wordDict("hello", "world")
	g := NewNGramLM(model, words)

	// Two different paths ending in the same truncated context must share
	// one handle (the decoder merges hypotheses by pointer).
	a := g.Start(false)
	b := g.Start(true)
	sa, _ := g.Score(a, 1) // context [world]
	sb, _ := g.Score(b, 1) // context [world]
	if sa != sb {
		t.Error("equal contexts returned distinct state handles")
	}

	// Scoring the same word twice from one state is stable.
	again, _ := g.Score(a, 1)
	if again != sa {
		t.Error("re-scoring returned a distinct state handle")
	}
}

func TestNGramLMCleanUp(t *testing.T) {
	model := loadTestModel(t)
	words := wordDict("hello", "world")
	g := NewNGramLM(model, words)
	g.CacheLimit = 1

	start := g.Start(false)
	s1, _ := g.Score(start, 0)
	s2, _ := g.Score(s1, 1)

	g.CleanUp([]*State{s2})
	if len(g.states) != 1 {
		t.Fatalf("states after CleanUp = %d, want 1", len(g.states))
	}

	// The surviving handle keeps its identity.
	again, _ := g.Score(s1, 1)
	if again != s2 {
		t.Error("live state lost its identity across CleanUp")
	}
}

func TestZeroLM(t *testing.T) {
	z := NewZeroLM()
	start := z.Start(false)

	s1, delta := z.Score(start, 3)
	if delta != 0 {
		t.Errorf("Score delta = %f, want 0", delta)
	}
	s2, _ := z.Score(start, 3)
	if s1 != s2 {
		t.Error("same index produced distinct states")
	}
	s3, _ := z.Score(start, 4)
	if s3 == s1 {
		t.Error("different indices share a state")
	}
	if _, delta := z.Finish(s1); delta != 0 {
		t.Errorf("Finish delta = %f, want 0", delta)
	}
}
