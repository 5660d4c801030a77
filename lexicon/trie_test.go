package lexicon

import (
	"math"
	"testing"

	"github.com/FabricioMatos/flashlight-text-go/internal/mathutil"
)

func TestTrieInsertSearch(t *testing.T) {
	trie := NewTrie()

	if _, err := trie.Insert([]int{0, 1}, 7, -0.5); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := trie.Insert([]int{0}, 3, -1.0); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if trie.Root().Depth != 0 {
		t.Errorf("root depth = %d, want 0", trie.Root().Depth)
	}

	node := trie.Search([]int{0, 1})
	if node == nil {
		t.Fatal("Search([0 1]) = nil")
	}
	if node.Depth != 2 {
		t.Errorf("node depth = %d, want 2", node.Depth)
	}
	if len(node.Labels) != 1 || node.Labels[0] != 7 {
		t.Errorf("labels = %v, want [7]", node.Labels)
	}

	mid := trie.Search([]int{0})
	if mid == nil {
		t.Fatal("Search([0]) = nil")
	}
	if len(mid.Labels) != 1 || mid.Labels[0] != 3 {
		t.Errorf("mid labels = %v, want [3]", mid.Labels)
	}
	if len(mid.Children) != 1 {
		t.Errorf("mid children = %d, want 1", len(mid.Children))
	}

	if trie.Search([]int{2}) != nil {
		t.Error("Search([2]) should be nil")
	}
}

func TestTrieInsertInvalid(t *testing.T) {
	trie := NewTrie()
	if _, err := trie.Insert(nil, 0, 0); err == nil {
		t.Error("expected error for empty spelling")
	}
	if _, err := trie.Insert([]int{-1}, 0, 0); err == nil {
		t.Error("expected error for negative token index")
	}
}

func TestTrieMultipleLabels(t *testing.T) {
	// Two words sharing one spelling (homophones).
	trie := NewTrie()
	trie.Insert([]int{1, 2}, 0, -0.2)
	trie.Insert([]int{1, 2}, 1, -0.8)

	node := trie.Search([]int{1, 2})
	if len(node.Labels) != 2 {
		t.Fatalf("labels = %v, want two entries", node.Labels)
	}
	if node.Labels[0] != 0 || node.Labels[1] != 1 {
		t.Errorf("labels = %v, want [0 1]", node.Labels)
	}
}

func TestTrieSmearMax(t *testing.T) {
	trie := NewTrie()
	trie.Insert([]int{0, 1}, 0, -0.5)
	trie.Insert([]int{0, 2}, 1, -2.0)
	trie.Insert([]int{3}, 2, -1.0)
	trie.Smear(SmearingMax)

	// Interior node sees the best completion below it.
	if got := trie.Search([]int{0}).MaxScore; got != -0.5 {
		t.Errorf("MaxScore([0]) = %f, want -0.5", got)
	}
	if got := trie.Search([]int{0, 2}).MaxScore; got != -2.0 {
		t.Errorf("MaxScore([0 2]) = %f, want -2.0", got)
	}
	if got := trie.Root().MaxScore; got != -0.5 {
		t.Errorf("root MaxScore = %f, want -0.5", got)
	}
}

func TestTrieSmearLogAdd(t *testing.T) {
	trie := NewTrie()
	trie.Insert([]int{0, 1}, 0, -0.5)
	trie.Insert([]int{0, 2}, 1, -2.0)
	trie.Smear(SmearingLogAdd)

	want := mathutil.LogAdd(-0.5, -2.0)
	if got := trie.Search([]int{0}).MaxScore; math.Abs(got-want) > 1e-10 {
		t.Errorf("MaxScore([0]) = %f, want %f", got, want)
	}
}

func TestTrieSmearNone(t *testing.T) {
	trie := NewTrie()
	trie.Insert([]int{0}, 0, -0.5)
	trie.Smear(SmearingNone)
	if got := trie.Search([]int{0}).MaxScore; got != mathutil.LogZero {
		t.Errorf("MaxScore = %f, want LogZero", got)
	}
}
