package lexicon

import (
	"github.com/FabricioMatos/flashlight-text-go/internal/mathutil"
	"github.com/pkg/errors"
)

// SmearingMode selects how per-node MaxScore is precomputed by Smear.
type SmearingMode int

const (
	// SmearingNone leaves MaxScore at LogZero everywhere.
	SmearingNone SmearingMode = iota
	// SmearingMax propagates the best completion score through each node.
	SmearingMax
	// SmearingLogAdd combines completion scores via log-sum-exp.
	SmearingLogAdd
)

// TrieNode is one position in the pronunciation prefix tree. A node with a
// non-empty Labels slice marks the end of at least one word spelling.
type TrieNode struct {
	Children map[int]*TrieNode // token index -> child
	Labels   []int             // word ids completed at this node
	Scores   []float64         // per-label insertion scores, parallel to Labels
	Depth    int               // 0 at the root
	MaxScore float64           // best completion score through this node, set by Smear
}

func newTrieNode(depth int) *TrieNode {
	return &TrieNode{
		Children: make(map[int]*TrieNode),
		Depth:    depth,
		MaxScore: mathutil.LogZero,
	}
}

// Trie is a prefix tree over token spellings of words. It is read-only after
// construction and may be shared across decoder instances.
type Trie struct {
	root *TrieNode
}

// NewTrie creates a trie with an empty root node.
func NewTrie() *Trie {
	return &Trie{root: newTrieNode(0)}
}

// Root returns the root node.
func (t *Trie) Root() *TrieNode {
	return t.root
}

// Insert adds the spelling given by token indices, marking its final node
// with the word label and insertion score (typically the word's unigram LM
// score, consumed later by Smear).
func (t *Trie) Insert(indices []int, label int, score float64) (*TrieNode, error) {
	if len(indices) == 0 {
		return nil, errors.New("lexicon: cannot insert an empty spelling")
	}
	node := t.root
	for _, idx := range indices {
		if idx < 0 {
			return nil, errors.Errorf("lexicon: invalid token index %d", idx)
		}
		child, ok := node.Children[idx]
		if !ok {
			child = newTrieNode(node.Depth + 1)
			node.Children[idx] = child
		}
		node = child
	}
	node.Labels = append(node.Labels, label)
	node.Scores = append(node.Scores, score)
	return node, nil
}

// Search returns the node reached by following the token indices from the
// root, or nil if the path does not exist.
func (t *Trie) Search(indices []int) *TrieNode {
	node := t.root
	for _, idx := range indices {
		child, ok := node.Children[idx]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// Smear precomputes MaxScore on every node: the score of the best word
// completion passing through it (or the log-sum of all completions with
// SmearingLogAdd). Decoders use it as a language model look-ahead bound
// during within-word extension.
func (t *Trie) Smear(mode SmearingMode) {
	if mode == SmearingNone {
		return
	}
	smearNode(t.root, mode)
}

func smearNode(node *TrieNode, mode SmearingMode) {
	node.MaxScore = mathutil.LogZero
	for _, score := range node.Scores {
		if mode == SmearingLogAdd {
			node.MaxScore = mathutil.LogAdd(node.MaxScore, score)
		} else if score > node.MaxScore {
			node.MaxScore = score
		}
	}
	for _, child := range node.Children {
		smearNode(child, mode)
		if mode == SmearingLogAdd {
			node.MaxScore = mathutil.LogAdd(node.MaxScore, child.MaxScore)
		} else if child.MaxScore > node.MaxScore {
			node.MaxScore = child.MaxScore
		}
	}
}
