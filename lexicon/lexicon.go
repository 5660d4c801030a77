package lexicon

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Entry represents a single pronunciation for a word.
type Entry struct {
	Word   string
	Tokens []string // token spelling
}

// Lexicon holds word-to-spelling mappings. Words preserves first-seen order
// so dictionary and trie construction stay deterministic.
type Lexicon struct {
	Entries map[string][]Entry // word -> list of alternative spellings
	Words   []string
}

// NewLexicon creates an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{Entries: make(map[string][]Entry)}
}

// Add adds a spelling entry to the lexicon.
func (l *Lexicon) Add(word string, tokens []string) {
	if _, ok := l.Entries[word]; !ok {
		l.Words = append(l.Words, word)
	}
	l.Entries[word] = append(l.Entries[word], Entry{Word: word, Tokens: tokens})
}

// Lookup returns all spelling variants for a word.
func (l *Lexicon) Lookup(word string) []Entry {
	return l.Entries[word]
}

// Load reads a pronunciation lexicon from a whitespace-separated file.
// Format: word token1 token2 token3 ...
// Entries are NFC-normalized. Blank lines and lines starting with # are
// skipped.
func Load(r io.Reader) (*Lexicon, error) {
	l := NewLexicon()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(norm.NFC.String(line))
		if len(fields) < 2 {
			return nil, errors.Errorf("lexicon: line %d: expected a word and at least one token, got %q", lineNum, line)
		}

		l.Add(fields[0], fields[1:])
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "lexicon: read")
	}

	return l, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "lexicon: open")
	}
	defer f.Close()
	return Load(f)
}
