package lexicon

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Dictionary maps entries (tokens or words) to dense integer indices in
// insertion order.
type Dictionary struct {
	indices map[string]int
	entries []string
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{indices: make(map[string]int)}
}

// Add inserts the entry if absent and returns its index.
func (d *Dictionary) Add(entry string) int {
	if idx, ok := d.indices[entry]; ok {
		return idx
	}
	idx := len(d.entries)
	d.indices[entry] = idx
	d.entries = append(d.entries, entry)
	return idx
}

// Index returns the index of an entry.
func (d *Dictionary) Index(entry string) (int, bool) {
	idx, ok := d.indices[entry]
	return idx, ok
}

// Entry returns the entry at idx, or the empty string when out of range.
func (d *Dictionary) Entry(idx int) string {
	if idx < 0 || idx >= len(d.entries) {
		return ""
	}
	return d.entries[idx]
}

// Contains reports whether the entry is present.
func (d *Dictionary) Contains(entry string) bool {
	_, ok := d.indices[entry]
	return ok
}

// Size returns the number of entries.
func (d *Dictionary) Size() int {
	return len(d.entries)
}

// LoadDictionary reads a dictionary from a reader with one entry per line.
// Blank lines and lines starting with # are skipped.
func LoadDictionary(r io.Reader) (*Dictionary, error) {
	d := NewDictionary()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		d.Add(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "lexicon: read dictionary")
	}
	return d, nil
}

// LoadDictionaryFile is a convenience wrapper that opens a file path.
func LoadDictionaryFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "lexicon: open dictionary")
	}
	defer f.Close()
	return LoadDictionary(f)
}
