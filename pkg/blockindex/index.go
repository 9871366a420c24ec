// Package blockindex implements the secondary block index of §4.7: an
// ordered sequence of (highestKey, RBN) entries, one per active block, that
// lets a lookup binary-search its way to the right block instead of walking
// the active chain from the head.
package blockindex

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dd0wney/blockset/pkg/blockfile"
)

// Entry maps the highest primary key present in a block to that block's RBN.
type Entry struct {
	HighKey uint32
	RBN     blockfile.RBN
}

// Index is the in-memory, sorted-by-HighKey block index. It is not
// concurrency-safe; callers serialize access the way they do for the
// underlying block file.
type Index struct {
	entries []Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// Len returns the number of entries currently tracked.
func (idx *Index) Len() int { return len(idx.entries) }

// Lookup returns the RBN of the first block whose HighKey is >= key, which
// is the only block that can contain key given the chain's ascending order.
// The second return is false if no such block exists (key exceeds every
// block's high key).
func (idx *Index) Lookup(key uint32) (blockfile.RBN, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].HighKey >= key })
	if i == len(idx.entries) {
		return blockfile.NilRBN, false
	}
	return idx.entries[i].RBN, true
}

// Set records or updates the high-key entry for rbn. Set is the single
// mutation primitive; both insert and remove paths in the engine express
// their index maintenance as one or more Set/Delete calls per touched RBN.
func (idx *Index) Set(rbn blockfile.RBN, highKey uint32) {
	for i := range idx.entries {
		if idx.entries[i].RBN == rbn {
			idx.entries[i].HighKey = highKey
			idx.resort()
			return
		}
	}
	idx.entries = append(idx.entries, Entry{HighKey: highKey, RBN: rbn})
	idx.resort()
}

// Delete removes the entry for rbn, if present.
func (idx *Index) Delete(rbn blockfile.RBN) {
	for i := range idx.entries {
		if idx.entries[i].RBN == rbn {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			return
		}
	}
}

func (idx *Index) resort() {
	sort.Slice(idx.entries, func(i, j int) bool { return idx.entries[i].HighKey < idx.entries[j].HighKey })
}

// Entries returns a defensive copy of the index contents in ascending
// HighKey order, for tests and diagnostics.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Write serializes the index in the human-readable text format of §4.7:
// "{ key rbn } ... |". It is intended for the sidecar index file named by
// the header's IndexFileName field.
func Write(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)
	for _, e := range idx.entries {
		if _, err := fmt.Fprintf(bw, "{ %d %d } ", e.HighKey, uint32(e.RBN)); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("|"); err != nil {
		return err
	}
	return bw.Flush()
}

// Read parses the text format written by Write.
func Read(r io.Reader) (*Index, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	idx := New()
	for sc.Scan() {
		tok := sc.Text()
		if tok == "|" {
			break
		}
		if tok != "{" {
			return nil, fmt.Errorf("blockindex: expected '{', got %q", tok)
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("blockindex: truncated entry")
		}
		key, err := strconv.ParseUint(sc.Text(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("blockindex: bad key: %w", err)
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("blockindex: truncated entry")
		}
		rbn, err := strconv.ParseUint(sc.Text(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("blockindex: bad rbn: %w", err)
		}
		if !sc.Scan() || sc.Text() != "}" {
			return nil, fmt.Errorf("blockindex: expected '}'")
		}
		idx.entries = append(idx.entries, Entry{HighKey: uint32(key), RBN: blockfile.RBN(rbn)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	idx.resort()
	return idx, nil
}

// BuildFromChain rebuilds an index from scratch by walking the active chain
// starting at head, in ascending order, via reader. It is used on
// Open when the header's stale flag is set (§4.8), and effectively acts as
// the coherency-repair path for the sidecar index file.
func BuildFromChain(reader ChainReader, head blockfile.RBN) (*Index, error) {
	idx := New()
	rbn := head
	for rbn != blockfile.NilRBN {
		b, err := reader.ReadActive(rbn)
		if err != nil {
			return nil, err
		}
		idx.Set(rbn, b.MaxKey())
		rbn = b.SucceedingRBN
	}
	return idx, nil
}

// ChainReader is the minimal capability BuildFromChain needs from a block
// file, kept narrow so the index package does not import more of blockfile
// than it uses.
type ChainReader interface {
	ReadActive(rbn blockfile.RBN) (*blockfile.ActiveBlock, error)
}
