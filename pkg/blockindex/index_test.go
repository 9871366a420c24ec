package blockindex

import (
	"bytes"
	"testing"

	"github.com/dd0wney/blockset/pkg/blockfile"
)

func TestLookup_FirstEntryAtOrAboveKey(t *testing.T) {
	idx := New()
	idx.Set(1, 100)
	idx.Set(2, 200)
	idx.Set(3, 300)

	tests := []struct {
		key    uint32
		want   blockfile.RBN
		wantOK bool
	}{
		{50, 1, true},
		{100, 1, true},
		{101, 2, true},
		{300, 3, true},
		{301, blockfile.NilRBN, false},
	}
	for _, tt := range tests {
		got, ok := idx.Lookup(tt.key)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Lookup(%d) = (%s, %v), want (%s, %v)", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSet_UpdatesExistingEntry(t *testing.T) {
	idx := New()
	idx.Set(1, 100)
	idx.Set(1, 150)

	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	got, ok := idx.Lookup(150)
	if !ok || got != 1 {
		t.Fatalf("Lookup(150) = (%s, %v), want (1, true)", got, ok)
	}
}

func TestSet_KeepsEntriesSorted(t *testing.T) {
	idx := New()
	idx.Set(3, 300)
	idx.Set(1, 100)
	idx.Set(2, 200)

	entries := idx.Entries()
	want := []uint32{100, 200, 300}
	for i, e := range entries {
		if e.HighKey != want[i] {
			t.Fatalf("Entries()[%d].HighKey = %d, want %d", i, e.HighKey, want[i])
		}
	}
}

func TestDelete_RemovesEntry(t *testing.T) {
	idx := New()
	idx.Set(1, 100)
	idx.Set(2, 200)
	idx.Delete(1)

	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	if _, ok := idx.Lookup(100); ok {
		t.Fatalf("Lookup(100) found after deleting its owning RBN")
	}
}

func TestDelete_MissingRBNIsNoop(t *testing.T) {
	idx := New()
	idx.Set(1, 100)
	idx.Delete(99)
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	idx := New()
	idx.Set(1, 100)
	idx.Set(2, 200)
	idx.Set(3, 300)

	var buf bytes.Buffer
	if err := Write(&buf, idx); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != idx.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), idx.Len())
	}
	for _, e := range idx.Entries() {
		rbn, ok := got.Lookup(e.HighKey)
		if !ok || rbn != e.RBN {
			t.Fatalf("Lookup(%d) after round trip = (%s, %v), want (%s, true)", e.HighKey, rbn, ok, e.RBN)
		}
	}
}

func TestWrite_EmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, New()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "|" {
		t.Fatalf("Write(empty) = %q, want %q", buf.String(), "|")
	}
}

func TestRead_RejectsMalformed(t *testing.T) {
	tests := []string{
		"{ 100 }",
		"{ notanumber 1 } |",
		"{ 100 notanumber } |",
		"nonsense",
	}
	for _, in := range tests {
		if _, err := Read(bytes.NewBufferString(in)); err == nil {
			t.Errorf("Read(%q) succeeded, want error", in)
		}
	}
}

type fakeChain struct {
	blocks map[blockfile.RBN]*blockfile.ActiveBlock
}

func (f fakeChain) ReadActive(rbn blockfile.RBN) (*blockfile.ActiveBlock, error) {
	b, ok := f.blocks[rbn]
	if !ok {
		return nil, blockfile.ErrNotFound
	}
	return b, nil
}

type fakeRecord struct{ key uint32 }

func (r fakeRecord) PrimaryKey() uint32         { return r.key }
func (r fakeRecord) Serialize() ([]byte, error) { return nil, nil }

func TestBuildFromChain(t *testing.T) {
	chain := fakeChain{blocks: map[blockfile.RBN]*blockfile.ActiveBlock{
		1: {RBN: 1, PrecedingRBN: blockfile.NilRBN, SucceedingRBN: 2, Records: []blockfile.Record{fakeRecord{100}, fakeRecord{200}}},
		2: {RBN: 2, PrecedingRBN: 1, SucceedingRBN: blockfile.NilRBN, Records: []blockfile.Record{fakeRecord{300}, fakeRecord{400}}},
	}}

	idx, err := BuildFromChain(chain, 1)
	if err != nil {
		t.Fatalf("BuildFromChain: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
	if rbn, ok := idx.Lookup(200); !ok || rbn != 1 {
		t.Fatalf("Lookup(200) = (%s, %v), want (1, true)", rbn, ok)
	}
	if rbn, ok := idx.Lookup(400); !ok || rbn != 2 {
		t.Fatalf("Lookup(400) = (%s, %v), want (2, true)", rbn, ok)
	}
}

func TestBuildFromChain_EmptyHead(t *testing.T) {
	idx, err := BuildFromChain(fakeChain{blocks: map[blockfile.RBN]*blockfile.ActiveBlock{}}, blockfile.NilRBN)
	if err != nil {
		t.Fatalf("BuildFromChain: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", idx.Len())
	}
}
