// Package blockfile implements the blocked sequence set file format: a
// doubly-linked chain of fixed-size active blocks in primary-key order,
// backed by a singly-linked free list of reclaimed blocks.
package blockfile

import "fmt"

// RBN is a Relative Block Number: a zero-origin index into the block region
// of a file. RBN 0 is reserved as the null sentinel in link fields; active
// and available chains begin at RBN 1.
type RBN uint32

// NilRBN is the null sentinel used by preceding/succeeding/next-available
// link fields, and by the header's list-head fields when a list is empty.
const NilRBN RBN = 0

func (r RBN) String() string {
	if r == NilRBN {
		return "nil"
	}
	return fmt.Sprintf("%d", uint32(r))
}

const (
	// ActiveMetaSize is the fixed metadata prefix of an active block:
	// recordCount(u16) + precedingRBN(u32) + succeedingRBN(u32).
	ActiveMetaSize = 2 + 4 + 4

	// AvailMetaSize is the fixed metadata prefix of an available block:
	// recordCount=0(u16) + nextAvailRBN(u32).
	AvailMetaSize = 2 + 4

	// entryLenPrefix is the size of the u32 length prefix on each packed record.
	entryLenPrefix = 4
)

// Record is an opaque, keyed, length-prefixable domain value. The engine
// never interprets record bytes beyond the key it is given; concrete
// record types (e.g. record/zipcode.Record) live outside this package.
type Record interface {
	// PrimaryKey returns the record's 32-bit unsigned sort/lookup key.
	PrimaryKey() uint32
	// Serialize returns the record's on-disk byte representation.
	Serialize() ([]byte, error)
}

// Codec deserializes the opaque byte form produced by a Record back into a
// caller-defined value. The engine is generic over record payloads; callers
// supply a Codec matching the schema they wrote with.
type Codec interface {
	// Deserialize parses the bytes of one record entry (without its length
	// prefix) back into a Record.
	Deserialize(data []byte) (Record, error)
}

// ActiveBlock is the in-memory form of a block with recordCount ≥ 1,
// linked into the sequence set.
type ActiveBlock struct {
	RBN          RBN
	PrecedingRBN RBN
	SucceedingRBN RBN
	Records      []Record // sorted ascending by PrimaryKey
}

// AvailBlock is the in-memory form of a block with recordCount = 0,
// linked into the singly-linked free list.
type AvailBlock struct {
	RBN          RBN
	NextAvailRBN RBN
}

// IsActive reports whether this block currently holds records.
func (b *ActiveBlock) IsActive() bool { return true }

// MaxKey returns the highest primary key in the block. Callers must ensure
// the block is non-empty; an empty active block is a contract violation
// (recordCount=0 blocks are available blocks, never ActiveBlock values).
func (b *ActiveBlock) MaxKey() uint32 {
	return b.Records[len(b.Records)-1].PrimaryKey()
}

// MinKey returns the lowest primary key in the block.
func (b *ActiveBlock) MinKey() uint32 {
	return b.Records[0].PrimaryKey()
}
