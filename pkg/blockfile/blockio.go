package blockfile

import (
	"encoding/binary"
	"os"
)

// File is the block I/O layer: it reads and writes one whole block at a
// time by RBN, seeking past the header. It makes no assumption about the
// file cursor between calls — every operation is a positional ReadAt/WriteAt.
type File struct {
	f          *os.File
	headerSize uint32
	blockSize  uint32
}

// openFile opens path for read-write block access. headerSize and
// blockSize must already be known (from a freshly-written or
// freshly-parsed Header).
func openFile(path string, headerSize, blockSize uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, newErr("openFile", NilRBN, KindIO, err)
	}
	return &File{f: f, headerSize: headerSize, blockSize: blockSize}, nil
}

func (bf *File) offset(rbn RBN) int64 {
	return int64(bf.headerSize) + int64(rbn)*int64(bf.blockSize)
}

// Close closes the underlying file handle.
func (bf *File) Close() error {
	if err := bf.f.Close(); err != nil {
		return newErr("Close", NilRBN, KindIO, err)
	}
	return nil
}

// Sync flushes the file to stable storage.
func (bf *File) Sync() error {
	if err := bf.f.Sync(); err != nil {
		return newErr("Sync", NilRBN, KindIO, err)
	}
	return nil
}

// ReadRaw reads the raw blockSize-byte slot at rbn, without interpreting it.
func (bf *File) ReadRaw(rbn RBN) ([]byte, error) {
	buf := make([]byte, bf.blockSize)
	n, err := bf.f.ReadAt(buf, bf.offset(rbn))
	if err != nil && n != len(buf) {
		return nil, newErr("ReadRaw", rbn, KindIO, err)
	}
	return buf, nil
}

// WriteRaw writes exactly blockSize bytes at rbn, zero-padding or
// truncating data to that length itself.
func (bf *File) WriteRaw(rbn RBN, data []byte) error {
	if len(data) != int(bf.blockSize) {
		padded := make([]byte, bf.blockSize)
		copy(padded, data)
		data = padded
	}
	if _, err := bf.f.WriteAt(data, bf.offset(rbn)); err != nil {
		return newErr("WriteRaw", rbn, KindIO, err)
	}
	return nil
}

// block is the tagged-sum decoding of a raw block slot: exactly one of
// Active or Avail is non-nil, dispatched by the recordCount prefix per §3.3.
type block struct {
	Active *ActiveBlock
	Avail  *AvailBlock
}

// ReadBlock reads and parses the block at rbn, returning a tagged block
// (Active or Avail depending on the parsed recordCount).
func (bf *File) ReadBlock(rbn RBN, codec Codec) (*block, error) {
	raw, err := bf.ReadRaw(rbn)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, newErr("ReadBlock", rbn, KindMalformedBlock, nil)
	}
	recordCount := binary.LittleEndian.Uint16(raw[0:2])
	if recordCount == 0 {
		if len(raw) < AvailMetaSize {
			return nil, newErr("ReadBlock", rbn, KindMalformedBlock, nil)
		}
		next := RBN(binary.LittleEndian.Uint32(raw[2:6]))
		return &block{Avail: &AvailBlock{RBN: rbn, NextAvailRBN: next}}, nil
	}

	if len(raw) < ActiveMetaSize {
		return nil, newErr("ReadBlock", rbn, KindMalformedBlock, nil)
	}
	preceding := RBN(binary.LittleEndian.Uint32(raw[2:6]))
	succeeding := RBN(binary.LittleEndian.Uint32(raw[6:10]))
	records, err := unpackPayload(raw[ActiveMetaSize:], codec)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, newErr("ReadBlock", rbn, KindMalformedBlock, nil)
	}
	return &block{Active: &ActiveBlock{
		RBN:           rbn,
		PrecedingRBN:  preceding,
		SucceedingRBN: succeeding,
		Records:       records,
	}}, nil
}

// ReadActive reads the block at rbn and requires it to be active,
// surfacing KindCorruptedChain otherwise (a chain link pointed at a free
// block).
func (bf *File) ReadActive(rbn RBN, codec Codec) (*ActiveBlock, error) {
	b, err := bf.ReadBlock(rbn, codec)
	if err != nil {
		return nil, err
	}
	if b.Active == nil {
		return nil, newErr("ReadActive", rbn, KindCorruptedChain, nil)
	}
	return b.Active, nil
}

// WriteActive serializes and writes an active block.
func (bf *File) WriteActive(b *ActiveBlock) error {
	payload, err := packPayload(b.Records)
	if err != nil {
		return err
	}
	used := ActiveMetaSize + len(payload)
	if used > int(bf.blockSize) {
		return newErr("WriteActive", b.RBN, KindCapacityExceeded, nil)
	}
	buf := make([]byte, ActiveMetaSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(b.Records)))
	binary.LittleEndian.PutUint32(buf[2:6], uint32(b.PrecedingRBN))
	binary.LittleEndian.PutUint32(buf[6:10], uint32(b.SucceedingRBN))
	copy(buf[ActiveMetaSize:], payload)
	return bf.WriteRaw(b.RBN, buf)
}

// WriteAvail serializes and writes an available (free-list) block.
func (bf *File) WriteAvail(b *AvailBlock) error {
	buf := make([]byte, AvailMetaSize)
	binary.LittleEndian.PutUint16(buf[0:2], 0)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(b.NextAvailRBN))
	return bf.WriteRaw(b.RBN, buf)
}

// UsedSize returns the current used-size of an active block (§3.3).
func UsedSize(b *ActiveBlock) (int, error) {
	return usedSize(b.Records)
}
