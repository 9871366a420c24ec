package blockfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// StructureType is the fixed 4-byte magic at the start of every blocked
// sequence set file.
var StructureType = [4]byte{'B', 'S', 'E', 'Q'}

// FormatVersion is the on-disk header version written by this package.
const FormatVersion uint16 = 1

const (
	// SizeFormatText marks records as ASCII-text (size computed from content).
	SizeFormatText uint8 = 0
	// SizeFormatBinary marks records as binary-serialized.
	SizeFormatBinary uint8 = 1
)

// FieldType tags a field descriptor's on-disk representation.
type FieldType uint8

const (
	FieldTypeUint32 FieldType = iota
	FieldTypeString
	FieldTypeBytes
)

// String renders a FieldType the way validation.SchemaFieldRequest expects
// its Type string ("uint32", "string", "bytes").
func (t FieldType) String() string {
	switch t {
	case FieldTypeUint32:
		return "uint32"
	case FieldTypeString:
		return "string"
	case FieldTypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// FieldDescriptor names one field of the record schema carried in the header.
type FieldDescriptor struct {
	Name string
	Type FieldType
}

// Header is the fixed-prefix-plus-variable-length file header described in
// §3.2/§6.1. It is read once at Open and rewritten at Close (or after each
// structural mutation under the immediate-durability policy).
type Header struct {
	StructureType [4]byte
	Version       uint16
	HeaderSize    uint32 // recomputed after serialization
	SizeFormat    uint8

	BlockSize    uint32
	MinBlockSize uint16

	IndexFileName string
	SchemaInfo    string

	RecordCount uint32
	BlockCount  uint32

	Fields          []FieldDescriptor
	PrimaryKeyField uint8

	AvailableListHead RBN
	SequenceSetHead   RBN

	StaleFlag bool
}

// EncodedSize returns the exact byte length this header will occupy once
// serialized, without actually serializing it.
func (h *Header) EncodedSize() int {
	size := 4 + 2 + 4 + 1 // structureType, version, headerSize, sizeFormat
	size += 4 + 2         // blockSize, minBlockSize
	size += 2 + len(h.IndexFileName)
	size += 2 + len(h.SchemaInfo)
	size += 4 + 4 // recordCount, blockCount
	size += 1     // fieldCount
	for _, f := range h.Fields {
		size += 2 + len(f.Name) + 1
	}
	size += 1 // primaryKeyField
	size += 4 + 4 + 1
	return size
}

// writeHeader serializes h to w, recomputing HeaderSize as it goes and
// writing the final value into the already-written headerSize slot is not
// possible on a streaming writer; callers that need the recomputed value
// persisted must call EncodedSize first and set h.HeaderSize before calling
// writeHeader (encodeHeader does this for them).
func writeHeader(w io.Writer, h *Header) error {
	if err := writeFixed(w, h.StructureType[:]); err != nil {
		return err
	}
	if err := writeU16(w, h.Version); err != nil {
		return err
	}
	if err := writeU32(w, h.HeaderSize); err != nil {
		return err
	}
	if err := writeU8(w, h.SizeFormat); err != nil {
		return err
	}
	if err := writeU32(w, h.BlockSize); err != nil {
		return err
	}
	if err := writeU16(w, h.MinBlockSize); err != nil {
		return err
	}
	if err := writeString16(w, h.IndexFileName); err != nil {
		return err
	}
	if err := writeString16(w, h.SchemaInfo); err != nil {
		return err
	}
	if err := writeU32(w, h.RecordCount); err != nil {
		return err
	}
	if err := writeU32(w, h.BlockCount); err != nil {
		return err
	}
	if err := writeU8(w, uint8(len(h.Fields))); err != nil {
		return err
	}
	for _, f := range h.Fields {
		if err := writeString16(w, f.Name); err != nil {
			return err
		}
		if err := writeU8(w, uint8(f.Type)); err != nil {
			return err
		}
	}
	if err := writeU8(w, h.PrimaryKeyField); err != nil {
		return err
	}
	if err := writeU32(w, uint32(h.AvailableListHead)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(h.SequenceSetHead)); err != nil {
		return err
	}
	stale := uint8(0)
	if h.StaleFlag {
		stale = 1
	}
	return writeU8(w, stale)
}

// encodeHeader serializes h into a freshly-sized buffer, recomputing
// HeaderSize in place first.
func encodeHeader(h *Header) ([]byte, error) {
	h.HeaderSize = uint32(h.EncodedSize())
	buf := make([]byte, 0, h.HeaderSize)
	w := &byteSliceWriter{buf: buf}
	if err := writeHeader(w, h); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// readHeader parses a Header from r. A bad magic or a truncated read
// surfaces as a *EngineError with KindMalformedHeader.
func readHeader(r io.Reader) (*Header, error) {
	br := bufio.NewReader(r)
	h := &Header{}

	if err := readFixed(br, h.StructureType[:]); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.StructureType != StructureType {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader,
			fmt.Errorf("bad magic %q", h.StructureType[:]))
	}

	var err error
	if h.Version, err = readU16(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.HeaderSize, err = readU32(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.SizeFormat, err = readU8(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.BlockSize, err = readU32(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.MinBlockSize, err = readU16(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.IndexFileName, err = readString16(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.SchemaInfo, err = readString16(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.RecordCount, err = readU32(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	if h.BlockCount, err = readU32(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	fieldCount, err := readU8(br)
	if err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	h.Fields = make([]FieldDescriptor, fieldCount)
	for i := range h.Fields {
		name, err := readString16(br)
		if err != nil {
			return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
		}
		typeTag, err := readU8(br)
		if err != nil {
			return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
		}
		h.Fields[i] = FieldDescriptor{Name: name, Type: FieldType(typeTag)}
	}
	if h.PrimaryKeyField, err = readU8(br); err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	avail, err := readU32(br)
	if err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	h.AvailableListHead = RBN(avail)
	head, err := readU32(br)
	if err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	h.SequenceSetHead = RBN(head)
	stale, err := readU8(br)
	if err != nil {
		return nil, newErr("readHeader", NilRBN, KindMalformedHeader, err)
	}
	h.StaleFlag = stale != 0

	return h, nil
}

// --- small binary helpers, little-endian throughout ---

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeFixed(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func writeString16(w io.Writer, s string) error {
	if err := writeU16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readFixed(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}

func readString16(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// byteSliceWriter is a minimal io.Writer over a growable slice, used when
// encoding into memory rather than directly to a file.
type byteSliceWriter struct {
	buf []byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
