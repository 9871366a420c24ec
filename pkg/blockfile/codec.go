package blockfile

import (
	"encoding/binary"
)

// usedSize returns the total used size of an active block holding records:
// the 10-byte active metadata plus a (4-byte length + payload) entry per
// record, per §3.3/§3.4.
func usedSize(records []Record) (int, error) {
	size := ActiveMetaSize
	for _, rec := range records {
		data, err := rec.Serialize()
		if err != nil {
			return 0, err
		}
		size += entryLenPrefix + len(data)
	}
	return size, nil
}

// recordCost is the marginal bytes one more copy of rec would add to a
// block's used size: its length prefix plus its serialized size.
func recordCost(rec Record) (int, error) {
	data, err := rec.Serialize()
	if err != nil {
		return 0, err
	}
	return entryLenPrefix + len(data), nil
}

// packPayload writes records, in order, as a dense sequence of
// (u32 length, length bytes) entries. The caller is responsible for
// ensuring the result, prefixed by ActiveMetaSize, does not exceed
// blockSize; packPayload itself does not enforce capacity.
func packPayload(records []Record) ([]byte, error) {
	buf := make([]byte, 0, ActiveMetaSize)
	for _, rec := range records {
		data, err := rec.Serialize()
		if err != nil {
			return nil, err
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, data...)
	}
	return buf, nil
}

// unpackPayload reverses packPayload, stopping cleanly when the payload is
// exhausted or the next declared length would overflow the remaining
// bytes. Truncated trailing bytes are ignored silently per §4.2 — they
// never produce a partial record.
func unpackPayload(payload []byte, codec Codec) ([]Record, error) {
	var records []Record
	off := 0
	for off+entryLenPrefix <= len(payload) {
		length := binary.LittleEndian.Uint32(payload[off : off+4])
		off += entryLenPrefix
		end := off + int(length)
		if end < off || end > len(payload) {
			// Declared length overflows what remains: truncated trailer, stop.
			break
		}
		rec, err := codec.Deserialize(payload[off:end])
		if err != nil {
			return nil, newErr("unpackPayload", NilRBN, KindMalformedBlock, err)
		}
		records = append(records, rec)
		off = end
	}
	return records, nil
}
