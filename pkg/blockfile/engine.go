package blockfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/blockset/pkg/blockindex"
	"github.com/dd0wney/blockset/pkg/logging"
	"github.com/dd0wney/blockset/pkg/metrics"
	"github.com/dd0wney/blockset/pkg/validation"
)

// Config describes how to open or create a blocked sequence set file.
type Config struct {
	Path            string
	IndexPath       string // defaults to Path + ".idx" if empty
	BlockSize       uint32
	MinBlockSize    uint16
	Fields          []FieldDescriptor
	PrimaryKeyField uint8
	SchemaInfo      string
	AllowDuplicates bool // default false; when true Insert skips its duplicate lookup, but addRecord still rejects a key already in the target block, so duplicates are rejected either way
	FlushOnMutation bool // if true, durably persist header+index after every mutation

	Codec  Codec
	Logger logging.Logger
	Metric *metrics.Registry
}

// Engine is the caller-facing handle over one open blocked sequence set
// file: it wires block I/O (File), the header, the secondary block index,
// structured logging, and metrics behind Lookup/Insert/Remove/Dump.
//
// Single-threaded, cooperative access only: one writer, zero concurrent
// readers, no internal locking (§5).
type Engine struct {
	file   *File
	header *Header
	index  *blockindex.Index
	codec  Codec

	path      string
	indexPath string
	dup       bool
	flushNow  bool

	log     logging.Logger
	metrics *metrics.Registry
}

// chainReader adapts Engine to blockindex.ChainReader by binding the codec.
type chainReader struct {
	e *Engine
}

func (cr chainReader) ReadActive(rbn RBN) (*ActiveBlock, error) {
	return cr.e.file.ReadActive(rbn, cr.e.codec)
}

// validateSchema runs cfg's field descriptors through
// validation.ValidateSchemaRequest before a new file's header is built,
// catching a bad field name, a duplicate field, or a missing/non-uint32
// primary key before anything is written to disk.
func validateSchema(cfg Config) error {
	if len(cfg.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	if int(cfg.PrimaryKeyField) >= len(cfg.Fields) {
		return fmt.Errorf("primaryKeyField index %d is out of range for %d fields", cfg.PrimaryKeyField, len(cfg.Fields))
	}

	fields := make([]validation.SchemaFieldRequest, len(cfg.Fields))
	for i, f := range cfg.Fields {
		fields[i] = validation.SchemaFieldRequest{Name: f.Name, Type: f.Type.String()}
	}

	return validation.ValidateSchemaRequest(&validation.SchemaRequest{
		Fields:          fields,
		PrimaryKeyField: cfg.Fields[cfg.PrimaryKeyField].Name,
	})
}

// Open opens the file at cfg.Path, creating it with a fresh header if it
// does not already exist, and resolves the secondary index per §4.8: if the
// header's stale flag is set (or the index file is missing/unreadable), the
// index is rebuilt from the authoritative active chain.
func Open(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	met := cfg.Metric
	if met == nil {
		met = metrics.NewRegistry()
	}

	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = cfg.Path + ".idx"
	}

	_, statErr := os.Stat(cfg.Path)
	var header *Header
	var bf *File
	var err error

	if os.IsNotExist(statErr) {
		if err := validateSchema(cfg); err != nil {
			return nil, newErr("Open", NilRBN, KindInvalidConfig, err)
		}
		header = &Header{
			StructureType:     StructureType,
			Version:           FormatVersion,
			SizeFormat:        SizeFormatText,
			BlockSize:         cfg.BlockSize,
			MinBlockSize:      cfg.MinBlockSize,
			IndexFileName:     filepath.Base(indexPath),
			SchemaInfo:        cfg.SchemaInfo,
			Fields:            cfg.Fields,
			PrimaryKeyField:   cfg.PrimaryKeyField,
			AvailableListHead: NilRBN,
			SequenceSetHead:   NilRBN,
			StaleFlag:         false,
		}
		header.HeaderSize = uint32(header.EncodedSize())
		bf, err = openFile(cfg.Path, header.HeaderSize, cfg.BlockSize)
		if err != nil {
			return nil, err
		}
		if err := writeHeaderFile(cfg.Path, header); err != nil {
			bf.Close()
			return nil, err
		}
		log.Info("created new blocked sequence set", logging.Path(cfg.Path))
	} else {
		f, openErr := os.Open(cfg.Path)
		if openErr != nil {
			return nil, newErr("Open", NilRBN, KindIO, openErr)
		}
		header, err = readHeader(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		bf, err = openFile(cfg.Path, header.HeaderSize, header.BlockSize)
		if err != nil {
			return nil, err
		}
		log.Info("opened blocked sequence set", logging.Path(cfg.Path), logging.Count(int(header.RecordCount)))
	}

	e := &Engine{
		file:      bf,
		header:    header,
		codec:     cfg.Codec,
		path:      cfg.Path,
		indexPath: indexPath,
		dup:       cfg.AllowDuplicates,
		flushNow:  cfg.FlushOnMutation,
		log:       log,
		metrics:   met,
	}

	if err := e.resolveIndex(); err != nil {
		bf.Close()
		return nil, err
	}

	e.refreshStructuralMetrics()
	return e, nil
}

// resolveIndex loads the sidecar index file, or rebuilds it from the chain
// if the header's stale flag is set or the sidecar is missing/unreadable.
func (e *Engine) resolveIndex() error {
	if e.header.StaleFlag {
		e.log.Warn("stale flag set at open, rebuilding index from chain", logging.Path(e.path))
		return e.rebuildIndex()
	}

	f, err := os.Open(e.indexPath)
	if err != nil {
		e.log.Warn("index file unreadable, rebuilding from chain", logging.Path(e.indexPath), logging.Error(err))
		return e.rebuildIndex()
	}
	defer f.Close()

	idx, err := blockindex.Read(f)
	if err != nil {
		e.log.Warn("index file malformed, rebuilding from chain", logging.Path(e.indexPath), logging.Error(err))
		return e.rebuildIndex()
	}
	e.index = idx
	return nil
}

func (e *Engine) rebuildIndex() error {
	idx, err := blockindex.BuildFromChain(chainReader{e}, e.header.SequenceSetHead)
	if err != nil {
		return newErr("rebuildIndex", NilRBN, KindIndexStale, err)
	}
	e.index = idx
	e.metrics.RecordIndexRebuild()
	e.header.StaleFlag = false
	return nil
}

// Close persists the header and secondary index durably and releases the
// underlying file handle.
func (e *Engine) Close() error {
	if err := e.flush(); err != nil {
		e.file.Close()
		return err
	}
	return e.file.Close()
}

// flush writes the index sidecar (temp file renamed into place) and then
// rewrites the header in place with the stale flag cleared. If the index
// write fails the header is not rewritten, so the flag is not cleared.
func (e *Engine) flush() error {
	if err := e.writeIndexFile(); err != nil {
		return err
	}
	e.header.StaleFlag = false
	if err := writeHeaderFile(e.path, e.header); err != nil {
		return err
	}
	return e.file.Sync()
}

func (e *Engine) writeIndexFile() error {
	tmp := e.indexPath + "." + uuid.NewString() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return newErr("writeIndexFile", NilRBN, KindIO, err)
	}
	if err := blockindex.Write(f, e.index); err != nil {
		f.Close()
		os.Remove(tmp)
		return newErr("writeIndexFile", NilRBN, KindIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return newErr("writeIndexFile", NilRBN, KindIO, err)
	}
	if err := os.Rename(tmp, e.indexPath); err != nil {
		os.Remove(tmp)
		return newErr("writeIndexFile", NilRBN, KindIO, err)
	}
	return nil
}

// writeHeaderFile durably rewrites just the header prefix of path via a
// temp-file-and-rename of the whole file is unsafe (it would clobber block
// data), so the header is written in place at offset 0 instead; atomicity
// here is best-effort (single positional write), matching the "no crash
// atomicity beyond best-effort flush" scope of this engine.
func writeHeaderFile(path string, h *Header) error {
	encoded, err := encodeHeader(h)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return newErr("writeHeaderFile", NilRBN, KindIO, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(encoded, 0); err != nil {
		return newErr("writeHeaderFile", NilRBN, KindIO, err)
	}
	return f.Sync()
}

func (e *Engine) refreshStructuralMetrics() {
	diskUsage := int64(e.header.HeaderSize) + int64(e.header.BlockCount)*int64(e.header.BlockSize)
	e.metrics.UpdateStructuralMetrics(e.header.BlockCount, e.header.RecordCount, e.freeListLength(), diskUsage)
}

func (e *Engine) freeListLength() uint32 {
	var n uint32
	rbn := e.header.AvailableListHead
	for rbn != NilRBN {
		b, err := e.file.ReadBlock(rbn, e.codec)
		if err != nil || b.Avail == nil {
			break
		}
		n++
		rbn = b.Avail.NextAvailRBN
	}
	return n
}

// tailRBN returns the RBN of the last block in the active chain, per the
// index's ordering (the entry with the largest high key), or NilRBN if the
// file holds no active blocks.
func (e *Engine) tailRBN() RBN {
	entries := e.index.Entries()
	if len(entries) == 0 {
		return NilRBN
	}
	return entries[len(entries)-1].RBN
}

// targetFor resolves the RBN an operation on key should start from: the
// first block whose high key is >= key, or the tail block if key exceeds
// every block's high key (§4.5).
func (e *Engine) targetFor(key uint32) RBN {
	if rbn, ok := e.index.Lookup(key); ok {
		return rbn
	}
	return e.tailRBN()
}

// Lookup returns the record with the given key, if present.
func (e *Engine) Lookup(key uint32) (Record, bool, error) {
	start := time.Now()
	rec, found, err := e.lookup(key)
	status := "ok"
	if err != nil {
		status = "error"
	} else if !found {
		status = "not_found"
	}
	e.metrics.RecordOperation("lookup", status, time.Since(start))
	return rec, found, err
}

func (e *Engine) lookup(key uint32) (Record, bool, error) {
	if e.header.SequenceSetHead == NilRBN {
		return nil, false, nil
	}
	rbn := e.targetFor(key)
	if rbn == NilRBN {
		return nil, false, nil
	}
	block, err := e.file.ReadActive(rbn, e.codec)
	if err != nil {
		return nil, false, err
	}
	for _, rec := range block.Records {
		if rec.PrimaryKey() == key {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

// Insert adds rec to the sequence set, returning an EngineError with
// KindDuplicate if its key already exists.
func (e *Engine) Insert(rec Record) error {
	start := time.Now()
	err := e.insert(rec)
	status := "ok"
	if ee, ok := err.(*EngineError); ok {
		status = ee.Kind.String()
	} else if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation("insert", status, time.Since(start))
	if err == nil {
		e.refreshStructuralMetrics()
	}
	return err
}

func (e *Engine) insert(rec Record) error {
	key := rec.PrimaryKey()

	if e.header.SequenceSetHead == NilRBN {
		return e.insertFirst(rec)
	}

	if !e.dup {
		if _, found, err := e.lookup(key); err != nil {
			return err
		} else if found {
			return newKeyErr("Insert", key, KindDuplicate, nil)
		}
	}

	e.header.StaleFlag = true
	target := e.targetFor(key)
	result, err := addRecord(e.file, e.header, e.codec, target, rec)
	if err != nil {
		return err
	}
	e.header.RecordCount++

	for _, rbn := range result.touchedRBNs {
		b, err := e.file.ReadActive(rbn, e.codec)
		if err != nil {
			return err
		}
		e.index.Set(rbn, b.MaxKey())
	}
	if result.splitRBN != NilRBN {
		e.metrics.RecordSplit()
	} else if len(result.touchedRBNs) == 2 {
		direction := "right"
		if result.touchedRBNs[0] != target {
			direction = "left"
		}
		e.metrics.RecordRedistribute(direction)
	}

	e.log.Debug("insert", logging.Key(key), logging.RBN(uint32(target)))

	if e.flushNow {
		return e.flush()
	}
	return nil
}

func (e *Engine) insertFirst(rec Record) error {
	rbn, err := allocate(e.file, e.header, e.codec)
	if err != nil {
		return err
	}
	block := &ActiveBlock{RBN: rbn, PrecedingRBN: NilRBN, SucceedingRBN: NilRBN, Records: []Record{rec}}
	if err := e.file.WriteActive(block); err != nil {
		return err
	}
	e.header.SequenceSetHead = rbn
	e.header.RecordCount = 1
	e.index.Set(rbn, rec.PrimaryKey())
	e.log.Debug("insert (first record)", logging.Key(rec.PrimaryKey()), logging.RBN(uint32(rbn)))
	if e.flushNow {
		return e.flush()
	}
	return nil
}

// Remove deletes the record with the given key, returning an EngineError
// with KindNotFound if it is not present.
func (e *Engine) Remove(key uint32) error {
	start := time.Now()
	err := e.remove(key)
	status := "ok"
	if ee, ok := err.(*EngineError); ok {
		status = ee.Kind.String()
	} else if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation("remove", status, time.Since(start))
	if err == nil {
		e.refreshStructuralMetrics()
	}
	return err
}

func (e *Engine) remove(key uint32) error {
	if e.header.SequenceSetHead == NilRBN {
		return newKeyErr("Remove", key, KindNotFound, nil)
	}

	e.header.StaleFlag = true
	target := e.targetFor(key)
	result, err := removeRecord(e.file, e.header, e.codec, target, key)
	if err != nil {
		return err
	}
	e.header.RecordCount--

	if result.emptiedChain {
		e.index.Delete(result.freedRBN)
		e.header.SequenceSetHead = NilRBN
	} else if result.freedRBN != NilRBN {
		e.index.Delete(result.freedRBN)
		e.metrics.RecordMerge()
	} else if len(result.touchedRBNs) == 2 {
		direction := "right"
		if result.touchedRBNs[0] != target {
			direction = "left"
		}
		e.metrics.RecordBorrow(direction)
	}
	for _, rbn := range result.touchedRBNs {
		b, err := e.file.ReadActive(rbn, e.codec)
		if err != nil {
			return err
		}
		e.index.Set(rbn, b.MaxKey())
	}

	e.log.Debug("remove", logging.Key(key), logging.RBN(uint32(target)))

	if e.flushNow {
		return e.flush()
	}
	return nil
}

// DumpPhysical iterates RBN 1..blockCount and writes each block's type tag,
// keys (or "*avail*"), and links, per §6.3.
func (e *Engine) DumpPhysical(w io.Writer) error {
	for rbn := RBN(1); rbn <= RBN(e.header.BlockCount); rbn++ {
		b, err := e.file.ReadBlock(rbn, e.codec)
		if err != nil {
			return err
		}
		if b.Active != nil {
			keys := make([]uint32, len(b.Active.Records))
			for i, r := range b.Active.Records {
				keys[i] = r.PrimaryKey()
			}
			fmt.Fprintf(w, "RBN %d: active prev=%s next=%s keys=%v\n", rbn, b.Active.PrecedingRBN, b.Active.SucceedingRBN, keys)
		} else {
			fmt.Fprintf(w, "RBN %d: *avail* next=%s\n", rbn, b.Avail.NextAvailRBN)
		}
	}
	return nil
}

// DumpLogical walks the active chain from sequenceSetHead and writes each
// block's keys in chain order, per §6.3.
func (e *Engine) DumpLogical(w io.Writer) error {
	rbn := e.header.SequenceSetHead
	for rbn != NilRBN {
		b, err := e.file.ReadActive(rbn, e.codec)
		if err != nil {
			return err
		}
		keys := make([]uint32, len(b.Records))
		for i, r := range b.Records {
			keys[i] = r.PrimaryKey()
		}
		fmt.Fprintf(w, "RBN %d: keys=%v\n", rbn, keys)
		rbn = b.SucceedingRBN
	}
	return nil
}

// RecordCount returns the header's current record count.
func (e *Engine) RecordCount() uint32 { return e.header.RecordCount }

// BlockCount returns the header's current block count.
func (e *Engine) BlockCount() uint32 { return e.header.BlockCount }
