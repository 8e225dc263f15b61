package book

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/notnil/chess"

	"github.com/hupe1980/chessbridge/logging"
)

// DefaultMinWeight is the threshold used when callers pass a non-positive weight.
const DefaultMinWeight = 1

// Entry is one candidate move for a position.
type Entry struct {
	Move   string // UCI notation
	Weight int
	Learn  uint32
}

// Lookuper is the read side of an opening table as consumed by the orchestrator.
type Lookuper interface {
	Lookup(pos *chess.Position, minWeight int) (*chess.Move, bool, error)
}

// Finder lists every entry stored for a position.
type Finder interface {
	Find(pos *chess.Position, minWeight int) ([]Entry, error)
}

// Options configures Open.
type Options struct {
	// Logger receives load and lookup diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Table is an opened opening table. It is safe for concurrent queries.
type Table struct {
	path   string
	count  int
	logger logging.Logger

	mu     sync.RWMutex
	data   io.ReaderAt
	closer io.Closer
	closed bool
}

var (
	_ Lookuper = (*Table)(nil)
	_ Finder   = (*Table)(nil)
)

// Open loads the table at path. The header and payload checksum are verified
// before the table is returned.
func Open(path string, optFns ...func(o *Options)) (*Table, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}

	t, err := load(path, f, opts.Logger)
	if err != nil {
		_ = f.Close()
		return nil, &Error{Op: "load", Path: path, Err: err}
	}
	return t, nil
}

func load(path string, f *os.File, logger logging.Logger) (*Table, error) {
	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return nil, err
	}
	h, err := decodeHeader(hdr)
	if err != nil {
		return nil, err
	}

	t := &Table{path: path, count: int(h.Count), logger: logger}

	if h.Flags&flagZstd != 0 {
		raw, err := inflate(io.NewSectionReader(f, headerSize, 1<<62), h.RawSize)
		if err != nil {
			return nil, err
		}
		if crc32.ChecksumIEEE(raw) != h.CRC {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
		}
		// the payload now lives in memory; the file is no longer needed
		if err := f.Close(); err != nil {
			return nil, err
		}
		t.data = bytes.NewReader(raw)
	} else {
		payload := io.NewSectionReader(f, headerSize, int64(h.RawSize))
		hash := crc32.NewIEEE()
		n, err := io.Copy(hash, payload)
		if err != nil {
			return nil, err
		}
		if n != int64(h.RawSize) {
			return nil, fmt.Errorf("%w: payload truncated at %d of %d bytes", ErrCorrupt, n, h.RawSize)
		}
		if hash.Sum32() != h.CRC {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
		}
		t.data = payload
		t.closer = f
	}

	logger.Info("opening table loaded", "path", path, "entries", t.count, "compressed", h.Flags&flagZstd != 0)
	return t, nil
}

// inflate decodes a compressed payload. The output buffer grows with the
// bytes actually decoded and never past rawSize+1, so a header cannot force
// a large allocation.
func inflate(r io.Reader, rawSize uint32) ([]byte, error) {
	if rawSize > maxInflated {
		return nil, fmt.Errorf("%w: compressed payload of %d bytes exceeds limit of %d", ErrCorrupt, rawSize, maxInflated)
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxInflated))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(io.LimitReader(dec, int64(rawSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw) != int(rawSize) {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupt, len(raw), rawSize)
	}
	return raw, nil
}

// Path returns the file the table was loaded from.
func (t *Table) Path() string { return t.path }

// Len returns the number of records in the table.
func (t *Table) Len() int { return t.count }

// Find returns every entry for pos with a weight of at least minWeight, in
// table order. A non-positive minWeight is treated as DefaultMinWeight.
func (t *Table) Find(pos *chess.Position, minWeight int) ([]Entry, error) {
	if minWeight <= 0 {
		minWeight = DefaultMinWeight
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, &Error{Op: "find", Path: t.path, Err: ErrClosed}
	}

	key := PositionKey(pos)
	buf := make([]byte, recordSize)

	var readErr error
	first := sort.Search(t.count, func(i int) bool {
		if readErr != nil {
			return true
		}
		r, err := t.recordAt(i, buf)
		if err != nil {
			readErr = err
			return true
		}
		return r.Key >= key
	})
	if readErr != nil {
		return nil, &Error{Op: "find", Path: t.path, Err: readErr}
	}

	var entries []Entry
	for i := first; i < t.count; i++ {
		r, err := t.recordAt(i, buf)
		if err != nil {
			return nil, &Error{Op: "find", Path: t.path, Err: err}
		}
		if r.Key != key {
			break
		}
		if int(r.Weight) < minWeight {
			continue
		}
		entries = append(entries, Entry{Move: decodeMove(r.Move), Weight: int(r.Weight), Learn: r.Learn})
	}
	return entries, nil
}

// Lookup returns the highest weighted legal move for pos. Among equal
// weights the entry that comes first in the table wins. The boolean is
// false when the table has no usable entry.
func (t *Table) Lookup(pos *chess.Position, minWeight int) (*chess.Move, bool, error) {
	entries, err := t.Find(pos, minWeight)
	if err != nil {
		return nil, false, err
	}

	var (
		best       *chess.Move
		bestWeight = -1
	)
	for _, e := range entries {
		if e.Weight <= bestWeight {
			continue
		}
		m, ok := legalMove(pos, e.Move)
		if !ok {
			t.logger.Warn("opening table entry is not legal in position", "path", t.path, "move", e.Move, "fen", pos.String())
			continue
		}
		best, bestWeight = m, e.Weight
	}
	if best != nil {
		if sl, ok := t.logger.(*logging.StructuredLogger); ok {
			sl.LogBookHit(pos.String(), best.String(), bestWeight)
		}
	}
	return best, best != nil, nil
}

// Close releases the backing file. It is safe to call more than once.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.data = nil
	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return &Error{Op: "close", Path: t.path, Err: err}
		}
	}
	return nil
}

func (t *Table) recordAt(i int, buf []byte) (record, error) {
	if _, err := t.data.ReadAt(buf, int64(i)*recordSize); err != nil {
		return record{}, err
	}
	return readRecord(buf), nil
}

func legalMove(pos *chess.Position, uci string) (*chess.Move, bool) {
	for _, m := range pos.ValidMoves() {
		if m.String() == uci {
			return m, true
		}
	}
	return nil, false
}
