package book

import (
	"bytes"
	"cmp"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"slices"

	"github.com/klauspost/compress/zstd"
	"github.com/notnil/chess"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Compress stores the payload as a zstd frame.
	Compress bool
}

type entryKey struct {
	key  uint64
	move uint16
}

// Writer accumulates (position, move, weight) entries and serializes them
// as a table file. Adding the same move for the same position again adds
// to its weight, saturating at 65535.
type Writer struct {
	opts    WriterOptions
	records []record
	index   map[entryKey]int
}

// NewWriter creates an empty Writer.
func NewWriter(optFns ...func(o *WriterOptions)) *Writer {
	var opts WriterOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Writer{opts: opts, index: make(map[entryKey]int)}
}

// Add records move m played from pos with the given weight.
func (w *Writer) Add(pos *chess.Position, m *chess.Move, weight int) error {
	if weight <= 0 {
		return fmt.Errorf("%w: non-positive weight %d", ErrInvalidMove, weight)
	}
	enc, err := encodeMove(chess.UCINotation{}.Encode(pos, m))
	if err != nil {
		return err
	}
	k := entryKey{key: PositionKey(pos), move: enc}
	if i, ok := w.index[k]; ok {
		w.records[i].Weight = uint16(min(int(w.records[i].Weight)+weight, maxWeight))
		return nil
	}
	w.index[k] = len(w.records)
	w.records = append(w.records, record{Key: k.key, Move: enc, Weight: uint16(min(weight, maxWeight))})
	return nil
}

// Len returns the number of distinct entries added so far.
func (w *Writer) Len() int { return len(w.records) }

// WriteTo serializes the table to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	sorted := slices.Clone(w.records)
	slices.SortStableFunc(sorted, func(a, b record) int { return cmp.Compare(a.Key, b.Key) })

	raw := make([]byte, len(sorted)*recordSize)
	for i, r := range sorted {
		putRecord(raw[i*recordSize:], r)
	}

	h := header{
		Version: version,
		Count:   uint32(len(sorted)),
		RawSize: uint32(len(raw)),
		CRC:     crc32.ChecksumIEEE(raw),
	}

	payload := raw
	if w.opts.Compress {
		if len(raw) > maxInflated {
			return 0, fmt.Errorf("book: %d bytes exceed the compressed table limit of %d", len(raw), maxInflated)
		}
		h.Flags |= flagZstd
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return 0, err
		}
		payload = enc.EncodeAll(raw, nil)
		if err := enc.Close(); err != nil {
			return 0, err
		}
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(payload))
	buf.Write(encodeHeader(h))
	buf.Write(payload)
	return buf.WriteTo(out)
}

// WriteFile writes the table to path, replacing any existing file.
func (w *Writer) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	return nil
}
