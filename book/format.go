package book

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/notnil/chess"
)

const (
	magic        = "CBBK"
	version      = 1
	headerSize   = 32
	recordSize   = 16
	flagZstd     = 1 << 0
	maxWeight    = 1<<16 - 1
	promoPieces  = " nbrq"
	fileLetters  = "abcdefgh"
	rankLetters  = "12345678"
	fenKeyFields = 4

	// maxInflated bounds the payload of a compressed table, which is held
	// in memory once loaded.
	maxInflated = 256 << 20
)

type header struct {
	Version uint16
	Flags   uint16
	Count   uint32
	RawSize uint32
	CRC     uint32
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint32(buf[8:12], h.Count)
	binary.BigEndian.PutUint32(buf[12:16], h.RawSize)
	binary.BigEndian.PutUint32(buf[16:20], h.CRC)
	return buf
}

func decodeHeader(data []byte) (header, error) {
	if len(data) < headerSize {
		return header{}, fmt.Errorf("%w: header too short: %d bytes", ErrCorrupt, len(data))
	}
	if string(data[0:4]) != magic {
		return header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}
	h := header{
		Version: binary.BigEndian.Uint16(data[4:6]),
		Flags:   binary.BigEndian.Uint16(data[6:8]),
		Count:   binary.BigEndian.Uint32(data[8:12]),
		RawSize: binary.BigEndian.Uint32(data[12:16]),
		CRC:     binary.BigEndian.Uint32(data[16:20]),
	}
	if h.Version != version {
		return header{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if uint64(h.Count)*recordSize != uint64(h.RawSize) {
		return header{}, fmt.Errorf("%w: %d records do not fill %d bytes", ErrCorrupt, h.Count, h.RawSize)
	}
	return h, nil
}

type record struct {
	Key    uint64
	Move   uint16
	Weight uint16
	Learn  uint32
}

func putRecord(buf []byte, r record) {
	binary.BigEndian.PutUint64(buf[0:8], r.Key)
	binary.BigEndian.PutUint16(buf[8:10], r.Move)
	binary.BigEndian.PutUint16(buf[10:12], r.Weight)
	binary.BigEndian.PutUint32(buf[12:16], r.Learn)
}

func readRecord(buf []byte) record {
	return record{
		Key:    binary.BigEndian.Uint64(buf[0:8]),
		Move:   binary.BigEndian.Uint16(buf[8:10]),
		Weight: binary.BigEndian.Uint16(buf[10:12]),
		Learn:  binary.BigEndian.Uint32(buf[12:16]),
	}
}

// PositionKey returns the table key of pos.
func PositionKey(pos *chess.Position) uint64 {
	return fenKey(pos.String())
}

func fenKey(fen string) uint64 {
	fields := strings.Fields(fen)
	if len(fields) > fenKeyFields {
		fields = fields[:fenKeyFields]
	}
	return xxhash.Sum64String(strings.Join(fields, " "))
}

// encodeMove packs a UCI move such as "e7e8q" into 15 bits:
// to file, to rank, from file, from rank, promotion piece (3 bits each).
func encodeMove(uci string) (uint16, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMove, uci)
	}
	idx := func(set string, c byte) (uint16, error) {
		i := strings.IndexByte(set, c)
		if i < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMove, uci)
		}
		return uint16(i), nil
	}
	var parts [4]uint16
	sets := [4]string{fileLetters, rankLetters, fileLetters, rankLetters}
	for i := range parts {
		v, err := idx(sets[i], uci[i])
		if err != nil {
			return 0, err
		}
		parts[i] = v
	}
	var promo uint16
	if len(uci) == 5 {
		p := strings.IndexByte(promoPieces, uci[4])
		if p <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMove, uci)
		}
		promo = uint16(p)
	}
	return parts[2] | parts[3]<<3 | parts[0]<<6 | parts[1]<<9 | promo<<12, nil
}

func decodeMove(m uint16) string {
	toFile := m & 7
	toRank := (m >> 3) & 7
	fromFile := (m >> 6) & 7
	fromRank := (m >> 9) & 7
	promo := (m >> 12) & 7

	var sb strings.Builder
	sb.WriteByte(fileLetters[fromFile])
	sb.WriteByte(rankLetters[fromRank])
	sb.WriteByte(fileLetters[toFile])
	sb.WriteByte(rankLetters[toRank])
	if promo > 0 && int(promo) < len(promoPieces) {
		sb.WriteByte(promoPieces[promo])
	}
	return sb.String()
}
