// Package book implements the opening table: a binary, weighted move table
// keyed by position that is loaded once and queried read-only.
//
// File layout (big endian):
//
//	header  32 bytes: magic "CBBK", version, flags, record count,
//	        payload size, crc32 of the payload, reserved
//	payload count x 16 byte records: key uint64, move uint16,
//	        weight uint16, learn uint32
//
// Records are sorted by key. Records sharing a key keep the order in which
// they were added to the Writer, and that order breaks ties between equally
// weighted moves. The key is the xxhash64 of the first four FEN fields, so
// move counters do not split otherwise identical positions.
//
// When the compressed flag is set the payload is a single zstd frame and the
// table is decoded into memory at Open. Otherwise records are read directly
// from the open file, which Close releases.
package book
