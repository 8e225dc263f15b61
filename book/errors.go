package book

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt is returned when a table file fails header or checksum validation.
	ErrCorrupt = errors.New("opening table corrupt")

	// ErrClosed is returned by queries issued after Close.
	ErrClosed = errors.New("opening table closed")

	// ErrInvalidMove is returned when a move cannot be encoded in a record.
	ErrInvalidMove = errors.New("invalid book move")
)

// Error describes a failed table operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("opening table %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("opening table %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
