package testutil

import (
	"bytes"
	"sync"
)

// SyncBuffer is a bytes.Buffer that may be written from several goroutines,
// such as a log sink shared by an engine worker and its test.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
