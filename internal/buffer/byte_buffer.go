package buffer

import (
	"bytes"
	"sync"
)

// ByteBuffer is a bounded byte window with last-write-wins semantics:
// once accumulated output would exceed the capacity, the buffer is
// cleared and the new write becomes the content. A single write larger
// than the capacity is clamped to its leading capacity bytes.
type ByteBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	maxBytes int
	closed   bool
}

// NewByteBuffer creates a ByteBuffer retaining at most maxBytes bytes.
func NewByteBuffer(maxBytes int) (*ByteBuffer, error) {
	if maxBytes <= 0 {
		return nil, ErrInvalidCapacity
	}

	return &ByteBuffer{maxBytes: maxBytes}, nil
}

// Write appends bytes, discarding older content once the window would
// overflow. It never blocks and never fails for capacity reasons.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.buf.Len()+len(p) <= b.maxBytes:
		b.buf.Write(p)
	case len(p) <= b.maxBytes:
		b.buf.Reset()
		b.buf.Write(p)
	default:
		b.buf.Reset()
		b.buf.Write(p[:b.maxBytes])
	}

	return len(p), nil
}

// Close marks the buffer closed. The byte window keeps no partial state,
// so there is nothing to flush.
func (b *ByteBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}

// Len returns the number of retained bytes.
func (b *ByteBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Len()
}

// String returns the retained bytes as text.
func (b *ByteBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
