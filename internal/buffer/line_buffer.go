package buffer

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// ErrInvalidCapacity is returned when buffer bounds are not usable.
var ErrInvalidCapacity = errors.New("invalid buffer capacity")

// LineBuffer is a bounded FIFO ring of output lines. It starts with a
// small number of line slots and doubles as it fills, capped at a maximum
// line count; once at the cap, a new line overwrites the oldest one.
// Bytes are accumulated until a newline completes a line; Close flushes a
// trailing partial line so nothing written is silently dropped.
//
// All operations hold the buffer's mutex, because the executing goroutine
// writes while querying goroutines read.
type LineBuffer struct {
	mu       sync.Mutex
	slots    []string
	head     int // index of the oldest retained line
	count    int // number of retained lines
	maxLines int
	pending  bytes.Buffer // bytes of the current, unterminated line
	closed   bool
}

// NewLineBuffer creates a LineBuffer that grows from initialLines slots
// up to maxLines.
func NewLineBuffer(initialLines, maxLines int) (*LineBuffer, error) {
	if initialLines <= 0 || maxLines <= 0 || initialLines > maxLines {
		return nil, ErrInvalidCapacity
	}

	return &LineBuffer{
		slots:    make([]string, initialLines),
		maxLines: maxLines,
	}, nil
}

// Write accumulates bytes, storing a line into the ring each time a
// newline is seen. It never blocks and never fails for capacity reasons.
func (b *LineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		if c == '\n' {
			b.flushPending()
		} else {
			b.pending.WriteByte(c)
		}
	}

	return len(p), nil
}

// Close flushes a trailing partial line, if any. Closing more than once
// is harmless.
func (b *LineBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.flushPending()
		b.closed = true
	}

	return nil
}

// Len returns the number of retained lines.
func (b *LineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// String reconstructs the retained output, oldest line first, each line
// followed by a newline.
func (b *LineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	for i := 0; i < b.count; i++ {
		sb.WriteString(b.slots[(b.head+i)%len(b.slots)])
		sb.WriteByte('\n')
	}

	return sb.String()
}

// flushPending turns the accumulated partial bytes into a stored line.
// Caller must hold b.mu.
func (b *LineBuffer) flushPending() {
	if b.pending.Len() == 0 {
		return
	}

	b.storeLine(b.pending.String())
	b.pending.Reset()
}

// storeLine appends a line to the ring, doubling the slot count until the
// cap is reached and overwriting the oldest line afterwards.
// Caller must hold b.mu.
func (b *LineBuffer) storeLine(line string) {
	if b.count == len(b.slots) && len(b.slots) < b.maxLines {
		b.grow()
	}

	if b.count == len(b.slots) {
		// At the cap: the oldest line gives way.
		b.slots[b.head] = line
		b.head = (b.head + 1) % len(b.slots)
		return
	}

	b.slots[(b.head+b.count)%len(b.slots)] = line
	b.count++
}

// grow doubles the slot count, capped at maxLines, preserving order.
// Caller must hold b.mu.
func (b *LineBuffer) grow() {
	newCap := len(b.slots) * 2
	if newCap > b.maxLines {
		newCap = b.maxLines
	}

	next := make([]string, newCap)
	for i := 0; i < b.count; i++ {
		next[i] = b.slots[(b.head+i)%len(b.slots)]
	}

	b.slots = next
	b.head = 0
}
