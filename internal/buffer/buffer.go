// Package buffer provides bounded sinks for captured script output.
// A script may print arbitrarily much; these buffers guarantee that the
// retained output never grows past a configured capacity, while staying
// safe to read from one goroutine while another is still writing.
package buffer

import (
	"fmt"
	"io"
)

// Buffer is the contract shared by all bounded output sinks.
// Write never blocks and never fails because of capacity; Close flushes
// any partial state and is idempotent; String returns a human-readable
// reconstruction of the retained output, oldest to newest.
type Buffer interface {
	io.WriteCloser
	fmt.Stringer

	// Len returns the number of retained units (lines or bytes,
	// depending on the strategy).
	Len() int
}

// Strategy selects the bounding behavior of a buffer.
type Strategy string

const (
	// StrategyLines retains the most recent complete lines in a FIFO
	// ring, oldest lines overwritten first.
	StrategyLines Strategy = "lines"

	// StrategyBytes retains the most recent contiguous chunk of bytes,
	// discarding everything older once capacity would be exceeded.
	StrategyBytes Strategy = "bytes"
)

// Options bounds a buffer created by New.
type Options struct {
	// Strategy picks the implementation. Defaults to StrategyLines.
	Strategy Strategy

	// InitialLines is the starting line-slot count for StrategyLines.
	InitialLines int

	// MaxLines is the line-slot cap for StrategyLines.
	MaxLines int

	// MaxBytes is the byte cap for StrategyBytes.
	MaxBytes int
}

// DefaultOptions returns bounds suitable for typical script output.
func DefaultOptions() Options {
	return Options{
		Strategy:     StrategyLines,
		InitialLines: 16,
		MaxLines:     1024,
		MaxBytes:     64 * 1024,
	}
}

// New creates a bounded buffer for the given options.
func New(opts Options) (Buffer, error) {
	switch opts.Strategy {
	case StrategyLines, "":
		return NewLineBuffer(opts.InitialLines, opts.MaxLines)
	case StrategyBytes:
		return NewByteBuffer(opts.MaxBytes)
	default:
		return nil, fmt.Errorf("unknown buffer strategy %q", opts.Strategy)
	}
}
