package csound

import (
	"errors"
	"runtime"
	"unsafe"
)

// CircularBuffer is a lock-free ring buffer of samples allocated by the
// engine, safe for one reader and one writer on different threads.
type CircularBuffer struct {
	c      *Csound
	handle unsafe.Pointer
}

// NewCircularBuffer creates a ring buffer holding up to capacity samples.
func (c *Csound) NewCircularBuffer(capacity int) (*CircularBuffer, error) {
	if capacity <= 0 {
		return nil, errors.New("csound: circular buffer capacity must be positive")
	}
	if c.cs == 0 {
		return nil, ErrClosed
	}
	handle := c.api.createCircularBuffer(c.cs, int32(capacity), 8)
	if handle == nil {
		return nil, errors.New("csound: failed to create circular buffer")
	}
	b := &CircularBuffer{c: c, handle: handle}
	runtime.SetFinalizer(b, (*CircularBuffer).Close)
	return b, nil
}

// live reports whether the buffer and its engine are still open. The
// engine frees its buffers when it is destroyed.
func (b *CircularBuffer) live() bool {
	return b.handle != nil && b.c.cs != 0
}

// Write writes samples to the buffer.
// Returns the number of samples actually written.
func (b *CircularBuffer) Write(samples []float64) int {
	if !b.live() || len(samples) == 0 {
		return 0
	}
	return int(b.c.api.writeCircularBuffer(b.c.cs, b.handle,
		unsafe.Pointer(&samples[0]), int32(len(samples))))
}

// Read moves up to len(out) samples from the buffer into out.
// Returns the number of samples read.
func (b *CircularBuffer) Read(out []float64) int {
	if !b.live() || len(out) == 0 {
		return 0
	}
	return int(b.c.api.readCircularBuffer(b.c.cs, b.handle,
		unsafe.Pointer(&out[0]), int32(len(out))))
}

// Peek copies up to len(out) samples without consuming them.
func (b *CircularBuffer) Peek(out []float64) int {
	if !b.live() || len(out) == 0 {
		return 0
	}
	return int(b.c.api.peekCircularBuffer(b.c.cs, b.handle,
		unsafe.Pointer(&out[0]), int32(len(out))))
}

// Flush discards all samples.
func (b *CircularBuffer) Flush() {
	if b.live() {
		b.c.api.flushCircularBuffer(b.c.cs, b.handle)
	}
}

// Close releases the buffer resources.
func (b *CircularBuffer) Close() error {
	if b.handle != nil {
		if b.c.cs != 0 {
			b.c.api.destroyCircularBuffer(b.c.cs, b.handle)
		}
		b.handle = nil
		runtime.SetFinalizer(b, nil)
	}
	return nil
}
