package util

import (
	"sync"
)

// RingBuffer implements a circular byte buffer for captured PCM data.
//
// Positions are tracked with two monotonically increasing cursors: written is the
// total number of bytes ever pushed, read is the consume position used by Read.
// Both are reduced modulo the capacity only when indexing into buf. When the
// writer laps a slow reader, the oldest bytes are overwritten and the read cursor
// is dragged forward so it never points at more than Cap() bytes of history.
// Overwritten bytes only count as dropped once Read has been called; a ring that
// is only ever snapshotted with ReadLatest loses nothing by wrapping.
type RingBuffer struct {
	sync.RWMutex
	buf       []byte
	written   uint64
	read      uint64
	dropped   uint64
	consuming bool
}

// NewRingBuffer creates a new ring buffer with the given capacity in bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write data onto the ring buffer. It never blocks on readers beyond the short
// critical section; if the buffer is full the oldest unread bytes are overwritten.
// Data longer than the capacity keeps only its trailing Cap() bytes.
func (r *RingBuffer) Write(data []byte) {
	size := uint64(len(r.buf))

	r.Lock()
	defer r.Unlock()

	n := uint64(len(data))
	if n > size {
		r.written += n - size
		data = data[n-size:]
		n = size
	}

	idx := r.written % size
	c := copy(r.buf[idx:], data)
	if uint64(c) < n {
		copy(r.buf, data[c:])
	}
	r.written += n

	if r.written-r.read > size {
		if r.consuming {
			r.dropped += r.written - r.read - size
		}
		r.read = r.written - size
	}
}

// ReadLatest returns a copy of the most recent n bytes, oldest first. Fewer bytes
// are returned if less data has been captured so far; requests above the capacity
// are capped to the full contents. It does not move the read cursor.
func (r *RingBuffer) ReadLatest(n int) []byte {
	if n <= 0 {
		return nil
	}

	r.RLock()
	defer r.RUnlock()

	size := uint64(len(r.buf))
	avail := r.written
	if avail > size {
		avail = size
	}
	m := uint64(n)
	if m > avail {
		m = avail
	}
	if m == 0 {
		return nil
	}
	return r.copyOut(r.written-m, m)
}

// Read consumes unread bytes into p and returns how many were copied. The first
// call attaches the consumer; from then on Dropped counts what it misses.
func (r *RingBuffer) Read(p []byte) int {
	r.Lock()
	defer r.Unlock()

	r.consuming = true

	unread := r.written - r.read
	m := uint64(len(p))
	if m > unread {
		m = unread
	}
	if m == 0 {
		return 0
	}
	copy(p, r.copyOut(r.read, m))
	r.read += m
	return int(m)
}

// copyOut copies m bytes starting at absolute position pos. The caller holds the lock.
func (r *RingBuffer) copyOut(pos, m uint64) []byte {
	size := uint64(len(r.buf))
	ret := make([]byte, m)
	st := pos % size
	c := copy(ret, r.buf[st:])
	if uint64(c) < m {
		copy(ret[c:], r.buf[:m-uint64(c)])
	}
	return ret
}

// Len is the number of bytes currently retained, at most Cap().
func (r *RingBuffer) Len() int {
	r.RLock()
	defer r.RUnlock()
	if r.written > uint64(len(r.buf)) {
		return len(r.buf)
	}
	return int(r.written)
}

// Unread is the number of bytes Read has not consumed yet.
func (r *RingBuffer) Unread() int {
	r.RLock()
	defer r.RUnlock()
	return int(r.written - r.read)
}

// Cap is the fixed capacity in bytes.
func (r *RingBuffer) Cap() int { return len(r.buf) }

// Written is the total number of bytes ever written.
func (r *RingBuffer) Written() uint64 {
	r.RLock()
	defer r.RUnlock()
	return r.written
}

// Dropped is the number of bytes that were overwritten before Read consumed them.
// It stays zero until the first Read.
func (r *RingBuffer) Dropped() uint64 {
	r.RLock()
	defer r.RUnlock()
	return r.dropped
}
