package bufpool

import "bytes"

// Queue is an unbounded FIFO of bytes.
//
// Appends go to the tail and consumption happens from the head by advancing
// an offset. The consumed prefix is reclaimed only when the backing array
// would otherwise have to grow and at least half of it is dead, which keeps
// both Append and Consume amortized O(1) per byte.
//
// Queue is not safe for concurrent use; the owner serializes access.
type Queue struct {
	buf []byte
	off int
}

// Len returns the number of unconsumed bytes.
func (q *Queue) Len() int {
	return len(q.buf) - q.off
}

// Bytes returns the unconsumed bytes. The slice aliases the queue and is
// only valid until the next mutating call.
func (q *Queue) Bytes() []byte {
	return q.buf[q.off:]
}

// Append copies p to the tail of the queue.
func (q *Queue) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if len(q.buf)+len(p) > cap(q.buf) && q.off > 0 && q.off >= len(q.buf)/2 {
		n := copy(q.buf, q.buf[q.off:])
		q.buf = q.buf[:n]
		q.off = 0
	}
	q.buf = append(q.buf, p...)
}

// Consume discards up to n bytes from the head and returns how many were
// discarded.
func (q *Queue) Consume(n int) int {
	if n <= 0 {
		return 0
	}
	if avail := q.Len(); n > avail {
		n = avail
	}
	q.off += n
	if q.off == len(q.buf) {
		q.buf = q.buf[:0]
		q.off = 0
	}
	return n
}

// Next removes the first n bytes from the head and returns a copy of them.
func (q *Queue) Next(n int) []byte {
	if avail := q.Len(); n > avail {
		n = avail
	}
	out := make([]byte, n)
	copy(out, q.buf[q.off:q.off+n])
	q.Consume(n)
	return out
}

// IndexByte returns the offset of the first c in the unconsumed bytes, or -1.
func (q *Queue) IndexByte(c byte) int {
	return bytes.IndexByte(q.buf[q.off:], c)
}

// Snapshot returns a copy of the unconsumed bytes.
func (q *Queue) Snapshot() []byte {
	out := make([]byte, q.Len())
	copy(out, q.buf[q.off:])
	return out
}

// Reset empties the queue and releases the backing array.
func (q *Queue) Reset() {
	q.buf = nil
	q.off = 0
}
