// Package ringbuf provides a fixed capacity byte ring with a single write
// cursor. Writers never block: once the ring is full every new byte
// overwrites the oldest one.
//
// Reads are addressed logically, where index 0 is the oldest byte still held
// and Cap()-1 is the newest. Bytes that were never written read as zero.
package ringbuf

// Ring is a fixed capacity circular byte store. It is not safe for concurrent
// use; each ring belongs to exactly one parser.
type Ring struct {
	buf     []byte
	w       int    // next physical write position, also the oldest byte
	written uint64 // total bytes ever written
}

// New returns a zeroed ring with the given capacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of logically valid bytes, which never exceeds Cap.
func (r *Ring) Len() int {
	if r.written < uint64(len(r.buf)) {
		return int(r.written)
	}
	return len(r.buf)
}

// Written returns the total number of bytes ever written.
func (r *Ring) Written() uint64 { return r.written }

// Write appends p, overwriting the oldest bytes when the ring is full. It
// always consumes all of p and never returns an error.
func (r *Ring) Write(p []byte) (int, error) {
	n := len(p)
	if n > len(r.buf) {
		// Only the newest Cap bytes can survive.
		skip := n - len(r.buf)
		r.w = (r.w + skip) % len(r.buf)
		r.written += uint64(skip)
		p = p[skip:]
	}
	for len(p) > 0 {
		c := copy(r.buf[r.w:], p)
		p = p[c:]
		r.w = (r.w + c) % len(r.buf)
		r.written += uint64(c)
	}
	return n, nil
}

// WriteByte appends a single byte.
func (r *Ring) WriteByte(b byte) error {
	r.buf[r.w] = b
	r.w = (r.w + 1) % len(r.buf)
	r.written++
	return nil
}

func (r *Ring) phys(i int) int {
	return (r.w + i) % len(r.buf)
}

// At returns the byte at logical index i. Indexes outside [0, Cap) wrap.
func (r *Ring) At(i int) byte {
	return r.buf[r.phys(i)]
}

// Read copies n bytes starting at logical index i into dst, growing it as
// needed, and returns the result.
func (r *Ring) Read(dst []byte, i, n int) []byte {
	dst = dst[:0]
	for k := 0; k < n; k++ {
		dst = append(dst, r.buf[r.phys(i+k)])
	}
	return dst
}

// Zero overwrites n bytes starting at logical index i with zero.
func (r *Ring) Zero(i, n int) {
	for k := 0; k < n; k++ {
		r.buf[r.phys(i+k)] = 0
	}
}

// Reset zeroes the ring and rewinds the cursor.
func (r *Ring) Reset() {
	clear(r.buf)
	r.w = 0
	r.written = 0
}
