package modem

// Ring is a fixed capacity FIFO of passthrough bytes. It is not safe for
// concurrent use; the Modem guards its ring with the driver lock.
type Ring struct {
	buf   []byte
	read  int
	count int
}

// NewRing creates a Ring holding up to capacity bytes.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the number of bytes
// stored. Bytes that do not fit are dropped.
func (r *Ring) Write(data []byte) int {
	written := 0
	for _, b := range data {
		if r.count == len(r.buf) {
			break
		}
		r.buf[(r.read+r.count)%len(r.buf)] = b
		r.count++
		written++
	}
	return written
}

// Read moves up to len(p) bytes out of the ring.
func (r *Ring) Read(p []byte) int {
	n := 0
	for n < len(p) && r.count > 0 {
		p[n] = r.buf[r.read]
		r.read = (r.read + 1) % len(r.buf)
		r.count--
		n++
	}
	return n
}

func (r *Ring) Len() int {
	return r.count
}

// Free returns the remaining capacity.
func (r *Ring) Free() int {
	return len(r.buf) - r.count
}

func (r *Ring) Reset() {
	r.read = 0
	r.count = 0
}
