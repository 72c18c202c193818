package modem

// response accumulates module output for the command in flight.
type response struct {
	buf [ResultBufferLen]byte
	n   int
}

func (r *response) append(c byte) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[r.n] = c
	r.n++
	return true
}

// bytes aliases the buffer; it is only valid until the next mutation.
func (r *response) bytes() []byte {
	return r.buf[:r.n]
}

func (r *response) truncate(n int) {
	if n >= 0 && n < r.n {
		r.n = n
	}
}

// cut removes buf[from:to].
func (r *response) cut(from, to int) {
	if from < 0 || to > r.n || from >= to {
		return
	}
	r.n = from + copy(r.buf[from:r.n], r.buf[to:r.n])
}

func (r *response) reset() {
	r.n = 0
}
