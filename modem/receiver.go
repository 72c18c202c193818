package modem

import (
	"i4.energy/across/espgw/at"
)

// Mode is the receive mode of the driver.
type Mode int

const (
	// ModeCommand scans module messages for terminators, prompts and
	// inbound data headers.
	ModeCommand Mode = iota
	// ModePayload copies the payload announced by +IPD into the
	// destination buffer.
	ModePayload
	// ModePassthrough stages every byte in the passthrough ring.
	ModePassthrough
)

func (m Mode) String() string {
	switch m {
	case ModeCommand:
		return "command"
	case ModePayload:
		return "payload"
	case ModePassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Status of the command in flight.
type Status int

const (
	StatusAwaiting Status = iota
	StatusAvailable
	StatusError
	StatusOverflow
)

func (s Status) String() string {
	switch s {
	case StatusAwaiting:
		return "awaiting"
	case StatusAvailable:
		return "available"
	case StatusError:
		return "error"
	case StatusOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	eventNone eventKind = iota
	eventStatus
	eventLine
	eventPrompt
	eventData
	eventDropped
	eventClosed
)

// event tells the read loop what feeding a byte produced.
type event struct {
	kind eventKind
	conn int
	n    int
}

// receiver is the byte level state machine. Every method is called with
// the driver lock held.
type receiver struct {
	mode        Mode
	status      Status
	resp        response
	matcher     at.Matcher
	multiplexed bool
	conns       connTable
	awaitPrompt bool
	// unvarnished is set once AT+CIPMODE=1 succeeded; the receive mode
	// only turns to ModePassthrough after the AT+CIPSEND prompt.
	unvarnished bool

	// dest receives payload; delivered is the byte count of the last
	// completed chunk. staged replaces dest at the next chunk boundary.
	dest      []byte
	staged    []byte
	hasStaged bool
	delivered int

	conn    int // link of the payload being read
	pending int // payload bytes not yet assigned to a chunk
	chunk   int // size of the current chunk
	fill    int // bytes of the current chunk received
	discard bool

	ring    *Ring
	dropped int
}

func newReceiver(dest []byte, ringSize int) *receiver {
	return &receiver{
		conns: newConnTable(),
		dest:  dest,
		ring:  NewRing(ringSize),
	}
}

// remaining returns the payload bytes still expected from the module.
func (r *receiver) remaining() int {
	if r.mode != ModePayload {
		return 0
	}
	return r.pending + r.chunk - r.fill
}

func (r *receiver) env() at.Env {
	return at.Env{Multiplexed: r.multiplexed, Kind: r.conns.kind}
}

// dispatch prepares for a new command: the response buffer is emptied,
// the matcher cleared and the status set to awaiting.
func (r *receiver) dispatch(awaitPrompt bool) {
	r.status = StatusAwaiting
	r.resp.reset()
	r.matcher.Reset()
	r.awaitPrompt = awaitPrompt
}

// take returns a copy of the response and empties the buffer.
func (r *receiver) take() []byte {
	out := append([]byte(nil), r.resp.bytes()...)
	r.resp.reset()
	r.matcher.Reset()
	return out
}

// rebooted forgets the state the module loses on reset.
func (r *receiver) rebooted() {
	r.mode = ModeCommand
	r.multiplexed = false
	r.unvarnished = false
	r.conns = newConnTable()
	r.pending, r.chunk, r.fill = 0, 0, 0
	r.ring.Reset()
	r.dispatch(false)
}

// replaceBuffer installs buf as the destination buffer and returns the
// previous one with the length of its last delivery. While a chunk is
// being filled the swap is deferred to the next chunk boundary; the most
// recent call wins.
func (r *receiver) replaceBuffer(buf []byte) ([]byte, int) {
	if r.mode == ModePayload && r.fill > 0 && r.fill < r.chunk {
		if r.hasStaged {
			// the earlier staged buffer never received data
			prev := r.staged
			r.staged = buf
			return prev, 0
		}
		r.staged, r.hasStaged = buf, true
		return r.dest, r.delivered
	}
	prev, n := r.dest, r.delivered
	r.dest, r.delivered = buf, 0
	r.staged, r.hasStaged = nil, false
	return prev, n
}

func (r *receiver) feed(c byte) event {
	switch r.mode {
	case ModePayload:
		return r.feedPayload(c)
	case ModePassthrough:
		return r.feedPassthrough(c)
	default:
		return r.feedCommand(c)
	}
}

func (r *receiver) feedCommand(c byte) event {
	if c == ':' {
		if h, ok := at.ParseIPD(r.resp.bytes(), r.multiplexed); ok {
			r.beginPayload(h)
			return event{}
		}
	}
	if c == '>' && r.awaitPrompt {
		r.awaitPrompt = false
		return event{kind: eventPrompt}
	}

	if !r.resp.append(c) {
		if r.status == StatusOverflow {
			return event{}
		}
		r.status = StatusOverflow
		return event{kind: eventStatus}
	}

	p, ok := r.matcher.Feed(c)
	if !ok {
		if c == '\n' {
			return event{kind: eventLine}
		}
		return event{}
	}
	r.resp.truncate(r.resp.n - p.Len())

	switch p {
	case at.PatternError:
		r.status = StatusError
	case at.PatternOK, at.PatternSendOK:
		r.status = StatusAvailable
	case at.PatternClosed:
		id := r.closedConn()
		if id < 0 {
			return event{}
		}
		r.conns.close(id)
		return event{kind: eventClosed, conn: id}
	}
	return event{kind: eventStatus}
}

// closedConn returns the link a CLOSED notice refers to. In multiplexed
// mode the notice reads "<id>,CLOSED" and the id is removed from the
// buffer; -1 means no id was found.
func (r *receiver) closedConn() int {
	if !r.multiplexed {
		return 0
	}
	b := r.resp.bytes()
	if len(b) < 2 || b[len(b)-1] != ',' {
		return -1
	}
	d := b[len(b)-2]
	if d < '0' || d > '9' || int(d-'0') >= at.MaxConnections {
		return -1
	}
	r.resp.truncate(len(b) - 2)
	return int(d - '0')
}

func (r *receiver) beginPayload(h at.IPDHeader) {
	r.resp.truncate(h.Trim)
	r.matcher.Resync(r.resp.bytes())
	r.conn = h.Conn
	r.pending = h.Length
	r.chunk, r.fill = 0, 0
	r.mode = ModePayload
}

// nextChunk sizes the next chunk from the buffer installed now, which may
// have been swapped by the data callback since the last chunk.
func (r *receiver) nextChunk() {
	if r.hasStaged {
		r.dest, r.staged, r.hasStaged = r.staged, nil, false
		r.delivered = 0
	}
	r.discard = len(r.dest) == 0
	if r.discard {
		r.chunk = r.pending
	} else {
		r.chunk = min(len(r.dest), r.pending)
	}
	r.pending -= r.chunk
	r.fill = 0
}

func (r *receiver) feedPayload(c byte) event {
	if r.fill == r.chunk {
		r.nextChunk()
	}
	if !r.discard {
		r.dest[r.fill] = c
	}
	r.fill++
	if r.fill < r.chunk {
		return event{}
	}

	if r.pending == 0 {
		r.mode = ModeCommand
	}
	if r.discard {
		return event{kind: eventDropped, conn: r.conn, n: r.chunk}
	}
	r.delivered = r.chunk
	return event{kind: eventData, conn: r.conn, n: r.chunk}
}

func (r *receiver) feedPassthrough(c byte) event {
	if c == '>' && r.awaitPrompt {
		r.awaitPrompt = false
		return event{kind: eventPrompt}
	}
	if r.ring.Write([]byte{c}) == 0 {
		r.dropped++
		return event{kind: eventDropped, n: 1}
	}
	return event{kind: eventData, n: r.ring.Len()}
}
