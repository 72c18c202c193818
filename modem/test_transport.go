package modem

import (
	"context"
	"io"
	"sync"
	"time"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the read loop continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
//
// Writes are recorded. A write that equals the next expected command queues
// its scripted reply for reading. TestTransport dials itself.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	writes   []string
	script   []exchange
	written  chan string

	// rest is the part of a chunk that did not fit the last read; only
	// the reader touches it
	rest []byte
}

type exchange struct {
	cmd   string
	reply string
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
		written:  make(chan string, 64),
	}
}

// Dial returns the transport itself.
func (t *TestTransport) Dial(context.Context) (Transport, error) {
	return t, nil
}

// Expect scripts reply to be sent once cmd is written. Expectations are
// consumed in order; an empty reply keeps the module silent.
func (t *TestTransport) Expect(cmd, reply string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, exchange{cmd: cmd, reply: reply})
	return t
}

// ExpectInit scripts the exchange New runs against a module in single
// connection mode.
func (t *TestTransport) ExpectInit() *TestTransport {
	return t.
		Expect("ATE0\r\n", "ATE0\r\r\n\r\nOK\r\n").
		Expect("AT\r\n", "\r\nOK\r\n").
		Expect("AT+CIPMUX?\r\n", "+CIPMUX:0\r\n\r\nOK\r\n")
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	w := string(p)
	t.writes = append(t.writes, w)
	if len(t.script) > 0 && t.script[0].cmd == w {
		reply := t.script[0].reply
		t.script = t.script[1:]
		if reply != "" {
			t.readChan <- []byte(reply)
		}
	}
	select {
	case t.written <- w:
	default:
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.rest) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.rest = data
	}
	n = copy(p, t.rest)
	t.rest = t.rest[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the module.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns everything written so far, one entry per Write call.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// WaitWrite returns the next write, or false when none happens within d.
func (t *TestTransport) WaitWrite(d time.Duration) (string, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case w := <-t.written:
		return w, true
	case <-timer.C:
		return "", false
	}
}

// Unmet returns the number of scripted commands not written yet.
func (t *TestTransport) Unmet() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.script)
}
