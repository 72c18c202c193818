package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/espgw/at"
)

// closeGrace bounds how long Close waits for the read loop to stop.
const closeGrace = time.Second

// readChunk is the size of a single transport read.
const readChunk = 256

// Modem drives an ESP8266 style WiFi module over AT commands.
//
// A single read loop goroutine, started by New, is the only reader of the
// transport. It feeds every byte through the receive state machine, which
// recognizes command terminators, inbound data headers and the send prompt.
// Exec writes a command and blocks until the read loop reports a
// terminator or the command deadline passes. Commands are serialized; at
// most one is in flight.
type Modem struct {
	// transport provides the physical connection to the module
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	// exec serializes callers; held for the whole exchange of a command
	exec sync.Mutex
	// cmdBuf holds the rendered command line; guarded by exec
	cmdBuf [at.MaxCommandLen]byte

	// mu guards everything below and is taken by the read loop for every
	// byte it feeds
	mu      sync.Mutex
	rx      *receiver
	closed  bool
	loopErr error

	// wake is signalled by the read loop whenever the state a waiting
	// command may depend on changed
	wake chan struct{}
	// done is closed when the read loop returns
	done chan struct{}
}

// New creates a new Modem instance with the given configuration.
// It dials the transport, starts the read loop and initializes the module:
// echo is disabled, the module is probed with AT and the connection mode
// is read back with AT+CIPMUX?.
//
// Returns an error if the transport connection or module initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		config:    config,
		logger:    config.logger.With("component", "modem"),
		rx:        newReceiver(config.buffer, config.ringSize),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go m.readLoop()

	initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
	defer cancel()
	if err := m.init(initCtx); err != nil {
		m.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	m.logger.Info("module initialized", "multiplexed", m.Multiplexed())
	return m, nil
}

// init performs the initial setup sequence for the module.
func (m *Modem) init(ctx context.Context) error {
	if err := m.echoOff(ctx); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	if _, err := m.Exec(ctx, at.Attention, at.OpExecute, nil); err != nil {
		return fmt.Errorf("module not responding: %w", err)
	}

	resp, err := m.Exec(ctx, at.Mux, at.OpQuery, nil)
	if err != nil {
		return fmt.Errorf("query connection mode: %w", err)
	}
	mux, ok := at.QueryInt(resp, "+CIPMUX:")
	if !ok {
		return fmt.Errorf("unexpected connection mode response: %q", resp)
	}

	m.mu.Lock()
	m.rx.multiplexed = mux == int(at.MultipleConnections)
	m.mu.Unlock()
	return nil
}

// readLoop feeds every byte read from the transport through the receiver
// until the transport fails or is closed.
func (m *Modem) readLoop() {
	defer close(m.done)

	buf := make([]byte, readChunk)
	for {
		n, err := m.transport.Read(buf)
		for _, c := range buf[:n] {
			m.receive(c)
		}
		if err == nil {
			continue
		}

		m.mu.Lock()
		m.loopErr = err
		closed := m.closed
		m.mu.Unlock()
		m.signal()

		if !closed && !errors.Is(err, io.EOF) {
			m.logger.Error("read loop stopped", "error", err)
		}
		return
	}
}

// receive feeds c through the receiver and acts on the result. The data
// callback runs without the lock so that it may call ReplaceBuffer.
func (m *Modem) receive(c byte) {
	m.mu.Lock()
	ev := m.rx.feed(c)
	m.mu.Unlock()

	switch ev.kind {
	case eventStatus, eventLine, eventPrompt:
		m.signal()
	case eventData:
		if m.config.onData != nil {
			m.config.onData(ev.conn, ev.n)
		}
	case eventDropped:
		m.logger.Warn("inbound data dropped", "conn", ev.conn, "bytes", ev.n)
	case eventClosed:
		m.logger.Warn("connection closed by peer", "conn", ev.conn)
		m.signal()
	}
}

func (m *Modem) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// await blocks until cond holds for the receiver, ctx ends or the read
// loop stops. cond is evaluated with the lock held.
func (m *Modem) await(ctx context.Context, cond func(*receiver) bool) error {
	for {
		m.mu.Lock()
		ok, closed, loopErr := cond(m.rx), m.closed, m.loopErr
		m.mu.Unlock()

		switch {
		case ok:
			return nil
		case closed:
			return ErrAlreadyClosed
		case loopErr != nil:
			return fmt.Errorf("read loop stopped: %w", loopErr)
		}

		select {
		case <-m.wake:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
			}
			return ctx.Err()
		}
	}
}

func responded(r *receiver) bool {
	return r.status != StatusAwaiting
}

func prompted(r *receiver) bool {
	return !r.awaitPrompt || r.status == StatusError || r.status == StatusOverflow
}

// Exec sends cmd with the given operation and waits for the module's
// terminator. params are required for OpSet and ignored otherwise.
//
// On success the response text, with the terminator removed, is returned.
// A module ERROR is reported as ErrCommandFailed carrying the response
// text; no terminator within the AT timeout as ErrTimeout.
//
// AT+RST waits for the module to reboot and disables echo again. A set of
// AT+CIPSEND writes the data after the module's prompt and waits for
// SEND OK. An execute of AT+CIPSEND enters raw passthrough, see
// EnterPassthrough.
func (m *Modem) Exec(ctx context.Context, cmd at.Command, op at.Op, params at.Params) ([]byte, error) {
	m.exec.Lock()
	defer m.exec.Unlock()
	return m.run(ctx, cmd, op, params)
}

func (m *Modem) run(ctx context.Context, cmd at.Command, op at.Op, params at.Params) ([]byte, error) {
	if err := m.usable(); err != nil {
		return nil, err
	}
	if !cmd.Allows(op) {
		return nil, fmt.Errorf("%w: %v %v", ErrOpNotAllowed, cmd, op)
	}
	if cmd == at.DeepSleep {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, cmd)
	}

	m.mu.Lock()
	line, err := m.prepare(cmd, op, params)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	switch {
	case cmd == at.Reset:
		return nil, m.reset(ctx, line)
	case cmd == at.Send && op == at.OpExecute:
		return nil, m.enterSend(ctx, line)
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.atTimeout)
	defer cancel()

	var payload []byte
	send, isSend := params.(at.SendParams)
	isSend = isSend && op == at.OpSet
	if isSend {
		payload = send.Data
	}
	if err := m.roundTrip(ctx, cmd.String(), line, payload, isSend); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.commit(cmd, op, params)
	m.mu.Unlock()

	if cmd == at.QuitAP {
		if err := m.awaitDisconnect(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.take(), nil
}

// prepare checks cmd against the driver state and renders it into cmdBuf.
// Called with the lock held.
func (m *Modem) prepare(cmd at.Command, op at.Op, params at.Params) ([]byte, error) {
	r := m.rx
	sendExec := cmd == at.Send && op == at.OpExecute

	if r.unvarnished || r.mode == ModePassthrough {
		switch {
		case setsTransportMode(cmd, op, params, at.NormalMode):
			r.mode = ModeCommand
		case sendExec && r.mode != ModePassthrough:
		default:
			return nil, fmt.Errorf("%w: %v", ErrPassthroughActive, cmd)
		}
	}

	switch {
	case sendExec && !r.unvarnished:
		return nil, fmt.Errorf("%w: transport mode is normal", ErrPassthroughNotAllowed)
	case sendExec, setsTransportMode(cmd, op, params, at.UnvarnishedMode):
		if !r.conns.passthroughReady(r.multiplexed) {
			return nil, ErrPassthroughNotAllowed
		}
	}

	if op == at.OpSet {
		if err := m.checkConn(cmd, params); err != nil {
			return nil, err
		}
	}

	line, err := at.Format(&m.cmdBuf, cmd, op, params, r.env())
	if err != nil {
		return nil, fmt.Errorf("format %v: %w", cmd, err)
	}
	return line, nil
}

// checkConn validates the link a set operation refers to.
func (m *Modem) checkConn(cmd at.Command, params at.Params) error {
	id, limit := 0, at.MaxConnections
	switch p := params.(type) {
	case at.ConnParams:
		id = p.Conn(m.rx.multiplexed)
	case at.SendParams:
		if m.rx.multiplexed {
			id = p.ID
		}
	case at.CloseParams:
		id, limit = p.ID, at.AllConnections+1
	case nil:
		return nil
	default:
		if cmd == at.Send {
			return fmt.Errorf("format %v: %w", cmd, at.ErrParamsMismatch)
		}
		return nil
	}
	if id < 0 || id >= limit {
		return fmt.Errorf("%w: %d", ErrInvalidConn, id)
	}
	return nil
}

func setsTransportMode(cmd at.Command, op at.Op, params at.Params, mode at.TransportModeParam) bool {
	v, ok := params.(at.TransportModeParam)
	return cmd == at.TransportMode && op == at.OpSet && ok && v == mode
}

// roundTrip writes line and waits for its terminator. With prompt set the
// payload is written once the module shows the send prompt. On success the
// response is left in the buffer.
func (m *Modem) roundTrip(ctx context.Context, name string, line, payload []byte, prompt bool) error {
	m.mu.Lock()
	m.rx.dispatch(prompt)
	m.mu.Unlock()

	m.logger.Debug("sending command", "command", name)
	if err := m.write(line); err != nil {
		return err
	}

	if prompt {
		if err := m.await(ctx, prompted); err != nil {
			return fmt.Errorf("%s: waiting for prompt: %w", name, err)
		}
		m.mu.Lock()
		failed := m.rx.status == StatusError || m.rx.status == StatusOverflow
		if !failed {
			m.rx.status = StatusAwaiting
		}
		m.mu.Unlock()
		if !failed {
			if err := m.write(payload); err != nil {
				return err
			}
		}
	}

	if err := m.await(ctx, responded); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	m.mu.Lock()
	status := m.rx.status
	var resp []byte
	if status != StatusAvailable {
		resp = m.rx.take()
	}
	m.mu.Unlock()

	switch status {
	case StatusError:
		return fmt.Errorf("%w: %s: %s", ErrCommandFailed, name, bytes.TrimSpace(resp))
	case StatusOverflow:
		return fmt.Errorf("%w: %s", ErrOverflow, name)
	}
	return nil
}

// commit applies the effect of a successful command to the driver state.
// Called with the lock held.
func (m *Modem) commit(cmd at.Command, op at.Op, params at.Params) {
	r := m.rx
	switch cmd {
	case at.Mux:
		if v, ok := params.(at.MuxMode); ok && op == at.OpSet {
			r.multiplexed = v == at.MultipleConnections
		}
	case at.StartConnection:
		if p, ok := params.(at.ConnParams); ok && op == at.OpSet {
			r.conns.open(p.Conn(r.multiplexed), p.Kind)
		}
	case at.CloseConnection:
		if op == at.OpExecute {
			r.conns.close(0)
		} else if p, ok := params.(at.CloseParams); ok {
			r.conns.close(p.ID)
		}
	case at.TransportMode:
		if v, ok := params.(at.TransportModeParam); ok && op == at.OpSet {
			r.unvarnished = v == at.UnvarnishedMode
		}
	}
}

// awaitDisconnect waits for the "WIFI DISCONNECT" notice that follows
// AT+CWQAP and removes it from the response.
func (m *Modem) awaitDisconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.disconnectTimeout)
	defer cancel()

	notice := []byte(at.WifiDisconnect)
	err := m.await(ctx, func(r *receiver) bool {
		return bytes.Contains(r.resp.bytes(), notice)
	})
	if err != nil {
		return fmt.Errorf("waiting for disconnect notice: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := bytes.Index(m.rx.resp.bytes(), notice); i >= 0 {
		m.rx.resp.cut(i, i+len(notice))
	}
	return nil
}

// reset restarts the module. Whatever it prints while booting is
// discarded before echo is turned off again.
func (m *Modem) reset(ctx context.Context, line []byte) error {
	m.mu.Lock()
	m.rx.dispatch(false)
	m.mu.Unlock()

	m.logger.Info("resetting module", "delay", m.config.resetDelay)
	if err := m.write(line); err != nil {
		return err
	}
	if err := sleep(ctx, m.config.resetDelay); err != nil {
		return err
	}

	m.mu.Lock()
	m.rx.rebooted()
	m.mu.Unlock()

	if err := m.echoOff(ctx); err != nil {
		return fmt.Errorf("after reset: %w", err)
	}
	return nil
}

// echoOff sends ATE0. The module echoes this one command before echo is
// disabled, which ends up in the discarded response.
func (m *Modem) echoOff(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.atTimeout)
	defer cancel()

	if err := m.roundTrip(ctx, "ATE0", []byte(at.EchoOff), nil, false); err != nil {
		return err
	}
	m.mu.Lock()
	m.rx.take()
	m.mu.Unlock()
	return nil
}

func (m *Modem) write(p []byte) error {
	if _, err := m.transport.Write(p); err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	return nil
}

func (m *Modem) usable() error {
	if m.transport == nil || m.rx == nil {
		return ErrNotInitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.loopErr != nil {
		return fmt.Errorf("read loop stopped: %w", m.loopErr)
	}
	return nil
}

// ReplaceBuffer installs buf as the payload destination and returns the
// previous buffer with the number of bytes its last delivery left at its
// start. It is meant to be called from the DataFunc; when called while a
// chunk is being copied the new buffer takes effect with the next chunk.
func (m *Modem) ReplaceBuffer(buf []byte) ([]byte, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.replaceBuffer(buf)
}

// Mode returns the current receive mode.
func (m *Modem) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.mode
}

// Status returns the status of the last dispatched command.
func (m *Modem) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.status
}

// Multiplexed reports whether the module runs in multiple connection mode.
func (m *Modem) Multiplexed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.multiplexed
}

// Connections returns a snapshot of the connection table.
func (m *Modem) Connections() []Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Conn(nil), m.rx.conns[:]...)
}

// Done is closed once the read loop stopped.
func (m *Modem) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that stopped the read loop, if any.
func (m *Modem) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopErr
}

// Close shuts down the modem and releases all resources.
// It closes the transport, which stops the read loop, and fails any
// command still waiting. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.closed = true
	m.mu.Unlock()
	m.signal()

	err := m.transport.Close()

	t := time.NewTimer(closeGrace)
	defer t.Stop()
	select {
	case <-m.done:
	case <-t.C:
		m.logger.Warn("read loop did not stop after close")
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
