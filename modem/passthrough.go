package modem

import (
	"bytes"
	"context"
	"fmt"

	"i4.energy/across/espgw/at"
)

// EnterPassthrough switches the single open TCP link to raw passthrough.
// AT+CIPMODE=1 is sent unless it is already in effect, then AT+CIPSEND
// opens the send side. Afterwards every byte the module delivers is staged
// in the passthrough ring and WritePassthrough sends raw bytes to the peer.
//
// Passthrough needs single connection mode with exactly link 0 open as a
// TCP connection; otherwise ErrPassthroughNotAllowed is returned and
// nothing is sent.
func (m *Modem) EnterPassthrough(ctx context.Context) error {
	m.exec.Lock()
	defer m.exec.Unlock()

	m.mu.Lock()
	unvarnished := m.rx.unvarnished
	m.mu.Unlock()

	if !unvarnished {
		if _, err := m.run(ctx, at.TransportMode, at.OpSet, at.UnvarnishedMode); err != nil {
			return err
		}
	}
	_, err := m.run(ctx, at.Send, at.OpExecute, nil)
	return err
}

// enterSend writes AT+CIPSEND and switches to passthrough once the module
// shows its prompt.
func (m *Modem) enterSend(ctx context.Context, line []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.atTimeout)
	defer cancel()

	m.mu.Lock()
	m.rx.dispatch(true)
	m.mu.Unlock()

	m.logger.Debug("sending command", "command", at.Send.String())
	if err := m.write(line); err != nil {
		return err
	}
	if err := m.await(ctx, prompted); err != nil {
		return fmt.Errorf("%v: waiting for prompt: %w", at.Send, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.rx.status {
	case StatusError:
		resp := m.rx.take()
		return fmt.Errorf("%w: %v: %s", ErrCommandFailed, at.Send, bytes.TrimSpace(resp))
	case StatusOverflow:
		m.rx.take()
		return fmt.Errorf("%w: %v", ErrOverflow, at.Send)
	}
	m.rx.take()
	m.rx.ring.Reset()
	m.rx.mode = ModePassthrough
	m.logger.Info("passthrough entered")
	return nil
}

// ExitPassthrough sends the "+++" escape and returns to command mode after
// the guard time. The module stays in AT+CIPMODE=1; only EnterPassthrough
// or AT+CIPMODE=0 are accepted until then.
func (m *Modem) ExitPassthrough(ctx context.Context) error {
	m.exec.Lock()
	defer m.exec.Unlock()

	if err := m.usable(); err != nil {
		return err
	}
	if m.Mode() != ModePassthrough {
		return ErrNoPassthrough
	}

	if err := m.write([]byte(at.PassthroughExit)); err != nil {
		return err
	}
	if err := sleep(ctx, m.config.passthroughGuard); err != nil {
		return err
	}

	m.mu.Lock()
	m.rx.mode = ModeCommand
	m.rx.dispatch(false)
	m.mu.Unlock()
	m.logger.Info("passthrough left")
	return nil
}

// WritePassthrough sends p to the peer unchanged.
func (m *Modem) WritePassthrough(p []byte) (int, error) {
	m.exec.Lock()
	defer m.exec.Unlock()

	if err := m.usable(); err != nil {
		return 0, err
	}
	if m.Mode() != ModePassthrough {
		return 0, ErrNoPassthrough
	}
	return m.transport.Write(p)
}

// ReadPassthrough moves staged passthrough bytes into p. It never blocks;
// the DataFunc reports when bytes arrive.
func (m *Modem) ReadPassthrough(p []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.ring.Read(p)
}

// PassthroughDropped returns how many passthrough bytes were lost because
// the ring was full.
func (m *Modem) PassthroughDropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.dropped
}
