package modem

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=modem

// Transport represents an established, bidirectional byte stream to a WiFi
// module.
//
// A Transport is assumed to be already connected and ready for use. Read
// must block until data is available and unblock with an error once the
// Transport is closed. Typical implementations include serial ports, TCP
// connections to emulators, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a WiFi module.
//
// Dialer abstracts how the module connection is created (for example, via
// a serial port, TCP-based emulator, or test double) and is intended to be
// used during modem construction only. Once a Transport is obtained, the
// Dialer is no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

const defaultBaudRate = 115200

var (
	errNoPortName = errors.New("modem: serial port name is required")
	errNilContext = errors.New("modem: context is nil")
)

// SerialDialer opens the module over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, for example "/dev/ttyUSB0".
	PortName string
	// BaudRate is used when Mode is nil. Defaults to 115200.
	BaudRate int
	// Mode overrides the full line configuration. The default is 8N1.
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if err := checkDial(ctx, d.PortName); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = defaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}

func checkDial(ctx context.Context, portName string) error {
	//nolint:staticcheck // callers may pass a nil context
	if ctx == nil {
		return errNilContext
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if portName == "" {
		return errNoPortName
	}
	return nil
}
