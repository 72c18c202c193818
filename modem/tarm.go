package modem

import (
	"context"
	"fmt"

	tarm "github.com/tarm/serial"
)

// TarmDialer opens the module with github.com/tarm/serial. It is an
// alternative for hosts where go.bug.st/serial cannot enumerate or open
// the port.
//
// The port is always opened in blocking mode: a tarm read timeout surfaces
// as io.EOF, which would stop the read loop.
type TarmDialer struct {
	PortName string
	BaudRate int
}

func (d TarmDialer) Dial(ctx context.Context) (Transport, error) {
	if err := checkDial(ctx, d.PortName); err != nil {
		return nil, err
	}

	baud := d.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	port, err := tarm.OpenPort(&tarm.Config{
		Name:     d.PortName,
		Baud:     baud,
		Size:     8,
		Parity:   tarm.ParityNone,
		StopBits: tarm.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}
