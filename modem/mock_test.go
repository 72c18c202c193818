package modem_test

import (
	"io"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/espgw/modem"
)

// MockSequenceBuilder scripts the writes a test expects on a MockTransport.
// Each expected write queues the module's reply, which the mocked Read
// serves to the read loop.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	rx        chan []byte
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	b := &MockSequenceBuilder{
		transport: transport,
		rx:        make(chan []byte, 16),
		calls:     []any{},
	}

	var rest []byte
	transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		if len(rest) == 0 {
			data, ok := <-b.rx
			if !ok {
				return 0, io.EOF
			}
			rest = data
		}
		n := copy(p, rest)
		rest = rest[n:]
		return n, nil
	}).AnyTimes()
	return b
}

func (b *MockSequenceBuilder) Command(cmd, reply string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd)).DoAndReturn(func(p []byte) (int, error) {
			if reply != "" {
				b.rx <- []byte(reply)
			}
			return len(p), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Command("ATE0\r\n", "ATE0\r\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Command("AT\r\n", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SingleConnection() *MockSequenceBuilder {
	return b.Command("AT+CIPMUX?\r\n", "+CIPMUX:0\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) MultipleConnections() *MockSequenceBuilder {
	return b.Command("AT+CIPMUX?\r\n", "+CIPMUX:1\r\n\r\nOK\r\n")
}

// Init scripts the sequence New runs against a module in single
// connection mode.
func (b *MockSequenceBuilder) Init() *MockSequenceBuilder {
	return b.EchoOff().AT().SingleConnection()
}

// Close expects the transport to be closed, which ends the mocked reads.
func (b *MockSequenceBuilder) Close() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Close().DoAndReturn(func() error {
			close(b.rx)
			return nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
