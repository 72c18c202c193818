package modem

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
)

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestDialers(t *testing.T) {
	const missing = "/dev/nonexistent"

	tests := []struct {
		name    string
		dialer  Dialer
		ctx     context.Context
		wantErr error // nil means any error
	}{
		{"bugst empty port name", SerialDialer{}, context.Background(), errNoPortName},
		{"bugst nil context", SerialDialer{PortName: "/dev/ttyUSB0"}, nil, errNilContext},
		{"bugst canceled context", SerialDialer{PortName: missing}, canceledContext(), context.Canceled},
		{"bugst default mode", SerialDialer{PortName: missing, BaudRate: 9600}, context.Background(), nil},
		{
			"bugst explicit mode",
			SerialDialer{PortName: missing, Mode: &serial.Mode{
				BaudRate: 115200,
				Parity:   serial.NoParity,
				DataBits: 8,
				StopBits: serial.OneStopBit,
			}},
			context.Background(),
			nil,
		},
		{"tarm empty port name", TarmDialer{}, context.Background(), errNoPortName},
		{"tarm nil context", TarmDialer{PortName: "/dev/ttyUSB0"}, nil, errNilContext},
		{"tarm canceled context", TarmDialer{PortName: missing}, canceledContext(), context.Canceled},
		{"tarm missing port", TarmDialer{PortName: missing, BaudRate: 9600}, context.Background(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := tt.dialer.Dial(tt.ctx)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got: %v", tt.wantErr, err)
			}
			if transport != nil {
				t.Error("expected nil transport")
			}
		})
	}
}

func TestSerialDialerErrorNamesPort(t *testing.T) {
	_, err := SerialDialer{PortName: "/dev/nonexistent"}.Dial(context.Background())
	if err == nil {
		t.Fatal("expected error for non-existent port")
	}
	if got := err.Error(); !strings.Contains(got, "/dev/nonexistent") {
		t.Errorf("expected the port in the error, got %q", got)
	}
}

// The generated mocks satisfy the interfaces New depends on.
func TestMocks(t *testing.T) {
	ctrl := gomock.NewController(t)

	var transport Transport = NewMockTransport(ctrl)
	var dialer Dialer = NewMockDialer(ctrl)

	ctx := context.Background()
	dialErr := errors.New("dial failed")
	dialer.(*MockDialer).EXPECT().Dial(ctx).Return(transport, nil)
	dialer.(*MockDialer).EXPECT().Dial(ctx).Return(nil, dialErr)

	got, err := dialer.Dial(ctx)
	if err != nil || got != transport {
		t.Errorf("expected mock transport, got %v, %v", got, err)
	}
	if _, err := dialer.Dial(ctx); !errors.Is(err, dialErr) {
		t.Errorf("expected dial error, got: %v", err)
	}
}
