package main

import (
	"context"
	"log/slog"
	"testing"

	"i4.energy/across/espgw/modem"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := newLogger(tt.level)
			if !l.Enabled(context.Background(), tt.want) {
				t.Errorf("expected %v enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && l.Enabled(context.Background(), tt.want-1) {
				t.Errorf("expected levels below %v disabled", tt.want)
			}
		})
	}
}

func TestNewDialer(t *testing.T) {
	c := &Config{SerialPort: "/dev/ttyS0", BaudRate: 9600, SerialBackend: "tarm"}
	if d, ok := newDialer(c).(modem.TarmDialer); !ok || d.PortName != "/dev/ttyS0" || d.BaudRate != 9600 {
		t.Errorf("expected tarm dialer, got %#v", newDialer(c))
	}

	c.SerialBackend = "bugst"
	if _, ok := newDialer(c).(modem.SerialDialer); !ok {
		t.Errorf("expected go.bug.st dialer, got %#v", newDialer(c))
	}
}
