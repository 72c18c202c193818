package at_test

import (
	"testing"

	"i4.energy/across/espgw/at"
)

func TestParseIPD(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		multiplexed bool
		ok          bool
		expected    at.IPDHeader
	}{
		{
			name:     "Single connection",
			input:    "\r\n+IPD,128",
			ok:       true,
			expected: at.IPDHeader{Conn: 0, Length: 128, Start: 2, Trim: 0},
		},
		{
			name:        "Multiplexed",
			input:       "\r\n+IPD,0,5",
			multiplexed: true,
			ok:          true,
			expected:    at.IPDHeader{Conn: 0, Length: 5, Start: 2, Trim: 0},
		},
		{
			name:        "Multiplexed after other text",
			input:       "WIFI GOT IP\r\n\r\n+IPD,3,1024",
			multiplexed: true,
			ok:          true,
			expected:    at.IPDHeader{Conn: 3, Length: 1024, Start: 15, Trim: 13},
		},
		{
			name:     "No preceding CRLF",
			input:    "+IPD,7",
			ok:       true,
			expected: at.IPDHeader{Length: 7, Start: 0, Trim: 0},
		},
		{name: "Plain colon in text", input: "\r\n+CIPMUX", ok: false},
		{name: "Digits without prefix", input: "STATUS,12", ok: false},
		{name: "Single header in multiplexed mode", input: "+IPD,5", multiplexed: true, ok: false},
		{name: "Multiplexed header in single mode", input: "+IPD,0,5", ok: false},
		{name: "Connection id out of range", input: "+IPD,7,5", multiplexed: true, ok: false},
		{name: "Zero length", input: "+IPD,0", ok: false},
		{name: "Empty length", input: "+IPD,", ok: false},
		{name: "Beyond lookback window", input: "+IPD,00000000000005", ok: false},
		{name: "Empty buffer", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := at.ParseIPD([]byte(tt.input), tt.multiplexed)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v (%+v)", tt.ok, ok, got)
			}
			if ok && got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
