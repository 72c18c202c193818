package at

import (
	"bytes"
	"strconv"
)

// ipdLookback bounds how many digits and commas are scanned back from the
// ':' ("+IPD,4,1024:" is the longest header in practice).
const ipdLookback = 13

// IPDHeader describes an inbound data header "+IPD,[<id>,]<len>:".
type IPDHeader struct {
	// Conn is the link the payload arrived on; 0 in single connection mode.
	Conn int
	// Length is the number of payload bytes following the ':'.
	Length int
	// Start is the offset of the '+' in the scanned buffer.
	Start int
	// Trim is the offset the buffer should be cut at to drop the header:
	// Start, or two less when the header is preceded by CRLF.
	Trim int
}

// ParseIPD looks for an inbound data header at the end of buf, which holds
// the bytes received before a ':'. In multiplexed mode the header carries
// a connection id. It reports false when buf does not end in a
// well-formed header.
func ParseIPD(buf []byte, multiplexed bool) (IPDHeader, bool) {
	start := -1
	for i, n := len(buf)-1, 0; i >= 0 && n < ipdLookback; i, n = i-1, n+1 {
		c := buf[i]
		if c == ',' {
			if from := i - len(IPDPrefix) + 1; from >= 0 && string(buf[from:i+1]) == IPDPrefix {
				start = from
				break
			}
			continue
		}
		if c < '0' || c > '9' {
			break
		}
	}
	if start < 0 {
		return IPDHeader{}, false
	}

	fields := bytes.Split(buf[start+len(IPDPrefix):], []byte{','})
	h := IPDHeader{Start: start, Trim: start}
	if start >= len(CRLF) && string(buf[start-len(CRLF):start]) == CRLF {
		h.Trim = start - len(CRLF)
	}

	var err error
	switch {
	case multiplexed && len(fields) == 2:
		if h.Conn, err = strconv.Atoi(string(fields[0])); err != nil {
			return IPDHeader{}, false
		}
		if h.Conn < 0 || h.Conn >= MaxConnections {
			return IPDHeader{}, false
		}
		h.Length, err = strconv.Atoi(string(fields[1]))
	case !multiplexed && len(fields) == 1:
		h.Length, err = strconv.Atoi(string(fields[0]))
	default:
		return IPDHeader{}, false
	}
	if err != nil || h.Length <= 0 {
		return IPDHeader{}, false
	}
	return h, true
}
