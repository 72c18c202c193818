package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = ">"

	// Solicited terminators
	TermOK     = "\r\nOK\r\n"
	TermError  = "\r\nERROR\r\n"
	TermSendOK = "\r\nSEND OK\r\n"

	// Unsolicited messages
	TermClosed     = "CLOSED\r\n"
	IPDPrefix      = "+IPD,"
	WifiDisconnect = "WIFI DISCONNECT\r\n"

	// Host side sequences
	EchoOff         = "ATE0\r\n"
	PassthroughExit = "+++"
)

const (
	// MaxCommandLen bounds a rendered command line, CRLF included. The
	// longest command is AT+CWSAP with a 32 byte SSID and 64 byte password.
	MaxCommandLen = 120

	// MaxConnections is the number of links the module can multiplex.
	MaxConnections = 5

	// AllConnections passed to AT+CIPCLOSE closes every link.
	AllConnections = 5
)

// SocketKind is the transport protocol of a link.
type SocketKind int

const (
	TCP SocketKind = iota // stream
	UDP                   // datagram
)

func (k SocketKind) String() string {
	switch k {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	default:
		return "UNKNOWN"
	}
}
