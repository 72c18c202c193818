package at

import "time"

// Env is the driver state a command's arguments depend on.
type Env struct {
	// Multiplexed is true when the module runs with AT+CIPMUX=1.
	Multiplexed bool
	// Kind returns the socket kind of an open link. Nil means every link
	// is a stream.
	Kind func(id int) SocketKind
}

func (e Env) kind(id int) SocketKind {
	if e.Kind == nil {
		return TCP
	}
	return e.Kind(id)
}

// Params are the arguments of a set operation.
type Params interface {
	// Command is the command these parameters belong to.
	Command() Command
	// Args returns the ordered arguments; each one is an int or a string.
	Args(env Env) []any
}

// SleepParams for AT+GSLP.
type SleepParams struct {
	Duration time.Duration
}

func (SleepParams) Command() Command { return DeepSleep }

func (p SleepParams) Args(Env) []any {
	return []any{int(p.Duration / time.Millisecond)}
}

// WifiMode for AT+CWMODE.
type WifiMode int

const (
	Station WifiMode = iota + 1
	AccessPoint
	StationAndAccessPoint
)

func (WifiMode) Command() Command { return OperationMode }

func (m WifiMode) Args(Env) []any { return []any{int(m)} }

// JoinParams for AT+CWJAP.
type JoinParams struct {
	SSID     string
	Password string
}

func (JoinParams) Command() Command { return JoinAP }

func (p JoinParams) Args(Env) []any { return []any{p.SSID, p.Password} }

// Encryption of a soft access point.
type Encryption int

const (
	Open Encryption = iota
	WEP
	WPAPSK
	WPA2PSK
	WPAWPA2PSK
)

// SoftAPParams for AT+CWSAP.
type SoftAPParams struct {
	SSID       string
	Password   string
	Channel    int
	Encryption Encryption
}

func (SoftAPParams) Command() Command { return SoftAP }

func (p SoftAPParams) Args(Env) []any {
	return []any{p.SSID, p.Password, p.Channel, int(p.Encryption)}
}

// UDPMode controls whether the remote end of a datagram link may change.
type UDPMode int

const (
	UDPPeerFixed UDPMode = iota
	UDPPeerChangeOnce
	UDPPeerChangeAlways
)

// ConnParams for AT+CIPSTART. ID is only sent in multiplexed mode;
// LocalPort and UDPMode only for datagram links.
type ConnParams struct {
	ID        int
	Kind      SocketKind
	Addr      string
	Port      int
	LocalPort int
	UDPMode   UDPMode
}

func (ConnParams) Command() Command { return StartConnection }

func (p ConnParams) Args(env Env) []any {
	var args []any
	if env.Multiplexed {
		args = append(args, p.ID)
	}
	args = append(args, p.Kind.String(), p.Addr, p.Port)
	if p.Kind == UDP {
		args = append(args, p.LocalPort, int(p.UDPMode))
	}
	return args
}

// Conn returns the connection table slot the parameters refer to.
func (p ConnParams) Conn(multiplexed bool) int {
	if multiplexed {
		return p.ID
	}
	return 0
}

// SendParams for AT+CIPSEND. Data is written after the module's prompt;
// only its length goes on the command line. RemoteIP and RemotePort
// address a datagram link.
type SendParams struct {
	ID         int
	Data       []byte
	RemoteIP   string
	RemotePort int
}

func (SendParams) Command() Command { return Send }

func (p SendParams) Args(env Env) []any {
	var args []any
	id := 0
	if env.Multiplexed {
		id = p.ID
		args = append(args, p.ID)
	}
	args = append(args, len(p.Data))
	if env.kind(id) == UDP && p.RemoteIP != "" {
		args = append(args, p.RemoteIP, p.RemotePort)
	}
	return args
}

// CloseParams for AT+CIPCLOSE=<id>.
type CloseParams struct {
	ID int
}

func (CloseParams) Command() Command { return CloseConnection }

func (p CloseParams) Args(Env) []any { return []any{p.ID} }

// MuxMode for AT+CIPMUX.
type MuxMode int

const (
	SingleConnection MuxMode = iota
	MultipleConnections
)

func (MuxMode) Command() Command { return Mux }

func (m MuxMode) Args(Env) []any { return []any{int(m)} }

// ServerParams for AT+CIPSERVER.
type ServerParams struct {
	Open bool
	Port int
}

func (ServerParams) Command() Command { return Server }

func (p ServerParams) Args(Env) []any {
	action := 0
	if p.Open {
		action = 1
	}
	return []any{action, p.Port}
}

// TransportModeParam for AT+CIPMODE.
type TransportModeParam int

const (
	NormalMode TransportModeParam = iota
	UnvarnishedMode
)

func (TransportModeParam) Command() Command { return TransportMode }

func (m TransportModeParam) Args(Env) []any { return []any{int(m)} }

// TimeoutParams for AT+CIPSTO, in seconds (0 to 7200).
type TimeoutParams struct {
	Seconds int
}

func (TimeoutParams) Command() Command { return ServerTimeout }

func (p TimeoutParams) Args(Env) []any { return []any{p.Seconds} }

// PingParams for AT+PING.
type PingParams struct {
	Host string
}

func (PingParams) Command() Command { return Ping }

func (p PingParams) Args(Env) []any { return []any{p.Host} }
