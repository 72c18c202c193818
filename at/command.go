package at

import (
	"fmt"
	"strings"
)

// Command identifies one entry of the module's command set.
type Command int

const (
	Attention       Command = iota // AT
	Reset                          // AT+RST
	DeepSleep                      // AT+GSLP
	Version                        // AT+GMR
	OperationMode                  // AT+CWMODE
	JoinAP                         // AT+CWJAP
	ListAPs                        // AT+CWLAP
	QuitAP                         // AT+CWQAP
	SoftAP                         // AT+CWSAP
	StationIPs                     // AT+CWLIF
	Status                         // AT+CIPSTATUS
	StartConnection                // AT+CIPSTART
	Send                           // AT+CIPSEND
	CloseConnection                // AT+CIPCLOSE
	LocalIP                        // AT+CIFSR
	Mux                            // AT+CIPMUX
	Server                         // AT+CIPSERVER
	TransportMode                  // AT+CIPMODE
	ServerTimeout                  // AT+CIPSTO
	Ping                           // AT+PING

	numCommands
)

// Op is the operation kind a command is issued as. Values are bits so a
// command's permitted operations fit in one mask.
type Op uint8

const (
	OpTest    Op = 1 << iota // AT<cmd>=?
	OpQuery                  // AT<cmd>?
	OpSet                    // AT<cmd>=<params>
	OpExecute                // AT<cmd>
)

type descriptor struct {
	name  string
	token string
	ops   Op
}

var commands = [numCommands]descriptor{
	Attention:       {"Attention", "", OpExecute},
	Reset:           {"Reset", "+RST", OpExecute},
	DeepSleep:       {"DeepSleep", "+GSLP", OpSet},
	Version:         {"Version", "+GMR", OpExecute},
	OperationMode:   {"OperationMode", "+CWMODE", OpQuery | OpSet | OpTest},
	JoinAP:          {"JoinAP", "+CWJAP", OpQuery | OpSet},
	ListAPs:         {"ListAPs", "+CWLAP", OpExecute},
	QuitAP:          {"QuitAP", "+CWQAP", OpExecute},
	SoftAP:          {"SoftAP", "+CWSAP", OpQuery | OpSet},
	StationIPs:      {"StationIPs", "+CWLIF", OpExecute},
	Status:          {"Status", "+CIPSTATUS", OpExecute},
	StartConnection: {"StartConnection", "+CIPSTART", OpTest | OpSet},
	// Execute is the passthrough entry (AT+CIPSEND with no length).
	Send:            {"Send", "+CIPSEND", OpSet | OpExecute},
	CloseConnection: {"CloseConnection", "+CIPCLOSE", OpExecute | OpSet},
	LocalIP:         {"LocalIP", "+CIFSR", OpExecute},
	Mux:             {"Mux", "+CIPMUX", OpQuery | OpSet},
	Server:          {"Server", "+CIPSERVER", OpSet},
	TransportMode:   {"TransportMode", "+CIPMODE", OpQuery | OpSet},
	ServerTimeout:   {"ServerTimeout", "+CIPSTO", OpQuery | OpSet},
	Ping:            {"Ping", "+PING", OpSet},
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c >= 0 && c < numCommands
}

// Token returns the literal following "AT" on the wire.
func (c Command) Token() string {
	if !c.Valid() {
		return ""
	}
	return commands[c].token
}

// Ops returns the mask of operations the command accepts.
func (c Command) Ops() Op {
	if !c.Valid() {
		return 0
	}
	return commands[c].ops
}

// Allows reports whether op is a single operation permitted for c.
func (c Command) Allows(op Op) bool {
	switch op {
	case OpTest, OpQuery, OpSet, OpExecute:
		return c.Ops()&op != 0
	default:
		return false
	}
}

func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commands[c].name
}

// ParseCommand resolves a command from its name ("JoinAP") or its wire
// token with or without the AT prefix ("+CWJAP", "AT+CWJAP"). Matching is
// case-insensitive. The bare "AT" maps to Attention.
func ParseCommand(s string) (Command, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "AT" || s == "" {
		return Attention, nil
	}
	for i, d := range commands {
		if s == strings.ToUpper(d.name) {
			return Command(i), nil
		}
	}
	s = strings.TrimPrefix(s, "AT")
	for i, d := range commands {
		if d.token != "" && s == d.token {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

func (o Op) String() string {
	switch o {
	case OpTest:
		return "test"
	case OpQuery:
		return "query"
	case OpSet:
		return "set"
	case OpExecute:
		return "execute"
	default:
		return fmt.Sprintf("Op(%#x)", uint8(o))
	}
}

// ParseOp resolves an operation from its lower-case name.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "test":
		return OpTest, nil
	case "query":
		return OpQuery, nil
	case "set":
		return OpSet, nil
	case "execute", "exec", "":
		return OpExecute, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
	}
}

// Suffix returns the characters that follow the token for op. Set returns
// "=" and expects the parameters to follow.
func (o Op) Suffix() string {
	switch o {
	case OpQuery:
		return "?"
	case OpTest:
		return "=?"
	case OpSet:
		return "="
	default:
		return ""
	}
}
