package modem

import "i4.energy/across/espgw/at"

// Conn is the driver's view of one link.
type Conn struct {
	ID     int
	Active bool
	Kind   at.SocketKind
}

type connTable [at.MaxConnections]Conn

func newConnTable() connTable {
	var t connTable
	for i := range t {
		t[i].ID = i
	}
	return t
}

func (t *connTable) open(id int, kind at.SocketKind) {
	t[id].Active = true
	t[id].Kind = kind
}

func (t *connTable) close(id int) {
	if id == at.AllConnections {
		for i := range t {
			t[i].Active = false
		}
		return
	}
	if id >= 0 && id < len(t) {
		t[id].Active = false
	}
}

func (t *connTable) kind(id int) at.SocketKind {
	if id < 0 || id >= len(t) {
		return at.TCP
	}
	return t[id].Kind
}

// passthroughReady reports whether exactly one stream link is active in
// single connection mode.
func (t *connTable) passthroughReady(multiplexed bool) bool {
	if multiplexed || !t[0].Active || t[0].Kind != at.TCP {
		return false
	}
	for _, c := range t[1:] {
		if c.Active {
			return false
		}
	}
	return true
}
