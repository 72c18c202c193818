package modem

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/espgw/at"
)

// Version returns the firmware version lines reported by AT+GMR.
func (m *Modem) Version(ctx context.Context) ([]string, error) {
	resp, err := m.Exec(ctx, at.Version, at.OpExecute, nil)
	if err != nil {
		return nil, err
	}
	return at.Lines(resp), nil
}

func (m *Modem) SetWifiMode(ctx context.Context, mode at.WifiMode) error {
	_, err := m.Exec(ctx, at.OperationMode, at.OpSet, mode)
	return err
}

// JoinAP joins the access point. The module may take several seconds to
// associate; the AT timeout applies.
func (m *Modem) JoinAP(ctx context.Context, ssid, password string) error {
	_, err := m.Exec(ctx, at.JoinAP, at.OpSet, at.JoinParams{SSID: ssid, Password: password})
	return err
}

// QuitAP leaves the access point and waits for the module to report the
// disconnect.
func (m *Modem) QuitAP(ctx context.Context) error {
	_, err := m.Exec(ctx, at.QuitAP, at.OpExecute, nil)
	return err
}

// LocalIP returns the station address reported by AT+CIFSR.
func (m *Modem) LocalIP(ctx context.Context) (string, error) {
	resp, err := m.Exec(ctx, at.LocalIP, at.OpExecute, nil)
	if err != nil {
		return "", err
	}
	if ip, ok := at.QueryString(resp, "+CIFSR:", "STAIP"); ok {
		return ip, nil
	}
	lines := at.Lines(resp)
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Trim(lines[0], `"`), nil
}

func (m *Modem) SetMux(ctx context.Context, multiple bool) error {
	mode := at.SingleConnection
	if multiple {
		mode = at.MultipleConnections
	}
	_, err := m.Exec(ctx, at.Mux, at.OpSet, mode)
	return err
}

// Dial opens a link with AT+CIPSTART and records it in the connection
// table.
func (m *Modem) Dial(ctx context.Context, p at.ConnParams) error {
	_, err := m.Exec(ctx, at.StartConnection, at.OpSet, p)
	return err
}

// Send writes data to link id and waits for SEND OK. In single connection
// mode id is ignored.
func (m *Modem) Send(ctx context.Context, id int, data []byte) error {
	_, err := m.Exec(ctx, at.Send, at.OpSet, at.SendParams{ID: id, Data: data})
	return err
}

// CloseConn closes link id; at.AllConnections closes every link. In single
// connection mode the execute form is used.
func (m *Modem) CloseConn(ctx context.Context, id int) error {
	if !m.Multiplexed() {
		_, err := m.Exec(ctx, at.CloseConnection, at.OpExecute, nil)
		return err
	}
	_, err := m.Exec(ctx, at.CloseConnection, at.OpSet, at.CloseParams{ID: id})
	return err
}

// Ping returns the round trip time reported by AT+PING, in milliseconds.
func (m *Modem) Ping(ctx context.Context, host string) (int, error) {
	resp, err := m.Exec(ctx, at.Ping, at.OpSet, at.PingParams{Host: host})
	if err != nil {
		return 0, err
	}
	ms, ok := at.QueryInt(resp, "+")
	if !ok {
		return 0, fmt.Errorf("unexpected ping response: %q", resp)
	}
	return ms, nil
}
