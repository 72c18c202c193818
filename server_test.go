package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/modem"
)

type fakeModem struct {
	resp     []byte
	err      error
	cmd      at.Command
	op       at.Op
	dialed   at.ConnParams
	sentID   int
	sent     []byte
	closedID int
	conns    []modem.Conn
}

func (f *fakeModem) Exec(_ context.Context, cmd at.Command, op at.Op, _ at.Params) ([]byte, error) {
	f.cmd, f.op = cmd, op
	return f.resp, f.err
}

func (f *fakeModem) Connections() []modem.Conn { return f.conns }

func (f *fakeModem) Dial(_ context.Context, p at.ConnParams) error {
	f.dialed = p
	return f.err
}

func (f *fakeModem) Send(_ context.Context, id int, data []byte) error {
	f.sentID, f.sent = id, data
	return f.err
}

func (f *fakeModem) CloseConn(_ context.Context, id int) error {
	f.closedID = id
	return f.err
}

func newTestServer(m *fakeModem) *Server {
	return &Server{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Modem: m}
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServerAT(t *testing.T) {
	t.Run("Execute returns lines", func(t *testing.T) {
		m := &fakeModem{resp: []byte("AT version:1.1.0.0\r\nSDK version:1.5.4\r\n\r\nOK\r\n")}
		rec := do(newTestServer(m), http.MethodPost, "/at", `{"command":"AT+GMR"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if m.cmd != at.Version || m.op != at.OpExecute {
			t.Errorf("expected Version execute, got %v %v", m.cmd, m.op)
		}

		var resp struct {
			Command string   `json:"command"`
			Lines   []string `json:"lines"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Command != "Version" || len(resp.Lines) != 3 || resp.Lines[2] != "OK" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("Query by name", func(t *testing.T) {
		m := &fakeModem{resp: []byte("+CIPMUX:1\r\n\r\nOK\r\n")}
		rec := do(newTestServer(m), http.MethodPost, "/at", `{"command":"mux","op":"query"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if m.cmd != at.Mux || m.op != at.OpQuery {
			t.Errorf("expected Mux query, got %v %v", m.cmd, m.op)
		}
	})

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"Malformed body", `{`, nil, http.StatusBadRequest},
		{"Unknown command", `{"command":"AT+CMGS"}`, nil, http.StatusBadRequest},
		{"Unknown op", `{"command":"AT","op":"write"}`, nil, http.StatusBadRequest},
		{"Set rejected", `{"command":"JoinAP","op":"set"}`, nil, http.StatusBadRequest},
		{"Op not allowed", `{"command":"Ping"}`, modem.ErrOpNotAllowed, http.StatusBadRequest},
		{"Command failed", `{"command":"AT"}`, fmt.Errorf("%w: ERROR", modem.ErrCommandFailed), http.StatusBadGateway},
		{"Timeout", `{"command":"AT"}`, fmt.Errorf("%w: %w", modem.ErrTimeout, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"Passthrough active", `{"command":"AT"}`, modem.ErrPassthroughActive, http.StatusConflict},
		{"Closed", `{"command":"AT"}`, modem.ErrAlreadyClosed, http.StatusServiceUnavailable},
		{"Other", `{"command":"AT"}`, io.ErrClosedPipe, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(&fakeModem{err: tt.err}), http.MethodPost, "/at", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServerConnections(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		m := &fakeModem{conns: []modem.Conn{{ID: 0, Active: true, Kind: at.TCP}, {ID: 1, Kind: at.UDP}}}
		rec := do(newTestServer(m), http.MethodGet, "/connections", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp []connectionResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp) != 2 || !resp[0].Active || resp[0].Kind != "TCP" || resp[1].Active {
			t.Errorf("unexpected connections: %+v", resp)
		}
	})

	t.Run("Dial", func(t *testing.T) {
		m := &fakeModem{}
		rec := do(newTestServer(m), http.MethodPost, "/connections", `{"id":2,"kind":"udp","addr":"10.0.0.1","port":5000,"local_port":5001}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		want := at.ConnParams{ID: 2, Kind: at.UDP, Addr: "10.0.0.1", Port: 5000, LocalPort: 5001}
		if m.dialed != want {
			t.Errorf("expected %+v, got %+v", want, m.dialed)
		}
	})

	t.Run("Dial validation", func(t *testing.T) {
		for _, body := range []string{`{"addr":"10.0.0.1"}`, `{"port":80}`, `{"kind":"sctp","addr":"a","port":1}`} {
			rec := do(newTestServer(&fakeModem{}), http.MethodPost, "/connections", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("Dial invalid id", func(t *testing.T) {
		m := &fakeModem{err: modem.ErrInvalidConn}
		rec := do(newTestServer(m), http.MethodPost, "/connections", `{"id":9,"addr":"a","port":1}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Send", func(t *testing.T) {
		m := &fakeModem{}
		rec := do(newTestServer(m), http.MethodPost, "/connections/3/send", "HELLO")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if m.sentID != 3 || string(m.sent) != "HELLO" {
			t.Errorf("expected HELLO on 3, got %q on %d", m.sent, m.sentID)
		}
	})

	t.Run("Send size limits", func(t *testing.T) {
		for _, body := range []string{"", strings.Repeat("x", maxSendBody+1)} {
			rec := do(newTestServer(&fakeModem{}), http.MethodPost, "/connections/0/send", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("len %d: expected 400, got %d", len(body), rec.Code)
			}
		}
	})

	t.Run("Send bad id", func(t *testing.T) {
		rec := do(newTestServer(&fakeModem{}), http.MethodPost, "/connections/x/send", "HELLO")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Close", func(t *testing.T) {
		m := &fakeModem{}
		rec := do(newTestServer(m), http.MethodDelete, "/connections/5", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if m.closedID != 5 {
			t.Errorf("expected close of 5, got %d", m.closedID)
		}
	})

	t.Run("Wrong method", func(t *testing.T) {
		rec := do(newTestServer(&fakeModem{}), http.MethodPut, "/connections", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
