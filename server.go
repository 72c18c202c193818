package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/modem"
)

// maxSendBody is the largest payload accepted by the send endpoint; the
// module takes at most 2048 bytes per AT+CIPSEND.
const maxSendBody = 2048

// Modem is the driver surface the server needs
type Modem interface {
	Exec(ctx context.Context, cmd at.Command, op at.Op, params at.Params) ([]byte, error)
	Connections() []modem.Conn
	Dial(ctx context.Context, p at.ConnParams) error
	Send(ctx context.Context, id int, data []byte) error
	CloseConn(ctx context.Context, id int) error
}

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *slog.Logger
	Modem  Modem
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /at", s.handleAT)
	mux.HandleFunc("GET /connections", s.handleListConnections)
	mux.HandleFunc("POST /connections", s.handleDial)
	mux.HandleFunc("POST /connections/{id}/send", s.handleSend)
	mux.HandleFunc("DELETE /connections/{id}", s.handleClose)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a driver error to an HTTP status code
func statusFor(err error) int {
	switch {
	case modem.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, modem.ErrCommandFailed), errors.Is(err, modem.ErrOverflow):
		return http.StatusBadGateway
	case errors.Is(err, modem.ErrOpNotAllowed),
		errors.Is(err, modem.ErrInvalidConn),
		errors.Is(err, modem.ErrUnsupported),
		errors.Is(err, at.ErrUnknownCommand),
		errors.Is(err, at.ErrUnknownOp),
		errors.Is(err, at.ErrParamsMismatch),
		errors.Is(err, at.ErrCommandTooLong):
		return http.StatusBadRequest
	case errors.Is(err, modem.ErrPassthroughActive), errors.Is(err, modem.ErrPassthroughNotAllowed):
		return http.StatusConflict
	case errors.Is(err, modem.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleAT runs a command that takes no parameters: a test, a query or an
// execute
func (s *Server) handleAT(w http.ResponseWriter, r *http.Request) {
	type ATRequest struct {
		Command string `json:"command"`
		Op      string `json:"op"`
	}
	type ATResponse struct {
		Command  string   `json:"command"`
		Response string   `json:"response"`
		Lines    []string `json:"lines"`
	}

	var req ATRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmd, err := at.ParseCommand(req.Command)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	op, err := at.ParseOp(req.Op)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if op == at.OpSet {
		s.sendError(w, "set operations need parameters and are not available here", http.StatusBadRequest)
		return
	}

	resp, err := s.Modem.Exec(r.Context(), cmd, op, nil)
	if err != nil {
		s.Logger.Error("Command failed", "error", err, "command", cmd.String(), "op", op.String())
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	lines := at.Lines(resp)
	if lines == nil {
		lines = []string{}
	}
	s.sendJSON(w, ATResponse{Command: cmd.String(), Response: string(resp), Lines: lines}, http.StatusOK)
}

type connectionResponse struct {
	ID     int    `json:"id"`
	Active bool   `json:"active"`
	Kind   string `json:"kind"`
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.Modem.Connections()
	resp := make([]connectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, connectionResponse{ID: c.ID, Active: c.Active, Kind: c.Kind.String()})
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	type DialRequest struct {
		ID        int    `json:"id"`
		Kind      string `json:"kind"`
		Addr      string `json:"addr"`
		Port      int    `json:"port"`
		LocalPort int    `json:"local_port"`
	}

	var req DialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Addr == "" || req.Port <= 0 {
		s.sendError(w, "both 'addr' and 'port' fields are required", http.StatusBadRequest)
		return
	}

	var kind at.SocketKind
	switch strings.ToUpper(req.Kind) {
	case "", at.TCP.String():
		kind = at.TCP
	case at.UDP.String():
		kind = at.UDP
	default:
		s.sendError(w, "kind must be TCP or UDP", http.StatusBadRequest)
		return
	}

	p := at.ConnParams{ID: req.ID, Kind: kind, Addr: req.Addr, Port: req.Port, LocalPort: req.LocalPort}
	if err := s.Modem.Dial(r.Context(), p); err != nil {
		s.Logger.Error("Failed to open connection", "error", err, "addr", req.Addr, "port", req.Port)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Connection opened", "id", req.ID, "kind", kind.String(), "addr", req.Addr, "port", req.Port)
	s.sendJSON(w, connectionResponse{ID: req.ID, Active: true, Kind: kind.String()}, http.StatusCreated)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.sendError(w, "invalid connection id", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxSendBody+1))
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) == 0 || len(data) > maxSendBody {
		s.sendError(w, "body must hold 1 to 2048 bytes", http.StatusBadRequest)
		return
	}

	if err := s.Modem.Send(r.Context(), id, data); err != nil {
		s.Logger.Error("Failed to send data", "error", err, "id", id)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Data sent", "id", id, "bytes", len(data))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.sendError(w, "invalid connection id", http.StatusBadRequest)
		return
	}

	if err := s.Modem.CloseConn(r.Context(), id); err != nil {
		s.Logger.Error("Failed to close connection", "error", err, "id", id)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Connection closed", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
