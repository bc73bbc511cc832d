package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lox/teenpatti/internal/fault"
	"github.com/lox/teenpatti/internal/registry"
	"github.com/lox/teenpatti/internal/settlement"
)

const maxRequestBody = 1 << 20

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

type roomsResponse struct {
	Rooms []registry.Summary `json:"rooms"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, roomsResponse{Rooms: s.registry.Rooms()})
}

// handleSettle settles a bound room in proportion to its final chip counts
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settlement.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		err = fmt.Errorf("invalid request body: %v: %w", err, settlement.ErrInvalidRequest)
		s.writeJSON(w, http.StatusBadRequest, failed(err))
		return
	}

	s.logger.Info("Settlement requested", "room", req.RoomID, "chainRoom", req.BlockchainRoomID.Short(), "players", len(req.Claimed))
	resp, err := s.settle(r.Context(), req)
	if err != nil {
		s.writeJSON(w, statusOf(err), resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// statusOf maps an error's kind to an HTTP status
func statusOf(err error) int {
	switch fault.KindOf(err) {
	case fault.Validation:
		return http.StatusBadRequest
	case fault.StateConflict:
		return http.StatusConflict
	case fault.IntegrityViolation:
		return http.StatusUnprocessableEntity
	case fault.ExternalFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}
