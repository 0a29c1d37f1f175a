package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"election_board/pkg/board"
	"election_board/pkg/display"
)

type endpointRequest struct {
	Endpoint string `json:"endpoint"`
}

type endpointResponse struct {
	Endpoint string `json:"endpoint"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Poller         string `json:"poller"`
	Clients        int    `json:"clients"`
	TasksCompleted int64  `json:"tasks_completed"`
	TasksFailed    int64  `json:"tasks_failed"`
	TasksSkipped   int64  `json:"tasks_skipped"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Writing response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorResponse{Error: msg})
}

// pageHandler serves the full board document
func (s *Server) pageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		page := display.Page{View: s.board.Frame().View, LivePath: "/ws"}
		if err := display.RenderPage(w, page); err != nil {
			s.logger.Error("Rendering page failed", zap.Error(err))
		}
	}
}

// fragmentHandler serves the current board fragment only
func (s *Server) fragmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := s.board.Frame()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("ETag", `"`+frame.Fingerprint+`"`)
		if r.Header.Get("If-None-Match") == `"`+frame.Fingerprint+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(frame.HTML))
	}
}

// stateHandler returns the poller state as JSON
func (s *Server) stateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, board.NewStateDTO(s.board.State()))
	}
}

func (s *Server) getEndpointHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, endpointResponse{Endpoint: s.board.Endpoint()})
	}
}

func (s *Server) putEndpointHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req endpointRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			writeError(w, s.logger, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.board.SetEndpoint(req.Endpoint); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, board.ErrEndpointPinned) {
				status = http.StatusConflict
			}
			writeError(w, s.logger, status, err.Error())
			return
		}

		writeJSON(w, s.logger, http.StatusOK, endpointResponse{Endpoint: s.board.Endpoint()})
	}
}

func (s *Server) deleteEndpointHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.board.ResetEndpoint(); err != nil {
			s.logger.Error("Resetting endpoint failed", zap.Error(err))
			writeError(w, s.logger, http.StatusInternalServerError, "could not reset endpoint")
			return
		}
		writeJSON(w, s.logger, http.StatusOK, endpointResponse{Endpoint: s.board.Endpoint()})
	}
}

// healthHandler reports liveness. A failing endpoint does not make the board
// unhealthy; it is still showing the alert.
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := s.board.Stats()
		writeJSON(w, s.logger, http.StatusOK, healthResponse{
			Status:         "ok",
			Poller:         s.board.State().Status.String(),
			Clients:        s.hub.Count(),
			TasksCompleted: stats.TasksCompleted,
			TasksFailed:    stats.TasksFailed,
			TasksSkipped:   stats.TasksSkipped,
		})
	}
}
