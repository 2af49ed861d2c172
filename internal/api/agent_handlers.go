package api

import (
	"errors"
	"io"
	"net/http"

	"kitchenprint/internal/models"
	"kitchenprint/internal/service"
)

func (s *HTTPServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	device := deviceFromContext(r.Context())

	jobs, err := s.svc.Agent.Poll(r.Context(), device)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := models.PollResponse{Success: true, Jobs: make([]models.AgentJob, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, models.NewAgentJob(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleAck(w http.ResponseWriter, r *http.Request) {
	device := deviceFromContext(r.Context())

	jobID, ok := pathInt64(r, "jobID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	var body models.AckRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := s.svc.Agent.Ack(r.Context(), device, jobID, body.Status, body.ErrorMessage); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	device := deviceFromContext(r.Context())

	// Body is optional.
	var body models.HeartbeatRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	serverTime, err := s.svc.Agent.Heartbeat(r.Context(), device, service.HeartbeatReport{
		AgentVersion: body.AgentVersion,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.HeartbeatResponse{Success: true, ServerTime: serverTime})
}
