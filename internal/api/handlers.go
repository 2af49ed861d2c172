package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/models"
)

const maxListLimit = 500

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := decodeJSON(r, &order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if order.TenantID <= 0 {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if !clientFromContext(r.Context()).AllowsTenant(order.TenantID) {
		writeError(w, http.StatusForbidden, errTenantDenied.Error())
		return
	}

	result, err := s.svc.Dispatch.HandleOrder(r.Context(), order.TenantID, &order)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *HTTPServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathInt64(r, "tenantID")
	q := r.URL.Query()

	filter := database.JobFilter{TenantID: tenantID, Limit: 100}

	if st := strings.TrimSpace(q.Get("status")); st != "" {
		if !models.ValidJobStatus(st) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = st
	}
	if raw := strings.TrimSpace(q.Get("order_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid order_id")
			return
		}
		filter.OrderID = id
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := strings.TrimSpace(q.Get(name)); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+name+"; expected RFC3339")
				return
			}
			*dst = t
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	jobs, err := s.svc.Dispatch.ListJobs(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": nonNil(jobs)})
}

func (s *HTTPServer) handleStuckJobs(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathInt64(r, "tenantID")

	var olderThan time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("older_than")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid older_than duration")
			return
		}
		olderThan = d
	}

	jobs, err := s.svc.Dispatch.StuckJobs(r.Context(), tenantID, olderThan)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": nonNil(jobs)})
}

func (s *HTTPServer) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.svc.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "job event relay is not configured")
		return
	}
	tenantID, _ := pathInt64(r, "tenantID")

	var limit int64
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recent, err := s.svc.Events.Recent(r.Context(), tenantID, limit)
	if err != nil {
		s.logger.Warn().Err(err).Int64("tenant_id", tenantID).Msg("Failed to read recent job events")
		writeError(w, http.StatusBadGateway, "job event relay unavailable")
		return
	}
	out := make([]json.RawMessage, 0, len(recent))
	for _, raw := range recent {
		out = append(out, json.RawMessage(raw))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *HTTPServer) handleReprint(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathInt64(r, "tenantID")
	jobID, ok := pathInt64(r, "jobID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.svc.Dispatch.Reprint(r.Context(), tenantID, jobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "job": job})
}

func (s *HTTPServer) handleListDevices(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathInt64(r, "tenantID")

	devices, err := s.svc.Devices.List(r.Context(), tenantID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *HTTPServer) handleProbe(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathInt64(r, "tenantID")
	printerID, ok := pathInt64(r, "printerID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid printer id")
		return
	}

	reachable, err := s.svc.Dispatch.ProbePrinter(r.Context(), tenantID, printerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"printer_id": printerID, "reachable": reachable})
}

func nonNil(jobs []*models.PrintJob) []*models.PrintJob {
	if jobs == nil {
		return []*models.PrintJob{}
	}
	return jobs
}
