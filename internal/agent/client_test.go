package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"kitchenprint/internal/models"
	"kitchenprint/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Requests(t *testing.T) {
	serverTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	var gotAck models.AckRequest
	var gotBeat models.HeartbeatRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/agent/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer kpd_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.PollResponse{Success: true, Jobs: []models.AgentJob{
			{ID: 5, Role: models.RoleKitchenTicket, OrderID: 9, Text: "ticket", PrinterType: "network", TargetIP: "10.0.0.5", TargetPort: 9100},
		}})
	})
	mux.HandleFunc("/agent/jobs/5/ack", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotAck))
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/agent/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBeat))
		_ = json.NewEncoder(w).Encode(models.HeartbeatResponse{Success: true, ServerTime: serverTime})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL+"/", "kpd_test", time.Second)
	ctx := context.Background()

	jobs, err := c.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "10.0.0.5", jobs[0].TargetIP)

	require.NoError(t, c.Ack(ctx, 5, models.JobStatusFailed, "jam"))
	assert.Equal(t, models.AckRequest{Status: "failed", ErrorMessage: "jam"}, gotAck)

	st, err := c.Heartbeat(ctx, models.HeartbeatRequest{AgentVersion: "1.0"})
	require.NoError(t, err)
	assert.True(t, serverTime.Equal(st))
	assert.Equal(t, "1.0", gotBeat.AgentVersion)
}

func TestClient_HTTPError(t *testing.T) {
	var code atomic.Int32
	code.Store(http.StatusUnauthorized)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(code.Load()))
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "unauthorized"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "bad", time.Second)
	_, err := c.Poll(context.Background())

	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	assert.Equal(t, "unauthorized", herr.Message)
	assert.ErrorIs(t, err, worker.ErrPermanent)

	code.Store(http.StatusTooManyRequests)
	_, err = c.Poll(context.Background())
	assert.NotErrorIs(t, err, worker.ErrPermanent)

	code.Store(http.StatusBadGateway)
	err = c.Ack(context.Background(), 1, models.JobStatusDone, "")
	assert.NotErrorIs(t, err, worker.ErrPermanent)
}
