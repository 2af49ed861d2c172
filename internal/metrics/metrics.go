package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kitchenprint"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	jobsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Print jobs created by role and delivery path.",
		},
		[]string{"role", "path"},
	)

	jobOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Terminal print job outcomes by status and delivery path.",
		},
		[]string{"status", "path"},
	)

	agentPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_polls_total",
			Help:      "Agent polls by result (jobs, empty, error).",
		},
		[]string{"result"},
	)

	jobsClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_jobs_claimed_total",
			Help:      "Jobs handed to agents.",
		},
	)

	directSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "direct_send_duration_seconds",
			Help:      "Duration of synchronous printer sends.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	devicesConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_connected",
			Help:      "Active print devices seen within the connectivity window.",
		},
	)

	jobsStuck = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_stuck",
			Help:      "Sent jobs not acknowledged within the stuck threshold.",
		},
	)
)

// Delivery paths
const (
	PathDirect = "direct"
	PathAgent  = "agent"
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, jobsCreated, jobOutcomes, agentPolls, jobsClaimed,
			directSendDuration, devicesConnected, jobsStuck)
	})
}

func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

func JobCreated(role, path string) {
	jobsCreated.WithLabelValues(role, path).Inc()
}

func JobOutcome(status, path string) {
	jobOutcomes.WithLabelValues(status, path).Inc()
}

// AgentPoll records one poll and the number of jobs it claimed.
func AgentPoll(claimed int, err error) {
	switch {
	case err != nil:
		agentPolls.WithLabelValues("error").Inc()
	case claimed == 0:
		agentPolls.WithLabelValues("empty").Inc()
	default:
		agentPolls.WithLabelValues("jobs").Inc()
		jobsClaimed.Add(float64(claimed))
	}
}

func ObserveDirectSend(d time.Duration) {
	directSendDuration.Observe(d.Seconds())
}

func SetDevicesConnected(n int) {
	devicesConnected.Set(float64(n))
}

func SetStuckJobs(n int) {
	jobsStuck.Set(float64(n))
}
