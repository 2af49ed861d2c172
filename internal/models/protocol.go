package models

import "time"

// AgentJob is a claimed job as delivered to a print agent.
type AgentJob struct {
	ID          int64     `json:"id"`
	Role        string    `json:"role"`
	OrderID     int64     `json:"order_id"`
	Text        string    `json:"text"`
	PrinterType string    `json:"printer_type"`
	TargetIP    string    `json:"target_ip,omitempty"`
	TargetPort  int       `json:"target_port,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewAgentJob(j *PrintJob) AgentJob {
	return AgentJob{
		ID:          j.ID,
		Role:        j.Role,
		OrderID:     j.OrderID,
		Text:        j.Payload,
		PrinterType: j.PrinterType,
		TargetIP:    j.TargetHost,
		TargetPort:  j.TargetPort,
		CreatedAt:   j.CreatedAt,
	}
}

type PollResponse struct {
	Success bool       `json:"success"`
	Jobs    []AgentJob `json:"jobs"`
}

type AckRequest struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type HeartbeatRequest struct {
	AgentVersion string `json:"agent_version,omitempty"`
}

type HeartbeatResponse struct {
	Success    bool      `json:"success"`
	ServerTime time.Time `json:"server_time"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
