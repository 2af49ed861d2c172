package models

import "time"

type PrintJob struct {
	ID           int64      `json:"id"`
	TenantID     int64      `json:"tenant_id"`
	RestaurantID int64      `json:"restaurant_id"`
	PrinterID    int64      `json:"printer_id"`
	DeviceID     *int64     `json:"device_id,omitempty"`
	OrderID      int64      `json:"order_id"`
	Role         string     `json:"role"`
	Status       string     `json:"status"` // pending, sent, done, failed
	Payload      string     `json:"payload"`
	PrinterType  string     `json:"printer_type"`
	TargetHost   string     `json:"target_host,omitempty"`
	TargetPort   int        `json:"target_port,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`
	Generation   int        `json:"generation"`
	ReprintOf    *int64     `json:"reprint_of,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job reached done or failed.
func (j *PrintJob) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusDone || status == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// pending -> sent (claim), pending -> done|failed (direct send), sent -> done|failed (ack).
func CanTransition(from, to string) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusSent || to == JobStatusDone || to == JobStatusFailed
	case JobStatusSent:
		return to == JobStatusDone || to == JobStatusFailed
	default:
		return false
	}
}
