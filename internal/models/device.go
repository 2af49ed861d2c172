package models

import (
	"fmt"
	"time"
)

// PrintDevice is a registered remote print agent. The bearer token is never stored in clear.
type PrintDevice struct {
	ID           int64      `json:"id"`
	TenantID     int64      `json:"tenant_id"`
	RestaurantID int64      `json:"restaurant_id"`
	Name         string     `json:"name"`
	Role         string     `json:"role,omitempty"`
	TokenHash    string     `json:"-"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	AgentVersion string     `json:"agent_version,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Connected is derived: the device was seen less than threshold ago.
func (d *PrintDevice) Connected(now time.Time, threshold time.Duration) bool {
	if d.LastSeenAt == nil {
		return false
	}
	return now.Sub(*d.LastSeenAt) < threshold
}

// Staleness returns a StaleDeviceError when the device is not connected.
func (d *PrintDevice) Staleness(now time.Time, threshold time.Duration) error {
	if d.Connected(now, threshold) {
		return nil
	}
	return &StaleDeviceError{DeviceID: d.ID, LastSeenAt: d.LastSeenAt, Threshold: threshold}
}

// DeviceStatus is the read view of a device, with connectivity resolved.
type DeviceStatus struct {
	PrintDevice
	Connected bool `json:"connected"`
}

type StaleDeviceError struct {
	DeviceID   int64
	LastSeenAt *time.Time
	Threshold  time.Duration
}

func (e *StaleDeviceError) Error() string {
	if e.LastSeenAt == nil {
		return fmt.Sprintf("device %d has never been seen", e.DeviceID)
	}
	return fmt.Sprintf("device %d last seen at %s, beyond %s", e.DeviceID, e.LastSeenAt.Format(time.RFC3339), e.Threshold)
}
