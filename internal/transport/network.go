package transport

import (
	"context"
	"net"
	"time"

	"kitchenprint/internal/models"
)

// NetworkAdapter writes frames to raw TCP printers (port 9100 style).
type NetworkAdapter struct {
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

func NewNetworkAdapter(timeout, probeTimeout time.Duration) *NetworkAdapter {
	if timeout <= 0 {
		timeout = models.DirectSendTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = models.ProbeTimeout
	}
	return &NetworkAdapter{Timeout: timeout, ProbeTimeout: probeTimeout}
}

// Send opens a connection, writes the whole frame and closes. Connect and write share the timeout.
func (a *NetworkAdapter) Send(ctx context.Context, frame []byte, target Target) error {
	addr := target.Address()
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectionError{Op: "dial", Target: addr, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return &ConnectionError{Op: "write", Target: addr, Err: err}
		}
	}

	for written := 0; written < len(frame); {
		n, err := conn.Write(frame[written:])
		if err != nil {
			return &ConnectionError{Op: "write", Target: addr, Err: err}
		}
		written += n
	}
	return nil
}

// Probe reports whether a TCP connection can be opened. It never writes.
func (a *NetworkAdapter) Probe(ctx context.Context, target Target) bool {
	ctx, cancel := context.WithTimeout(ctx, a.ProbeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
