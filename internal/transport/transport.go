package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"kitchenprint/internal/models"
)

// Target addresses a physical printer.
type Target struct {
	Host string
	Port int
	// Device is the local device path for usb printers.
	Device string
}

func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	if t.Device != "" {
		return t.Device
	}
	return t.Address()
}

// Transport delivers framed payloads to one kind of printer.
type Transport interface {
	Send(ctx context.Context, frame []byte, target Target) error
	Probe(ctx context.Context, target Target) bool
}

// ConnectionError is a failed delivery. Error returns the underlying error text unchanged.
type ConnectionError struct {
	Op     string
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Op, e.Target)
	}
	return e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

var ErrNoTransport = errors.New("no transport for printer type")

// Registry selects a transport by printer type.
type Registry struct {
	transports map[string]Transport
}

func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

func (r *Registry) Register(printerType string, t Transport) {
	r.transports[printerType] = t
}

func (r *Registry) For(printerType string) (Transport, error) {
	t, ok := r.transports[printerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTransport, printerType)
	}
	return t, nil
}

// TargetFor builds the target of a job from its denormalized destination.
func TargetFor(job *models.PrintJob) Target {
	return Target{Host: job.TargetHost, Port: job.TargetPort}
}
