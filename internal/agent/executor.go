package agent

import (
	"context"
	"time"

	"kitchenprint/internal/models"
	"kitchenprint/internal/ticket"
	"kitchenprint/internal/transport"
)

// Executor prints claimed jobs on the local printers.
type Executor struct {
	transports *transport.Registry
	usbDevice  string
	timeout    time.Duration
}

func NewExecutor(transports *transport.Registry, usbDevice string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = models.DirectSendTimeout
	}
	return &Executor{transports: transports, usbDevice: usbDevice, timeout: timeout}
}

// Print frames the job text and writes it to the job's target.
func (e *Executor) Print(ctx context.Context, job models.AgentJob) error {
	printerType := job.PrinterType
	if printerType == "" {
		printerType = models.PrinterTypeNetwork
	}
	t, err := e.transports.For(printerType)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	target := transport.Target{Host: job.TargetIP, Port: job.TargetPort, Device: e.usbDevice}
	return t.Send(ctx, ticket.Frame(job.Text), target)
}
