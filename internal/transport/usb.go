package transport

import (
	"context"
	"errors"
	"os"
)

// USBAdapter writes frames to a usb printer exposed as a character device, e.g. /dev/usb/lp0.
type USBAdapter struct {
	DefaultDevice string
}

func NewUSBAdapter(defaultDevice string) *USBAdapter {
	return &USBAdapter{DefaultDevice: defaultDevice}
}

func (a *USBAdapter) device(target Target) string {
	if target.Device != "" {
		return target.Device
	}
	return a.DefaultDevice
}

func (a *USBAdapter) Send(ctx context.Context, frame []byte, target Target) error {
	path := a.device(target)
	if path == "" {
		return &ConnectionError{Op: "open", Target: "usb", Err: errors.New("usb device path is not configured")}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return &ConnectionError{Op: "open", Target: path, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		_, werr := f.Write(frame)
		done <- werr
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// Closing unblocks the pending write.
		_ = f.Close()
		<-done
		return &ConnectionError{Op: "write", Target: path, Err: ctx.Err()}
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &ConnectionError{Op: "write", Target: path, Err: err}
	}
	return nil
}

// Probe reports whether the device node exists and can be opened for writing.
func (a *USBAdapter) Probe(_ context.Context, target Target) bool {
	path := a.device(target)
	if path == "" {
		return false
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
