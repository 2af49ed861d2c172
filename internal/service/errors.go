package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrPrinterBehindAgent = errors.New("printer is reachable only through its print agent")
)

// Protocol error kinds returned to agents.
const (
	KindMalformed  = "malformed"
	KindUnknownJob = "unknown_job"
	KindNotClaimed = "not_claimed"
)

// ProtocolError is a request an agent got wrong: malformed, unknown job, or premature ack.
type ProtocolError struct {
	Kind    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func protocolError(kind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
