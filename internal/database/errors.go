package database

import "errors"

var (
	ErrJobNotFound     = errors.New("print job not found")
	ErrJobNotClaimed   = errors.New("print job has not been claimed")
	ErrPrinterNotFound = errors.New("printer not found")
	ErrDeviceNotFound  = errors.New("print device not found")
	ErrInvalidStatus   = errors.New("invalid job status transition")
	ErrRoleMismatch    = errors.New("device role does not cover printer jobs")
)
