package domain

import "errors"

var (
	ErrJobNotFound       = errors.New("backup job not found")
	ErrJobExists         = errors.New("backup job already exists")
	ErrInvalidJob        = errors.New("invalid backup job")
	ErrUnknownEngine     = errors.New("unknown engine")
	ErrExecutionAborted  = errors.New("backup execution aborted")
	ErrExecutionNotFound = errors.New("backup execution not found")
)
