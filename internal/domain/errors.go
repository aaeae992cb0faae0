package domain

import (
	"errors"
	"fmt"
)

var (
	ErrHardwareRead  = errors.New("hardware read failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrConfiguration = errors.New("invalid configuration")

	ErrHardwareInfoUnavailable = errors.New("hardware info not available from this source")
)

// HardwareReadError reports a metric that could not be obtained from the
// hardware source.
type HardwareReadError struct {
	Metric Metric
	Err    error
}

func (e *HardwareReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Metric, e.Err)
}

func (e *HardwareReadError) Unwrap() []error { return []error{ErrHardwareRead, e.Err} }

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
