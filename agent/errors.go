package agent

import (
	"errors"
	"fmt"
)

// ErrAlreadyConnected is returned by Connect while a session exists.
var ErrAlreadyConnected = errors.New("already connected to master")

// ErrNotConnected is returned when an operation needs a session and none exists.
var ErrNotConnected = errors.New("no active session")

// ErrProcessNotFound is returned when no record with the requested pid is tracked.
var ErrProcessNotFound = errors.New("process not found")

// ErrProtectedProcess is returned when a kill targets the agent's own record.
var ErrProtectedProcess = errors.New("process is protected")

// ErrMissingHandle signals a record without a live process handle. This is an
// internal inconsistency, not a caller mistake.
var ErrMissingHandle = errors.New("internal: process record has no handle")

// ErrDuplicatePid signals an attempt to register a pid that is already tracked.
var ErrDuplicatePid = errors.New("internal: duplicate pid in registry")

// UsageError reports missing or invalid input to spawn or kill. No state is
// changed when one is returned.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return "invalid request: " + e.Reason
}

// LaunchError reports that the OS failed to start a process. No record is
// registered when one is returned.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports that a process supervised in execution mode exited with a
// non-zero code or a runtime error.
type ExitError struct {
	Pid  int
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process %d exited with code %d", e.Pid, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
