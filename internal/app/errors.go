package app

import "errors"

var (
	// ErrNotRunning is returned when an operation requires a started shell
	// or supervisor.
	ErrNotRunning = errors.New("app: not running")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("app: already running")
)
