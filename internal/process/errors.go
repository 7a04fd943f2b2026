package process

import (
	"errors"
	"io/fs"
	"os/exec"
)

var (
	// ErrAlreadyRunning is returned by Start while the process is up.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrStopRequested is returned when a restart races with Stop.
	ErrStopRequested = errors.New("process: stop requested")
)

// RecoverableError is implemented by errors that know whether a restart
// could help.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether the manager should keep restarting after
// err. Errors that do not implement RecoverableError count as recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	var re RecoverableError
	if errors.As(err, &re) {
		return re.IsRecoverable()
	}
	return true
}

// launchError wraps a failed exec. A missing or non-executable binary will
// not fix itself, so those are permanent.
type launchError struct {
	name string
	err  error
}

func (e *launchError) Error() string { return "starting " + e.name + ": " + e.err.Error() }
func (e *launchError) Unwrap() error { return e.err }

func (e *launchError) IsRecoverable() bool {
	return !errors.Is(e.err, exec.ErrNotFound) &&
		!errors.Is(e.err, fs.ErrNotExist) &&
		!errors.Is(e.err, fs.ErrPermission)
}
