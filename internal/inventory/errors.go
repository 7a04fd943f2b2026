package inventory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnect is returned when a connection to the inventory host or
	// database cannot be established.
	ErrConnect = errors.New("inventory: connect failed")

	// ErrNotConnected is returned by Update before a successful Connect.
	ErrNotConnected = errors.New("inventory: not connected")

	// ErrTransport is returned when the connection fails mid-update. The
	// client marks itself disconnected.
	ErrTransport = errors.New("inventory: transport failure")

	// ErrUpdate is returned when the update ran and exited non-zero.
	ErrUpdate = errors.New("inventory: update failed")

	// ErrBadLocation is returned for location codes Store cannot parse.
	ErrBadLocation = errors.New("inventory: location not recognised")

	// ErrReserved is returned when an endpoint carries a user or comment.
	ErrReserved = errors.New("inventory: endpoint reserved")
)

// UpdateError carries the exit status of a failed update.
type UpdateError struct {
	Status ExitStatus
	Output string
}

func (e *UpdateError) Error() string {
	msg := fmt.Sprintf("%s: exit %d (%s)", ErrUpdate, int(e.Status), e.Status)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *UpdateError) Unwrap() error {
	return ErrUpdate
}

// IsConnectionError reports whether err means the update never ran.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnect) || errors.Is(err, ErrNotConnected) || errors.Is(err, ErrTransport)
}
