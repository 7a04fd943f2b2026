package inventory

import "fmt"

// ExitStatus is the result code of one inventory update.
type ExitStatus int

const (
	// StatusUnknown means the update did not report a status.
	StatusUnknown ExitStatus = -1

	StatusOK             ExitStatus = 0
	StatusConnectFailure ExitStatus = 1
	StatusCommitFailure  ExitStatus = 2
	StatusReserved       ExitStatus = 3
	StatusBadLocation    ExitStatus = 4
	StatusUsage          ExitStatus = 5
)

func (s ExitStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusOK:
		return "ok"
	case StatusConnectFailure:
		return "database connection failure"
	case StatusCommitFailure:
		return "commit failure"
	case StatusReserved:
		return "endpoint reserved"
	case StatusBadLocation:
		return "location not recognised"
	case StatusUsage:
		return "usage error"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// statusError converts a non-zero status into an *UpdateError.
func statusError(status ExitStatus, output string) error {
	if status == StatusOK {
		return nil
	}
	return &UpdateError{Status: status, Output: output}
}
