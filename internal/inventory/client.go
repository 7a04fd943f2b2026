package inventory

import (
	"context"
	"strings"
)

// Client sends completed pairs to the inventory.
type Client interface {
	// Connect establishes the connection. It is a no-op when connected.
	Connect(ctx context.Context) error

	IsConnected() bool

	// Update books nid into location, or clears its location when
	// location is empty. A non-zero status comes back with an
	// *UpdateError; transport problems come back as ErrTransport.
	Update(ctx context.Context, nid, location string) (ExitStatus, error)

	Close() error
}

// BuildCommand appends nid and, if set, location to command as
// single-quoted shell words.
func BuildCommand(command, nid, location string) string {
	var b strings.Builder
	b.WriteString(command)
	b.WriteByte(' ')
	b.WriteString(shellQuote(nid))
	if location != "" {
		b.WriteByte(' ')
		b.WriteString(shellQuote(location))
	}
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
