package inventory

import (
	"errors"
	"fmt"
	"testing"
)

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name     string
		nid      string
		location string
		want     string
	}{
		{"pair", "T30123456789", "PN0102B230", "autoscan 'T30123456789' 'PN0102B230'"},
		{"clear", "0123456789", "", "autoscan '0123456789'"},
		{"quote", "it's", "", `autoscan 'it'\''s'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildCommand("autoscan", tt.nid, tt.location); got != tt.want {
				t.Errorf("BuildCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpdateError(t *testing.T) {
	err := statusError(StatusReserved, "reserved\n")

	var ue *UpdateError
	if !errors.As(err, &ue) {
		t.Fatalf("statusError() = %T, want *UpdateError", err)
	}
	if ue.Status != StatusReserved {
		t.Errorf("Status = %v, want %v", ue.Status, StatusReserved)
	}
	if !errors.Is(err, ErrUpdate) {
		t.Error("UpdateError should wrap ErrUpdate")
	}
	if want := "inventory: update failed: exit 3 (endpoint reserved): reserved"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if statusError(StatusOK, "") != nil {
		t.Error("statusError(StatusOK) should be nil")
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNotConnected, true},
		{fmt.Errorf("%w: dial", ErrConnect), true},
		{fmt.Errorf("%w: eof", ErrTransport), true},
		{statusError(StatusCommitFailure, ""), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsConnectionError(tt.err); got != tt.want {
			t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExitStatus_String(t *testing.T) {
	if StatusBadLocation.String() != "location not recognised" {
		t.Errorf("StatusBadLocation.String() = %q", StatusBadLocation.String())
	}
	if ExitStatus(42).String() != "status 42" {
		t.Errorf("ExitStatus(42).String() = %q", ExitStatus(42).String())
	}
}
