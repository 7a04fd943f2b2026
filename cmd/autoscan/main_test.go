package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/database"
	"github.com/nerrad567/autoscan-core/internal/inventory"
)

func openInventory(t *testing.T, path string) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: path, BusyTimeout: 5, MustExist: true})
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"too many arguments", []string{"T30123456789", "PN0102B230", "extra"}},
		{"unknown flag", []string{"-bogus", "T30123456789"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := run(tt.args, &stderr); got != int(inventory.StatusUsage) {
				t.Errorf("run() = %d, want %d", got, inventory.StatusUsage)
			}
			if !strings.Contains(stderr.String(), "usage") {
				t.Errorf("stderr = %q, want usage text", stderr.String())
			}
		})
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	var stderr bytes.Buffer

	if got := run([]string{"-db", path, "T30123456789", "PN0102B230"}, &stderr); got != int(inventory.StatusConnectFailure) {
		t.Errorf("run() = %d, want %d", got, inventory.StatusConnectFailure)
	}
}

func TestRun_BookAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	var stderr bytes.Buffer

	if got := run([]string{"-db", path, "-init", "T30123456789", "PN0102B230"}, &stderr); got != 0 {
		t.Fatalf("book: run() = %d, stderr %s", got, stderr.String())
	}

	store := inventory.NewStore(openInventory(t, path).DB)
	ep, err := store.Get(context.Background(), "0123456789")
	if err != nil || ep == nil {
		t.Fatalf("Get() = %v, %v", ep, err)
	}
	if ep.LocationPrefix != "P-" || ep.Location != "01N02" {
		t.Errorf("endpoint = %+v", ep)
	}

	if got := run([]string{"-db", path, "T30123456789"}, &stderr); got != 0 {
		t.Fatalf("clear: run() = %d, stderr %s", got, stderr.String())
	}
	ep, err = store.Get(context.Background(), "0123456789")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ep.Location != "" {
		t.Errorf("Location = %q after clear, want empty", ep.Location)
	}
}

func TestRun_Statuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	var stderr bytes.Buffer
	if got := run([]string{"-db", path, "-init", "0123456789", "PMM10000"}, &stderr); got != 0 {
		t.Fatalf("setup run() = %d, stderr %s", got, stderr.String())
	}

	db := openInventory(t, path)
	if _, err := db.ExecContext(context.Background(),
		"UPDATE endpoints SET user = 'engineer' WHERE network_id = '0123456789'"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want inventory.ExitStatus
	}{
		{"reserved move", []string{"-db", path, "0123456789", "PN0102B230"}, inventory.StatusReserved},
		{"reserved clear", []string{"-db", path, "0123456789"}, inventory.StatusReserved},
		{"bad location", []string{"-db", path, "0123456789", "SHELF9"}, inventory.StatusBadLocation},
		{"bad identifier", []string{"-db", path, "ABC", "PN0102B230"}, inventory.StatusUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := run(tt.args, &stderr); got != int(tt.want) {
				t.Errorf("run() = %d, want %d (stderr %s)", got, tt.want, stderr.String())
			}
		})
	}
}

func TestDBPathFromEnv(t *testing.T) {
	t.Setenv("AUTOSCAN_INVENTORY_DB", "")
	if got := dbPathFromEnv(); got != defaultDBPath {
		t.Errorf("dbPathFromEnv() = %q", got)
	}
	t.Setenv("AUTOSCAN_INVENTORY_DB", "/tmp/x.db")
	if got := dbPathFromEnv(); got != "/tmp/x.db" {
		t.Errorf("dbPathFromEnv() = %q", got)
	}
}
