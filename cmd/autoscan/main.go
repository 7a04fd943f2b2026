// autoscan books one endpoint into the inventory database.
//
//	autoscan [-db path] [-init] NID [LOCATION]
//
// With LOCATION the endpoint is inserted or moved there; without it the
// endpoint's location is cleared. autoscand runs this command on the
// inventory host over SSH and reads the exit status:
//
//	0 ok
//	1 database could not be opened
//	2 commit failed
//	3 endpoint reserved (has a user or comment)
//	4 location not recognised
//	5 usage error
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/config"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/database"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/logging"
	"github.com/nerrad567/autoscan-core/internal/inventory"
	"github.com/nerrad567/autoscan-core/migrations"
)

var version = "dev"

const (
	defaultDBPath = "/var/lib/autoscan/inventory.db"
	busyTimeout   = 5
	runTimeout    = 30 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit status.
func run(args []string, stderr io.Writer) int {
	log := logging.NewWithWriter(stderr, config.LoggingConfig{Level: "info", Format: "text"}, version)

	fs := flag.NewFlagSet("autoscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", dbPathFromEnv(), "inventory database file")
	initDB := fs.Bool("init", false, "create the database and endpoints table if missing")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: autoscan [-db path] [-init] NID [LOCATION]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return int(inventory.StatusUsage)
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return int(inventory.StatusUsage)
	}
	nid := fs.Arg(0)
	location := fs.Arg(1)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	db, err := database.Open(database.Config{
		Path:        *dbPath,
		WALMode:     true,
		BusyTimeout: busyTimeout,
		MustExist:   !*initDB,
	})
	if err != nil {
		log.Error("opening inventory database", "path", *dbPath, "error", err)
		return int(inventory.StatusConnectFailure)
	}
	defer db.Close()

	if *initDB {
		if err := db.Migrate(ctx, migrations.Inventory); err != nil {
			log.Error("initialising inventory database", "path", *dbPath, "error", err)
			return int(inventory.StatusConnectFailure)
		}
	}

	status, err := inventory.NewStore(db.DB).Apply(ctx, nid, location)
	if err != nil {
		if errors.Is(err, inventory.ErrReserved) {
			log.Warn("endpoint reserved", "nid", nid, "error", err)
		} else {
			log.Error("inventory update failed", "nid", nid, "location", location, "status", status.String(), "error", err)
		}
		return int(status)
	}

	log.Info("inventory updated", "nid", nid, "location", location)
	return int(status)
}

func dbPathFromEnv() string {
	if path := os.Getenv("AUTOSCAN_INVENTORY_DB"); path != "" {
		return path
	}
	return defaultDBPath
}
