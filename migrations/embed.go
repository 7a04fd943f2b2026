// Package migrations embeds the SQL migration sets into the binaries.
//
// History is the autoscand database (pair attempt log). Inventory is the
// endpoints schema cmd/autoscan expects; every statement is IF NOT EXISTS
// so it is safe against a database the inventory application created.
package migrations

import (
	"embed"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/database"
)

//go:embed history/*.sql
var historyFS embed.FS

//go:embed inventory/*.sql
var inventoryFS embed.FS

// History is the migration set for the autoscand database.
var History = database.MigrationSource{FS: historyFS, Dir: "history"}

// Inventory is the migration set for the inventory database.
var Inventory = database.MigrationSource{FS: inventoryFS, Dir: "inventory"}
