// Package migrations compiles the SQL migration files into the binary
// so the daemon can bring its recorder database up to date without
// shipping loose .sql files alongside the executable.
package migrations

import (
	"embed"

	"github.com/nerrad567/ble-adv-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
