// Package migrations embeds the SQLite schema migrations into the binary.
package migrations

import (
	"embed"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
