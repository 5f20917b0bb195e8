package auth

import "embed"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS exposes the accounts/stores schema migrations so host
// applications can run them with their own migration tooling.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
