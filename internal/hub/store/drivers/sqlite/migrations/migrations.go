// Package migrations embeds the SQL migration files so the binary can
// bring any database file up to the current schema on startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
