// Package migrations embeds the goose migration files so the server
// binary can run them against a fresh Postgres database without
// depending on the working directory the process starts from.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
