// Package migrations esquema SQL embebido para golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
