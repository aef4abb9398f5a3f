// Package migrations embeds the schema. The SQL sticks to the subset that
// sqlite and postgres both accept so one set serves both drivers.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
