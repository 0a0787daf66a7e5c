// Package migrations embeds the SQL schema of the relational document store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
