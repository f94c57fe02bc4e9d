// Package migrations embeds the SQL schema scripts.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
