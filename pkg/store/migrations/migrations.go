// Package migrations embeds the Store's schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
