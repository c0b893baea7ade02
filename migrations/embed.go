// Package migrations embeds the inbox database schema.
package migrations

import "embed"

// FS holds the SQL migrations, applied in version order.
//
//go:embed *.sql
var FS embed.FS
