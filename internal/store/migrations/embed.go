// Package migrations embeds the SQL schema of the search index database.
package migrations

import "embed"

// FS contains the numbered *.up.sql files, applied in name order.
//
//go:embed *.sql
var FS embed.FS
