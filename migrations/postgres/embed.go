// Package migrations embeds the SQL migration files.
package migrations

import "embed"

// FS contains the postgres migrations, applied in lexical order.
// Files ending in _up.sql move the schema forward, _down.sql revert.
//
//go:embed *.sql
var FS embed.FS
