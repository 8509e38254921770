// Package migrations embeds the goose SQL migrations, one directory per dialect.
package migrations

import "embed"

//go:embed mysql/*.sql postgres/*.sql sqlite3/*.sql
var FS embed.FS
