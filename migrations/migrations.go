// Package migrations embeds the SQL schema for every supported SQL backend.
package migrations

import "embed"

// FS holds one goose migration directory per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
