// Package migrations embeds the PostgreSQL schema so the binary and the
// integration tests apply exactly the same DDL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
