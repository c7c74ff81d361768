package migrations

import "embed"

// FS contains embedded PostgreSQL migrations for loan ledger storage.
//
//go:embed *.sql
var FS embed.FS
