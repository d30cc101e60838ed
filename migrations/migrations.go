package migrations

import "embed"

// FS embeds the SQL migration files applied through the golang-migrate iofs driver.
//
//go:embed *.sql
var FS embed.FS

// Version is the schema version the service expects.
const Version = 2
