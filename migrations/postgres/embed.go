// Package migrations embebe los archivos SQL de migración del credential
// store.
package migrations

import "embed"

// PostgresFS contiene las migraciones de postgres, aplicadas en orden
// lexicográfico.
//
//go:embed *.sql
var PostgresFS embed.FS
