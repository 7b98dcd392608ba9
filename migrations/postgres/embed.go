// Package migrations embebe los scripts SQL de PostgreSQL.
package migrations

import "embed"

// FS contiene los pares NNNN_nombre_up.sql / NNNN_nombre_down.sql.
//
//go:embed *.sql
var FS embed.FS
