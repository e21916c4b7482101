// Package migrations embebe el DDL de cada driver SQL.
//
// No es una herramienta de migraciones: cada archivo es idempotente
// (CREATE ... IF NOT EXISTS) y se aplica completo al arrancar si
// storage.auto_schema está activo.
package migrations

import _ "embed"

//go:embed postgres/schema.sql
var PostgresSchema string

//go:embed sqlite/schema.sql
var SQLiteSchema string
