// Package sqlite implementa el adapter SQLite (modernc, sin cgo) para despliegues
// de un solo nodo y para tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/store"
	"github.com/dropDatabas3/healthhook/migrations"
)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}

const defaultPragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

// DB separa escritura y lectura: un solo writer evita "database is locked",
// los readers van en paralelo.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// BuildDSN arma el DSN para modernc. Acepta una ruta ("data/healthhook.db")
// o un DSN ya armado ("file:...?..."), al que solo se le agregan los pragmas.
// Fuera de memoria se activa WAL.
func BuildDSN(pathOrDSN string) string {
	dsn := pathOrDSN
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + defaultPragmas
	if !strings.Contains(dsn, "mode=memory") {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

// NewDB abre writer y reader sobre el mismo DSN.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("sqlite: ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("sqlite: open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("sqlite: ping reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

// Close cierra ambas conexiones; retorna el primer error.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("sqlite: close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sqlite: close writer: %w", err)
	}
	return firstErr
}

type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: %w", repository.ErrNoDatabase)
	}
	db, err := NewDB(ctx, BuildDSN(cfg.DSN))
	if err != nil {
		return nil, err
	}
	return &Connection{db: db}, nil
}

// Connection implementa store.AdapterConnection.
type Connection struct {
	db *DB
}

// NewConnection envuelve un DB ya abierto (tests).
func NewConnection(db *DB) *Connection { return &Connection{db: db} }

func (c *Connection) Name() string                   { return "sqlite" }
func (c *Connection) Ping(ctx context.Context) error { return c.db.Reader.PingContext(ctx) }
func (c *Connection) Close() error                   { return c.db.Close() }

func (c *Connection) APIKeys() repository.APIKeyRepository        { return &apiKeyRepo{db: c.db} }
func (c *Connection) HealthData() repository.HealthDataRepository { return &healthRepo{db: c.db} }

// EnsureSchema aplica el DDL embebido sobre el writer.
func (c *Connection) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Writer.ExecContext(ctx, migrations.SQLiteSchema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}
