// Package store provee el registry de adaptadores de almacenamiento.
//
// Cada adapter se registra en su init(); main los importa en blanco
// y abre el configurado con OpenAdapter.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

// Adapter crea conexiones a un tipo de almacenamiento.
type Adapter interface {
	// Name: "postgres", "sqlite", "memory".
	Name() string

	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection es una conexión activa con acceso a los repositorios.
type AdapterConnection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	APIKeys() repository.APIKeyRepository
	HealthData() repository.HealthDataRepository
}

// SchemaApplier es opcional: conexiones SQL que saben crear su schema.
type SchemaApplier interface {
	EnsureSchema(ctx context.Context) error
}

// AdapterConfig configuración para conectar.
type AdapterConfig struct {
	Name string
	DSN  string

	// Pool (postgres)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter. Llamar en init(); duplicados hacen panic.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("store: adapter %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión con el adapter de cfg.Name.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("store: adapter %q not registered (have %v)", cfg.Name, ListAdapters())
	}
	return a.Connect(ctx, cfg)
}

// Open abre la conexión y, si autoSchema, aplica el DDL embebido.
func Open(ctx context.Context, cfg AdapterConfig, autoSchema bool) (AdapterConnection, error) {
	conn, err := OpenAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !autoSchema {
		return conn, nil
	}
	if sa, ok := conn.(SchemaApplier); ok {
		if err := sa.EnsureSchema(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("store: ensure schema (%s): %w", conn.Name(), err)
		}
	}
	return conn, nil
}
