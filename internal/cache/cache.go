// Package cache provee un cache key/value con backend memory (go-cache) o redis.
//
// Lo usa el validador de API keys para recordar qué token ya verificó bcrypt.
// El cache nunca decide por sí solo: la key resuelta se vuelve a chequear
// (activa, no expirada) contra el store en cada request.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. ttl 0 => no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver string // "memory" | "redis"
	Prefix string

	// Redis: cliente compartido (lo crea main con DialRedis).
	Redis *redis.Client
}

// ErrNotFound indica que la key no existe.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("cache: redis driver requires a client")
		}
		return NewRedis(cfg.Redis, cfg.Prefix), nil
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// RedisOptions parámetros de conexión.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis crea el cliente y verifica la conexión con PING.
func DialRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return rdb, nil
}
