// Package redis implementa publish.Driver sobre Redis pub/sub (PUBLISH).
//
// Redis no avisa caídas por sí mismo: un loop hace PING cada
// ReconnectPeriod y traduce los cambios a publish.Handlers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	"github.com/dropDatabas3/healthhook/internal/publish"
)

// client es el subconjunto de go-redis que usa el driver.
type client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// Config parámetros del driver.
type Config struct {
	Addr     string
	Password string
	DB       int

	ConnectTimeout  time.Duration
	ReconnectPeriod time.Duration
}

type Driver struct {
	cfg  Config
	dial func(Config) client

	mu       sync.Mutex
	rdb      client
	handlers publish.Handlers
	up       bool
	stop     chan struct{}
}

func New(cfg Config) *Driver {
	if cfg.ReconnectPeriod <= 0 {
		cfg.ReconnectPeriod = 5 * time.Second
	}
	return &Driver{cfg: cfg, dial: dialClient}
}

func dialClient(cfg Config) client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.ConnectTimeout,
	})
}

func (d *Driver) Name() string { return "redis" }

func (d *Driver) Connect(ctx context.Context, h publish.Handlers) error {
	rdb := d.dial(d.cfg)

	pctx := ctx
	if d.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, d.cfg.ConnectTimeout)
		defer cancel()
	}
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis: connect %s: %w", d.cfg.Addr, err)
	}

	d.mu.Lock()
	d.rdb = rdb
	d.handlers = h
	d.up = true
	d.stop = make(chan struct{})
	stop := d.stop
	d.mu.Unlock()

	go d.watch(stop)
	return nil
}

// watch corre hasta que Disconnect cierra stop. Disconnect no lo espera:
// el Sink llama a Disconnect con su lock tomado y los handlers lo toman.
func (d *Driver) watch(stop chan struct{}) {
	t := time.NewTicker(d.cfg.ReconnectPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			d.check(context.Background())
		}
	}
}

// check hace un PING y dispara el handler si cambió la salud.
func (d *Driver) check(ctx context.Context) {
	d.mu.Lock()
	rdb, h, wasUp := d.rdb, d.handlers, d.up
	d.mu.Unlock()
	if rdb == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReconnectPeriod)
	err := rdb.Ping(ctx).Err()
	cancel()
	isUp := err == nil

	if isUp == wasUp {
		return
	}
	d.mu.Lock()
	d.up = isUp
	d.mu.Unlock()

	if isUp {
		logger.L().Info("redis publish link restored", logger.Driver("redis"))
		if h.OnReconnected != nil {
			h.OnReconnected()
		}
		return
	}
	if h.OnConnectionLost != nil {
		h.OnConnectionLost(err)
	}
}

// Publish ignora QoS y Retain: pub/sub de Redis no los tiene.
func (d *Driver) Publish(ctx context.Context, msg publish.Message) error {
	d.mu.Lock()
	rdb := d.rdb
	d.mu.Unlock()
	if rdb == nil {
		return errors.New("redis: not connected")
	}
	return rdb.Publish(ctx, msg.Topic, msg.Payload).Err()
}

func (d *Driver) Disconnect(context.Context) error {
	d.mu.Lock()
	rdb, stop := d.rdb, d.stop
	d.rdb, d.stop = nil, nil
	d.up = false
	d.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if rdb != nil {
		return rdb.Close()
	}
	return nil
}
