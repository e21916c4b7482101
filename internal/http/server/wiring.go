// Package server arma el handler HTTP con todas sus dependencias a partir
// de la configuración.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/healthhook/internal/cache"
	"github.com/dropDatabas3/healthhook/internal/config"
	apikeysctrl "github.com/dropDatabas3/healthhook/internal/http/controllers/apikeys"
	healthctrl "github.com/dropDatabas3/healthhook/internal/http/controllers/health"
	systemctrl "github.com/dropDatabas3/healthhook/internal/http/controllers/system"
	"github.com/dropDatabas3/healthhook/internal/http/router"
	apikeysvc "github.com/dropDatabas3/healthhook/internal/http/services/apikey"
	healthsvc "github.com/dropDatabas3/healthhook/internal/http/services/health"
	systemsvc "github.com/dropDatabas3/healthhook/internal/http/services/system"
	"github.com/dropDatabas3/healthhook/internal/metrics"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	"github.com/dropDatabas3/healthhook/internal/publish"
	"github.com/dropDatabas3/healthhook/internal/publish/mqtt"
	redispub "github.com/dropDatabas3/healthhook/internal/publish/redis"
	"github.com/dropDatabas3/healthhook/internal/rate"
	"github.com/dropDatabas3/healthhook/internal/store"
)

// App es el resultado del wiring.
type App struct {
	Handler http.Handler
	Store   store.AdapterConnection
	// Sink siempre existe; con publish.driver=none queda Disconnected.
	Sink *publish.Sink

	// retryEvery es el período de reintento de Connect si falla al arrancar.
	retryEvery time.Duration
	stopRetry  context.CancelFunc
	retryWG    sync.WaitGroup
	cleanups   []func() error
}

// Options permite inyectar piezas ya construidas (tests).
type Options struct {
	// Store si no es nil se usa en lugar de abrir cfg.Storage.
	Store store.AdapterConnection
	// Driver si no es nil reemplaza al driver de cfg.Publish.
	Driver publish.Driver
	// Registry para las métricas; nil => default.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
}

// Build conecta store, cache, limiter y sink, y arma el router. No conecta
// el sink: eso lo hace main con Start para poder loguear y seguir si falla.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Layer("server"), logger.Op("Build"))
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	// 1. Store
	conn := opts.Store
	if conn == nil {
		conn, err = store.Open(ctx, store.AdapterConfig{
			Name:            cfg.Storage.Driver,
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		}, cfg.Storage.AutoSchema)
		if err != nil {
			return nil, fmt.Errorf("server: open store: %w", err)
		}
		app.cleanups = append(app.cleanups, conn.Close)
	}
	app.Store = conn
	log.Info("store ready", logger.Driver(conn.Name()))

	// 2. Redis compartido (cache, rate limit y/o publish)
	var rdb *redis.Client
	if cfg.Cache.Kind == "redis" {
		rdb, err = cache.DialRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		app.cleanups = append(app.cleanups, rdb.Close)
	}

	tokenCache, err := cache.New(cache.Config{Driver: cfg.Cache.Kind, Prefix: cfg.Cache.Redis.Prefix, Redis: rdb})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled && cfg.Rate.MaxRequests > 0 {
		window := config.Dur(cfg.Rate.Window)
		if rdb != nil {
			limiter = rate.NewRedisLimiter(rdb, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, window)
		}
	}

	// 3. Publish sink
	driver := opts.Driver
	if driver == nil {
		driver = NewDriver(cfg)
	}
	app.Sink = publish.NewSink(driver, SinkOptions(cfg))
	app.retryEvery = config.Dur(cfg.Publish.ReconnectPeriod)
	if app.retryEvery <= 0 {
		app.retryEvery = 5 * time.Second
	}

	// 4. Services
	keys := apikeysvc.NewServices(apikeysvc.Deps{
		Repo:     conn.APIKeys(),
		HashCost: cfg.APIKeys.HashCost,
		Cache:    tokenCache,
		CacheTTL: config.Dur(cfg.Cache.TTL),
	})
	pipeline := healthsvc.NewPipeline(conn.HealthData(), app.Sink)

	readyDeps := systemsvc.Deps{StoreCheck: conn.Ping}
	if rdb != nil {
		readyDeps.CacheCheck = tokenCache.Ping
	}
	if cfg.Publish.Driver != "none" {
		readyDeps.Sink = app.Sink
	}

	// 5. Router
	rd := router.Deps{
		APIKeys: apikeysctrl.NewController(keys.Keys),
		Health:  healthctrl.NewController(pipeline, cfg.Server.MaxBodyBytes),
		System:  systemctrl.NewController(systemsvc.NewReadinessService(readyDeps)),
		Auth:    keys.Authenticator,
		Limiter: limiter,
	}
	if cfg.Metrics.Enabled {
		if err := metrics.Register(opts.Registry); err != nil {
			return nil, fmt.Errorf("server: register metrics: %w", err)
		}
		rd.Metrics = metrics.Handler(opts.Gatherer)
		rd.MetricsPath = cfg.Metrics.Path
	}
	app.Handler = router.New(rd)

	return app, nil
}

// NewDriver crea el driver de publish según cfg.Publish.Driver.
func NewDriver(cfg *config.Config) publish.Driver {
	p := cfg.Publish
	switch p.Driver {
	case "mqtt":
		clean := p.CleanSession == nil || *p.CleanSession
		return mqtt.New(mqtt.Config{
			BrokerURL:       p.BrokerURL,
			ClientID:        p.ClientID,
			Username:        p.Username,
			Password:        p.Password,
			CleanSession:    clean,
			KeepAlive:       config.Dur(p.KeepAlive),
			ConnectTimeout:  config.Dur(p.ConnectTimeout),
			ReconnectPeriod: config.Dur(p.ReconnectPeriod),
		})
	case "redis":
		return redispub.New(redispub.Config{
			Addr:            p.RedisAddr,
			Password:        cfg.Cache.Redis.Password,
			DB:              cfg.Cache.Redis.DB,
			ConnectTimeout:  config.Dur(p.ConnectTimeout),
			ReconnectPeriod: config.Dur(p.ReconnectPeriod),
		})
	default:
		return publish.NoopDriver{}
	}
}

// SinkOptions traduce la config a publish.Options.
func SinkOptions(cfg *config.Config) publish.Options {
	o := publish.DefaultOptions()
	if cfg.Publish.QoS != nil {
		o.QoS = byte(*cfg.Publish.QoS)
	}
	o.Retain = cfg.Publish.Retain
	if d := config.Dur(cfg.Publish.PublishTimeout); d > 0 {
		o.PublishTimeout = d
	}
	return o
}

// Start conecta el sink. Un fallo se loguea y no es fatal: la ingesta sigue
// guardando, los publish se saltean y Connect se reintenta cada
// publish.reconnect_period hasta que conecte o se llame Close.
func (a *App) Start(ctx context.Context) {
	log := logger.From(ctx).With(logger.Layer("server"), logger.Op("Start"))
	if a.Sink.Driver() == (publish.NoopDriver{}).Name() {
		log.Info("publish disabled, data points will only be stored")
		return
	}
	if err := a.Sink.Connect(ctx); err != nil {
		log.Error("publish sink connect failed, continuing without forwarding", logger.Err(err))
		a.startRetry(context.WithoutCancel(ctx))
	}
}

func (a *App) startRetry(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.stopRetry = cancel
	a.retryWG.Add(1)
	go func() {
		defer a.retryWG.Done()
		log := logger.From(ctx).With(logger.Layer("server"), logger.Op("ConnectRetry"))
		t := time.NewTicker(a.retryEvery)
		defer t.Stop()
		for attempt := 1; ; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			err := a.Sink.Connect(ctx)
			if err == nil {
				log.Info("publish sink connected", logger.Int("attempt", attempt))
				return
			}
			if ctx.Err() != nil {
				return
			}
			log.Warn("publish sink connect retry failed", logger.Int("attempt", attempt), logger.Err(err))
		}
	}()
}

// Close desconecta el sink y libera store y redis, en orden inverso.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.stopRetry != nil {
		a.stopRetry()
		a.retryWG.Wait()
		a.stopRetry = nil
	}
	if a.Sink != nil {
		if err := a.Sink.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
