package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | test | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		// MaxBodyBytes limita el body de ingest (los batches pueden ser grandes).
		MaxBodyBytes int64 `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Storage struct {
		// postgres | sqlite | memory
		Driver     string `yaml:"driver"`
		DSN        string `yaml:"dsn"`
		AutoSchema bool   `yaml:"auto_schema"`
		Postgres   struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind string `yaml:"kind"`
		// TTL de un token ya verificado por bcrypt.
		TTL   string `yaml:"ttl"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	APIKeys struct {
		// HashCost es el costo bcrypt para nuevas keys.
		HashCost int `yaml:"hash_cost"`
	} `yaml:"api_keys"`

	Publish struct {
		// mqtt | redis | none
		Driver          string `yaml:"driver"`
		BrokerURL       string `yaml:"broker_url"`
		ClientID        string `yaml:"client_id"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		ReconnectPeriod string `yaml:"reconnect_period"`
		ConnectTimeout  string `yaml:"connect_timeout"`
		KeepAlive       string `yaml:"keepalive"`
		PublishTimeout  string `yaml:"publish_timeout"`
		CleanSession    *bool  `yaml:"clean_session"`
		QoS             *int   `yaml:"qos"`
		Retain          bool   `yaml:"retain"`
		// Redis pub/sub (driver=redis). Vacío => usa cache.redis.
		RedisAddr string `yaml:"redis_addr"`
	} `yaml:"publish"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Default devuelve una config con todos los defaults aplicados, sin leer archivo ni env.
func Default() *Config {
	var c Config
	c.Metrics.Enabled = true
	c.applyDefaults()
	return &c
}

// Load lee el YAML (si path no está vacío), aplica defaults, overrides por env y valida.
// Un path inexistente no es error: el servicio puede configurarse solo por env.
func Load(path string) (*Config, error) {
	c := Config{}
	c.Metrics.Enabled = true
	c.Storage.AutoSchema = true

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 10 << 20
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Postgres.MaxIdleConns == 0 {
		c.Storage.Postgres.MaxIdleConns = 2
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "5m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "healthhook:"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 120
	}
	if c.APIKeys.HashCost == 0 {
		c.APIKeys.HashCost = 12
	}
	if c.Publish.Driver == "" {
		c.Publish.Driver = "mqtt"
	}
	if c.Publish.BrokerURL == "" {
		c.Publish.BrokerURL = "mqtt://localhost:1883"
	}
	if c.Publish.ClientID == "" {
		c.Publish.ClientID = "health-app"
	}
	if c.Publish.ReconnectPeriod == "" {
		c.Publish.ReconnectPeriod = "5s"
	}
	if c.Publish.ConnectTimeout == "" {
		c.Publish.ConnectTimeout = "30s"
	}
	if c.Publish.KeepAlive == "" {
		c.Publish.KeepAlive = "60s"
	}
	if c.Publish.PublishTimeout == "" {
		c.Publish.PublishTimeout = "5s"
	}
	if c.Publish.CleanSession == nil {
		clean := true
		c.Publish.CleanSession = &clean
	}
	if c.Publish.QoS == nil {
		qos := 1
		c.Publish.QoS = &qos
	}
	if c.Publish.RedisAddr == "" {
		c.Publish.RedisAddr = c.Cache.Redis.Addr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides pisa el YAML con variables de entorno.
// Acepta también los nombres heredados del despliegue anterior (NODE_ENV, PORT, DB_*, MQTT_*).
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("NODE_ENV"); ok {
		c.App.Env = normalizeEnv(v)
	}
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = normalizeEnv(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvInt("PORT"); ok {
		c.Server.Addr = fmt.Sprintf(":%d", v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if dsn := dsnFromDBEnv(); dsn != "" {
		c.Storage.DSN = dsn
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_SCHEMA"); ok {
		c.Storage.AutoSchema = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("CACHE_TTL"); ok {
		c.Cache.TTL = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// API KEYS
	if v, ok := getEnvInt("API_KEY_HASH_COST"); ok {
		c.APIKeys.HashCost = v
	}

	// PUBLISH
	if v, ok := getEnvStr("PUBLISH_DRIVER"); ok {
		c.Publish.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("MQTT_BROKER_URL"); ok {
		c.Publish.BrokerURL = v
	}
	if v, ok := getEnvStr("MQTT_CLIENT_ID"); ok {
		c.Publish.ClientID = v
	}
	if v, ok := getEnvStr("MQTT_USERNAME"); ok {
		c.Publish.Username = v
	}
	if v, ok := getEnvStr("MQTT_PASSWORD"); ok {
		c.Publish.Password = v
	}
	if v, ok := getEnvStr("PUBLISH_RECONNECT_PERIOD"); ok {
		c.Publish.ReconnectPeriod = v
	}
	if v, ok := getEnvStr("PUBLISH_REDIS_ADDR"); ok {
		c.Publish.RedisAddr = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

// dsnFromDBEnv arma un DSN postgres desde DB_HOST/DB_PORT/DB_USERNAME/DB_PASSWORD/DB_NAME.
func dsnFromDBEnv() string {
	host, ok := getEnvStr("DB_HOST")
	if !ok {
		return ""
	}
	port, ok := getEnvStr("DB_PORT")
	if !ok {
		port = "5432"
	}
	name, ok := getEnvStr("DB_NAME")
	if !ok {
		name = "nest_webhook"
	}
	user, _ := getEnvStr("DB_USERNAME")
	pass, _ := getEnvStr("DB_PASSWORD")

	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	if user != "" {
		u.User = url.UserPassword(user, pass)
	}
	return u.String()
}

func normalizeEnv(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "production", "prod":
		return "prod"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

// Validate chequea valores críticos. Las duraciones se validan acá para que
// los accessors puedan ignorar el error.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("config: storage.driver %q not supported", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.dsn required for driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind %q not supported", c.Cache.Kind)
	}
	switch c.Publish.Driver {
	case "mqtt", "redis", "none":
	default:
		return fmt.Errorf("config: publish.driver %q not supported", c.Publish.Driver)
	}
	if c.Publish.Driver == "redis" && c.Publish.RedisAddr == "" {
		return errors.New("config: publish.redis_addr (or cache.redis.addr) required for publish.driver=redis")
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("config: cache.redis.addr required for cache.kind=redis")
	}
	if c.Publish.QoS != nil && (*c.Publish.QoS < 0 || *c.Publish.QoS > 2) {
		return fmt.Errorf("config: publish.qos %d out of range", *c.Publish.QoS)
	}
	if c.APIKeys.HashCost < 4 || c.APIKeys.HashCost > 31 {
		return fmt.Errorf("config: api_keys.hash_cost %d out of range", c.APIKeys.HashCost)
	}
	if c.Rate.MaxRequests < 0 {
		return errors.New("config: rate.max_requests must be >= 0")
	}

	durations := []struct{ name, v string }{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"rate.window", c.Rate.Window},
		{"cache.ttl", c.Cache.TTL},
		{"publish.reconnect_period", c.Publish.ReconnectPeriod},
		{"publish.connect_timeout", c.Publish.ConnectTimeout},
		{"publish.keepalive", c.Publish.KeepAlive},
		{"publish.publish_timeout", c.Publish.PublishTimeout},
		{"storage.postgres.conn_max_lifetime", c.Storage.Postgres.ConnMaxLifetime},
	}
	for _, d := range durations {
		if d.v == "" {
			continue
		}
		if _, err := time.ParseDuration(d.v); err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
	}
	return nil
}

// Dur parsea una duración ya validada; vacío o inválido => 0.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}
