// Package mqtt implementa publish.Driver sobre eclipse/paho.mqtt.golang.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	"github.com/dropDatabas3/healthhook/internal/publish"
)

// Config parámetros del cliente MQTT.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	CleanSession bool
	KeepAlive    time.Duration
	// ConnectTimeout acota el CONNECT inicial.
	ConnectTimeout time.Duration
	// ReconnectPeriod es el intervalo fijo entre reintentos tras una caída.
	ReconnectPeriod time.Duration
}

// Driver es un publish.Driver MQTT. paho se encarga de reconectar;
// el driver traduce sus callbacks a publish.Handlers.
type Driver struct {
	cfg Config

	mu        sync.Mutex
	client    paho.Client
	connected bool // hubo al menos un CONNECT exitoso
	newClient func(*paho.ClientOptions) paho.Client
}

func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, newClient: paho.NewClient}
}

func (d *Driver) Name() string { return "mqtt" }

// brokerURL normaliza mqtt:// y mqtts:// a los esquemas que entiende paho.
func brokerURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("mqtt: parse broker url: %w", err)
	}
	switch u.Scheme {
	case "mqtt":
		u.Scheme = "tcp"
	case "mqtts":
		u.Scheme = "ssl"
	case "tcp", "ssl", "tls", "ws", "wss":
	default:
		return "", fmt.Errorf("mqtt: unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" && u.Scheme == "tcp" {
		u.Host += ":1883"
	}
	return u.String(), nil
}

func (d *Driver) options(h publish.Handlers) (*paho.ClientOptions, error) {
	broker, err := brokerURL(d.cfg.BrokerURL)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(d.cfg.ClientID).
		SetCleanSession(d.cfg.CleanSession).
		SetKeepAlive(d.cfg.KeepAlive).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectRetryInterval(d.cfg.ReconnectPeriod).
		SetMaxReconnectInterval(d.cfg.ReconnectPeriod)
	if d.cfg.Username != "" {
		opts.SetUsername(d.cfg.Username).SetPassword(d.cfg.Password)
	}

	log := logger.L().With(logger.Layer("driver"), logger.Driver("mqtt"))

	opts.SetOnConnectHandler(func(paho.Client) {
		d.mu.Lock()
		first := !d.connected
		d.connected = true
		d.mu.Unlock()
		if first {
			return
		}
		if h.OnReconnected != nil {
			h.OnReconnected()
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if h.OnConnectionLost != nil {
			h.OnConnectionLost(err)
		}
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		log.Debug("reconnecting")
	})
	return opts, nil
}

func (d *Driver) Connect(ctx context.Context, h publish.Handlers) error {
	opts, err := d.options(h)
	if err != nil {
		return err
	}

	c := d.newClient(opts)
	tok := c.Connect()
	if err := wait(ctx, tok, d.cfg.ConnectTimeout); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("mqtt: connect %s: %w", d.cfg.BrokerURL, err)
	}

	d.mu.Lock()
	d.client = c
	d.mu.Unlock()
	return nil
}

func (d *Driver) Publish(ctx context.Context, msg publish.Message) error {
	d.mu.Lock()
	c := d.client
	d.mu.Unlock()
	if c == nil {
		return errors.New("mqtt: not connected")
	}
	return wait(ctx, c.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload), 0)
}

// Disconnect espera hasta 250ms a que se vacíen los publish en vuelo.
func (d *Driver) Disconnect(context.Context) error {
	d.mu.Lock()
	c := d.client
	d.client = nil
	d.connected = false
	d.mu.Unlock()
	if c != nil {
		c.Disconnect(250)
	}
	return nil
}

// wait espera el token respetando ctx y un timeout opcional.
func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
