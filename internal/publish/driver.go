// Package publish reenvía mediciones ya persistidas a un canal por topics
// (MQTT o Redis pub/sub).
//
// Sink es el dueño del estado de conexión; los Driver solo saben conectar,
// publicar y avisar cuando pierden o recuperan la conexión.
package publish

import (
	"context"
	"errors"
)

// Message es lo que el Sink entrega al driver.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Handlers son los callbacks de liveness que el driver invoca.
// Pueden llamarse desde goroutines del driver.
type Handlers struct {
	// OnConnectionLost: se cayó una conexión establecida; el driver
	// sigue reintentando por su cuenta.
	OnConnectionLost func(err error)

	// OnReconnected: el driver recuperó la conexión tras una caída.
	OnReconnected func()
}

// Driver es el transporte concreto.
type Driver interface {
	Name() string

	// Connect bloquea hasta conectar o fallar. No reintenta: si falla,
	// el Sink vuelve a Disconnected.
	Connect(ctx context.Context, h Handlers) error

	Publish(ctx context.Context, msg Message) error

	// Disconnect corta la conexión y detiene cualquier reintento.
	Disconnect(ctx context.Context) error
}

var (
	// ErrConnectInProgress: Connect mientras otro Connect o una reconexión está en curso.
	ErrConnectInProgress = errors.New("publish: connect already in progress")

	// ErrDisconnected: Disconnect llegó antes de que Connect terminara.
	ErrDisconnected = errors.New("publish: sink disconnected during connect")
)

// ErrDriverDisabled lo retorna NoopDriver.Connect.
var ErrDriverDisabled = errors.New("publish: driver disabled")

// NoopDriver es el driver "none": nunca conecta, así que el Sink queda
// Disconnected y cada Publish se cuenta como skipped.
type NoopDriver struct{}

func (NoopDriver) Name() string                            { return "none" }
func (NoopDriver) Connect(context.Context, Handlers) error { return ErrDriverDisabled }
func (NoopDriver) Publish(context.Context, Message) error  { return nil }
func (NoopDriver) Disconnect(context.Context) error        { return nil }
