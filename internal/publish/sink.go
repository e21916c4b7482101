package publish

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/healthhook/internal/metrics"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
)

// Outcome resultado de un Publish. Nunca es un error para el caller.
type Outcome int

const (
	Published Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "ok"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Options defaults del Sink.
type Options struct {
	QoS    byte
	Retain bool
	// PublishTimeout acota cada Publish en el driver. 0 => sin límite propio.
	PublishTimeout time.Duration
}

// DefaultOptions: QoS 1, sin retain, 5s por publish.
func DefaultOptions() Options {
	return Options{QoS: 1, PublishTimeout: 5 * time.Second}
}

// PublishOptions pisa los defaults para un mensaje puntual.
type PublishOptions struct {
	QoS    *byte
	Retain *bool
}

// Sink es la máquina de estados sobre un Driver. Las transiciones se
// serializan con mu; Publish solo lee el estado (atómico) y no bloquea.
type Sink struct {
	driver Driver
	opts   Options

	mu    sync.Mutex
	state atomic.Int32
}

// NewSink crea el sink en Disconnected.
func NewSink(d Driver, opts Options) *Sink {
	s := &Sink{driver: d, opts: opts}
	metrics.SetSinkState(StateDisconnected.String(), allStates)
	return s
}

// State retorna el estado actual.
func (s *Sink) State() State { return State(s.state.Load()) }

// Driver retorna el nombre del driver.
func (s *Sink) Driver() string { return s.driver.Name() }

// transition debe llamarse con mu tomado.
func (s *Sink) transition(to State) {
	from := s.State()
	if from == to {
		return
	}
	s.state.Store(int32(to))
	metrics.SinkTransitions.WithLabelValues(from.String(), to.String()).Inc()
	metrics.SetSinkState(to.String(), allStates)
}

func (s *Sink) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("publish"),
		logger.Component("sink"),
		logger.Driver(s.driver.Name()),
		logger.Op(op),
	)
}

// Connect: Disconnected → Connecting → Connected. Si el driver falla vuelve
// a Disconnected y retorna el error; no hay reintento automático acá.
func (s *Sink) Connect(ctx context.Context) error {
	log := s.log(ctx, "Connect")

	s.mu.Lock()
	switch s.State() {
	case StateConnected:
		s.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		s.mu.Unlock()
		return ErrConnectInProgress
	}
	s.transition(StateConnecting)
	s.mu.Unlock()

	log.Info("connecting")
	err := s.driver.Connect(ctx, Handlers{
		OnConnectionLost: s.onConnectionLost,
		OnReconnected:    s.onReconnected,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnecting {
		// Disconnect llegó en el medio
		if err == nil {
			_ = s.driver.Disconnect(context.Background())
		}
		return ErrDisconnected
	}
	if err != nil {
		s.transition(StateDisconnected)
		log.Error("connect failed", logger.Err(err))
		return err
	}
	s.transition(StateConnected)
	log.Info("connected")
	return nil
}

// Disconnect es idempotente.
func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateDisconnected {
		return nil
	}
	s.transition(StateDisconnected)
	err := s.driver.Disconnect(ctx)
	if err != nil {
		s.log(ctx, "Disconnect").Warn("driver disconnect failed", logger.Err(err))
	} else {
		s.log(ctx, "Disconnect").Info("disconnected")
	}
	return err
}

func (s *Sink) onConnectionLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnected {
		return
	}
	s.transition(StateReconnecting)
	s.log(context.Background(), "ConnectionLost").Warn("connection lost, reconnecting", logger.Err(err))
}

func (s *Sink) onReconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateReconnecting {
		return
	}
	s.transition(StateConnected)
	s.log(context.Background(), "Reconnected").Info("connection restored")
}

// Publish entrega payload solo si el sink está Connected. Errores del driver
// se loguean y cuentan; nunca se propagan.
func (s *Sink) Publish(ctx context.Context, topic string, payload []byte, po PublishOptions) Outcome {
	if st := s.State(); st != StateConnected {
		metrics.PublishTotal.WithLabelValues(Skipped.String()).Inc()
		s.log(ctx, "Publish").Debug("sink not connected, skipping publish",
			logger.Topic(topic), logger.State(st.String()))
		return Skipped
	}

	msg := Message{Topic: topic, Payload: payload, QoS: s.opts.QoS, Retain: s.opts.Retain}
	if po.QoS != nil {
		msg.QoS = *po.QoS
	}
	if po.Retain != nil {
		msg.Retain = *po.Retain
	}

	pctx := ctx
	if s.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.opts.PublishTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.driver.Publish(pctx, msg)
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PublishTotal.WithLabelValues(Failed.String()).Inc()
		s.log(ctx, "Publish").Warn("publish failed", logger.Topic(topic), logger.Err(err))
		return Failed
	}
	metrics.PublishTotal.WithLabelValues(Published.String()).Inc()
	s.log(ctx, "Publish").Debug("published", logger.Topic(topic))
	return Published
}
