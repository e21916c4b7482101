// Package publishtest provee un Driver en memoria para tests.
package publishtest

import (
	"context"
	"sync"

	"github.com/dropDatabas3/healthhook/internal/publish"
)

// FakeDriver registra lo publicado y permite simular caídas.
type FakeDriver struct {
	mu          sync.Mutex
	handlers    publish.Handlers
	messages    []publish.Message
	connects    int
	disconnects int

	// ConnectErr se retorna en Connect si no es nil.
	ConnectErr error
	// PublishErr se retorna en cada Publish si no es nil.
	PublishErr error
	// ConnectHook corre dentro de Connect antes de retornar (para simular carreras).
	ConnectHook func()
}

func NewFakeDriver() *FakeDriver { return &FakeDriver{} }

func (f *FakeDriver) Name() string { return "fake" }

func (f *FakeDriver) Connect(_ context.Context, h publish.Handlers) error {
	f.mu.Lock()
	f.connects++
	f.handlers = h
	hook := f.ConnectHook
	err := f.ConnectErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *FakeDriver) Publish(_ context.Context, msg publish.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *FakeDriver) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

// Lose simula una caída de la conexión.
func (f *FakeDriver) Lose(err error) {
	f.mu.Lock()
	h := f.handlers.OnConnectionLost
	f.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// Restore simula la reconexión automática.
func (f *FakeDriver) Restore() {
	f.mu.Lock()
	h := f.handlers.OnReconnected
	f.mu.Unlock()
	if h != nil {
		h()
	}
}

// Messages retorna una copia de lo publicado.
func (f *FakeDriver) Messages() []publish.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publish.Message(nil), f.messages...)
}

func (f *FakeDriver) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *FakeDriver) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}
