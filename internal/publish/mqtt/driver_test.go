package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/publish"
)

func TestBrokerURL(t *testing.T) {
	cases := map[string]string{
		"mqtt://localhost:1883": "tcp://localhost:1883",
		"mqtt://broker":         "tcp://broker:1883",
		"mqtts://broker:8883":   "ssl://broker:8883",
		"tcp://10.0.0.1:1884":   "tcp://10.0.0.1:1884",
		"ws://broker:9001/mqtt": "ws://broker:9001/mqtt",
	}
	for in, want := range cases {
		got, err := brokerURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := brokerURL("http://broker")
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	d := New(Config{
		BrokerURL:       "mqtt://broker:1883",
		ClientID:        "health-app",
		Username:        "u",
		Password:        "p",
		CleanSession:    true,
		KeepAlive:       60 * time.Second,
		ConnectTimeout:  30 * time.Second,
		ReconnectPeriod: 5 * time.Second,
	})

	opts, err := d.options(publish.Handlers{})
	require.NoError(t, err)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://broker:1883", opts.Servers[0].String())
	assert.Equal(t, "health-app", opts.ClientID)
	assert.Equal(t, "u", opts.Username)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.Equal(t, 5*time.Second, opts.MaxReconnectInterval)
	assert.Equal(t, 30*time.Second, opts.ConnectTimeout)
}

func TestHandlersMapping(t *testing.T) {
	d := New(Config{BrokerURL: "mqtt://broker"})

	var lost error
	reconnected := 0
	opts, err := d.options(publish.Handlers{
		OnConnectionLost: func(err error) { lost = err },
		OnReconnected:    func() { reconnected++ },
	})
	require.NoError(t, err)

	// primer CONNECT no cuenta como reconexión
	opts.OnConnect(nil)
	assert.Equal(t, 0, reconnected)

	opts.OnConnectionLost(nil, errors.New("eof"))
	assert.EqualError(t, lost, "eof")

	opts.OnConnect(nil)
	assert.Equal(t, 1, reconnected)
}

func TestPublishWithoutConnect(t *testing.T) {
	d := New(Config{BrokerURL: "mqtt://broker"})
	err := d.Publish(context.Background(), publish.Message{Topic: "t"})
	assert.Error(t, err)
	assert.NoError(t, d.Disconnect(context.Background()))
}
