package mqtt

import (
	"errors"
	"testing"
	"time"

	"object-detection-sensor/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	mqtt.Token
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePaho struct {
	mqtt.Client
	connected      bool
	connectErr     error
	connectPending bool
	disconnects    int
	publishErr error
	messages   []published
}

func (f *fakePaho) Connect() mqtt.Token {
	if f.connectPending {
		return &fakeToken{pending: true}
	}
	f.connected = f.connectErr == nil
	return &fakeToken{err: f.connectErr}
}

func (f *fakePaho) IsConnected() bool { return f.connected }

func (f *fakePaho) Disconnect(uint) {
	f.connected = false
	f.disconnects++
}

func (f *fakePaho) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.messages = append(f.messages, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: f.publishErr}
}

func withFakePaho(t *testing.T, fake *fakePaho) *mqtt.ClientOptionsReader {
	t.Helper()
	var reader mqtt.ClientOptionsReader
	orig := newPahoClient
	newPahoClient = func(o *mqtt.ClientOptions) mqtt.Client {
		reader = mqtt.NewOptionsReader(o)
		return fake
	}
	t.Cleanup(func() { newPahoClient = orig })
	return &reader
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled:  true,
		Broker:   "broker.local",
		Port:     1883,
		ClientID: "object-detection",
		Username: "ha",
		Password: "secret",
	}
}

func TestStart_ConfiguresOptions(t *testing.T) {
	fake := &fakePaho{}
	reader := withFakePaho(t, fake)

	c := NewClient(testConfig())
	c.SetWill("object-detection/status", "offline")
	require.NoError(t, c.Start())

	assert.True(t, c.IsConnected())
	require.Len(t, reader.Servers(), 1)
	assert.Equal(t, "tcp://broker.local:1883", reader.Servers()[0].String())
	assert.Equal(t, "object-detection", reader.ClientID())
	assert.Equal(t, "ha", reader.Username())
	assert.True(t, reader.WillEnabled())
	assert.Equal(t, "object-detection/status", reader.WillTopic())
	assert.Equal(t, []byte("offline"), reader.WillPayload())
	assert.True(t, reader.WillRetained())
	assert.True(t, reader.AutoReconnect())
	assert.True(t, reader.ConnectRetry())
	assert.Equal(t, connectRetryInterval, reader.ConnectRetryInterval())

	c.Stop()
	assert.False(t, c.IsConnected())
}

func TestStart_Disabled(t *testing.T) {
	fake := &fakePaho{}
	withFakePaho(t, fake)

	cfg := testConfig()
	cfg.Enabled = false
	c := NewClient(cfg)
	require.NoError(t, c.Start())
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish("t", "x"), ErrNotConnected)
}

func TestStart_ConnectError(t *testing.T) {
	fake := &fakePaho{connectErr: errors.New("connection refused")}
	withFakePaho(t, fake)

	err := NewClient(testConfig()).Start()
	assert.EqualError(t, err, "connection refused")
}

func TestStart_BrokerUnreachableKeepsRetrying(t *testing.T) {
	fake := &fakePaho{connectPending: true}
	reader := withFakePaho(t, fake)

	c := NewClient(testConfig())
	announced := 0
	c.OnConnect = func() { announced++ }

	require.NoError(t, c.Start())
	assert.False(t, c.IsConnected())
	assert.True(t, reader.ConnectRetry())
	assert.ErrorIs(t, c.Publish("a/state", "on"), ErrNotConnected)

	// broker comes up later, paho reports the connection
	fake.connected = true
	c.onConnectHandler(fake)
	assert.Equal(t, 1, announced)
	require.NoError(t, c.Publish("a/state", "on"))

	c.Stop()
	assert.Equal(t, 1, fake.disconnects)
}

func TestStop_AbortsPendingConnect(t *testing.T) {
	fake := &fakePaho{connectPending: true}
	withFakePaho(t, fake)

	c := NewClient(testConfig())
	require.NoError(t, c.Start())
	c.Stop()
	assert.Equal(t, 1, fake.disconnects)
}

func TestPublish(t *testing.T) {
	fake := &fakePaho{}
	withFakePaho(t, fake)
	c := NewClient(testConfig())
	require.NoError(t, c.Start())

	require.NoError(t, c.PublishRetain("a/config", map[string]string{"name": "x"}))
	require.NoError(t, c.Publish("a/state", "on"))

	require.Len(t, fake.messages, 2)
	assert.Equal(t, published{topic: "a/config", retained: true, payload: []byte(`{"name":"x"}`)}, fake.messages[0])
	assert.Equal(t, published{topic: "a/state", retained: false, payload: []byte("on")}, fake.messages[1])

	fake.publishErr = errors.New("broker gone")
	err := c.Publish("a/state", "off")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a/state")
}

func TestOnConnectCallback(t *testing.T) {
	c := NewClient(testConfig())
	called := 0
	c.OnConnect = func() { called++ }
	c.onConnectHandler(nil)
	assert.Equal(t, 1, called)
}

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "online", "online"},
		{"bytes", []byte("raw"), "raw"},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"map", map[string]int{"cat": 2}, `{"cat":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodePayload(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := EncodePayload(make(chan int))
	assert.Error(t, err)
}
