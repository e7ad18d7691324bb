//go:build integration

package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/config"
)

// These tests require a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: clientID},
		QoS:       1,
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 5},
	}
}

func connectIntegration(t *testing.T, clientID string) *Client {
	t.Helper()
	c, err := Connect(context.Background(), integrationConfig(clientID))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_FactRoundTrip(t *testing.T) {
	c := connectIntegration(t, "grayrules-int-facts")

	var mu sync.Mutex
	received := map[string]string{}
	require.NoError(t, c.Subscribe(Topics{}.AllFacts(), 1, func(topic string, payload []byte) error {
		name, _ := FactName(topic)
		mu.Lock()
		received[name] = string(payload)
		mu.Unlock()
		return nil
	}))
	assert.Equal(t, 1, c.SubscriptionCount())

	require.NoError(t, c.Publish(Topics{}.Fact("room/temp"), []byte(`{"value":21.5}`), 1, false))
	require.NoError(t, c.PublishJSON(Topics{}.Fact("door_open"), map[string]any{}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received["room/temp"] == `{"value":21.5}` && received["door_open"] == `{}`
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Unsubscribe(Topics{}.AllFacts()))
	assert.Zero(t, c.SubscriptionCount())
}

func TestIntegration_HealthAndClose(t *testing.T) {
	c, err := Connect(context.Background(), integrationConfig("grayrules-int-health"))
	require.NoError(t, err)

	assert.True(t, c.IsConnected())
	assert.NoError(t, c.HealthCheck(context.Background()))

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish("x", nil, 1, false), ErrNotConnected)
}

func TestIntegration_OnConnectCallback(t *testing.T) {
	c := connectIntegration(t, "grayrules-int-callback")

	called := make(chan struct{}, 1)
	c.SetOnConnect(func() { called <- struct{}{} })
	c.handleConnect()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("OnConnect callback not invoked")
	}
}
