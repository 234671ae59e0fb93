package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudEventEnvelope(t *testing.T) {
	ce := NewCloudEvent("trustmesh.deal.created", "trustmesh/engine", "deal/1",
		map[string]interface{}{"amount": 50})

	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.Equal(t, "trustmesh.deal.created", ce.Type)
	assert.Equal(t, "trustmesh/engine", ce.Source)
	assert.Equal(t, "deal/1", ce.Subject)
	assert.NotEmpty(t, ce.ID)
	assert.WithinDuration(t, time.Now(), ce.Time, time.Second)

	raw, err := ce.JSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "1.0", decoded["specversion"])
	assert.Equal(t, "trustmesh.deal.created", decoded["type"])
}

func TestSSEFormat(t *testing.T) {
	ce := NewCloudEvent("trustmesh.stake.deposited", "trustmesh/engine", "agent/alice", nil)
	out, err := ce.SSEFormat()
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "event: trustmesh.stake.deposited\n")
	assert.Contains(t, s, "data: {")
	assert.Contains(t, s, "id: "+ce.ID)
	assert.True(t, s[len(s)-2:] == "\n\n", "SSE frames end with a blank line")
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	bus.Emit("trustmesh.agent.registered", "test", "agent/alice", nil)
	bus.Emit("trustmesh.deal.created", "test", "deal/1", nil)

	first := <-ch
	second := <-ch
	assert.Equal(t, "trustmesh.agent.registered", first.Type)
	assert.Equal(t, "trustmesh.deal.created", second.Type)
}

func TestSubscribeFiltersByType(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("trustmesh.deal.disputed")

	bus.Emit("trustmesh.deal.created", "test", "deal/1", nil)
	bus.Emit("trustmesh.deal.disputed", "test", "deal/1", nil)

	got := <-ch
	assert.Equal(t, "trustmesh.deal.disputed", got.Type)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %s", extra.Type)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(ch)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Emit("trustmesh.agent.registered", "test", "", nil)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			bus.Emit("trustmesh.stake.deposited", "test", "", nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// Buffer capacity worth of events made it through.
	assert.Equal(t, 100, len(ch))
}

func TestSubscriberCountAcrossTypes(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe("trustmesh.deal.created", "trustmesh.deal.completed")
	assert.Equal(t, 3, bus.SubscriberCount())

	bus.Unsubscribe(b)
	assert.Equal(t, 1, bus.SubscriberCount())
	bus.Unsubscribe(a)
	assert.Equal(t, 0, bus.SubscriberCount())
}
