package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDispatchToEveryConnection(t *testing.T) {
	hub := NewWSHub(4)
	a, b, other := hub.NewClient(), hub.NewClient(), hub.NewClient()
	require.NoError(t, hub.Register("bob", a))
	require.NoError(t, hub.Register("bob", b))
	require.NoError(t, hub.Register("carol", other))

	assert.Equal(t, 2, hub.ConnectionCount("bob"))
	assert.Equal(t, 2, hub.Dispatch("bob", EventNewMessage, map[string]string{"text": "hi"}))

	for _, c := range []*Client{a, b} {
		frame := nextFrame(t, c)
		assert.Equal(t, EventNewMessage, frame.Type)
	}
	assertNoFrame(t, other)
}

func TestHubDispatchWithoutConnections(t *testing.T) {
	hub := NewWSHub(4)
	assert.Zero(t, hub.Dispatch("nobody", EventNewFollower, nil))
	assert.False(t, hub.IsOnline("nobody"))
}

func TestHubRegisterIsIdempotent(t *testing.T) {
	hub := NewWSHub(4)
	c := hub.NewClient()

	require.NoError(t, hub.Register("bob", c))
	require.NoError(t, hub.Register("bob", c))
	assert.Equal(t, 1, hub.ConnectionCount("bob"))

	state, user := hub.State(c)
	assert.Equal(t, StateJoined, state)
	assert.Equal(t, "bob", user)
}

func TestHubRejoinMovesConnection(t *testing.T) {
	hub := NewWSHub(4)
	c := hub.NewClient()

	require.NoError(t, hub.Register("bob", c))
	require.NoError(t, hub.Register("alice", c))

	assert.Zero(t, hub.ConnectionCount("bob"))
	assert.Equal(t, 1, hub.ConnectionCount("alice"))
	assert.Zero(t, hub.Dispatch("bob", EventNewMessage, nil))
}

func TestHubUnregister(t *testing.T) {
	hub := NewWSHub(4)
	c := hub.NewClient()
	require.NoError(t, hub.Register("bob", c))

	hub.Unregister(c)
	hub.Unregister(c)

	state, user := hub.State(c)
	assert.Equal(t, StateDisconnected, state)
	assert.Empty(t, user)
	assert.Zero(t, hub.Dispatch("bob", EventNewMessage, nil))
	assert.ErrorIs(t, hub.Register("bob", c), ErrClientClosed)
	assert.False(t, hub.Send(c, WSMessage{Type: EventJoined}))

	_, open := <-c.Outbound()
	assert.False(t, open)
}

func TestHubUnregisterBeforeJoin(t *testing.T) {
	hub := NewWSHub(4)
	c := hub.NewClient()
	hub.Unregister(c)

	state, _ := hub.State(c)
	assert.Equal(t, StateDisconnected, state)
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewWSHub(1)
	c := hub.NewClient()
	require.NoError(t, hub.Register("bob", c))

	assert.Equal(t, 1, hub.Dispatch("bob", EventNewMessage, nil))
	assert.Zero(t, hub.Dispatch("bob", EventNewMessage, nil))
}

func TestHubClose(t *testing.T) {
	hub := NewWSHub(4)
	a, b := hub.NewClient(), hub.NewClient()
	require.NoError(t, hub.Register("bob", a))

	hub.Close()

	for _, c := range []*Client{a, b} {
		state, _ := hub.State(c)
		assert.Equal(t, StateDisconnected, state)
	}
	assert.False(t, hub.IsOnline("bob"))
}

func TestHubConcurrentDispatchAndUnregister(t *testing.T) {
	hub := NewWSHub(256)
	clients := make([]*Client, 10)
	for i := range clients {
		clients[i] = hub.NewClient()
		require.NoError(t, hub.Register("bob", clients[i]))
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Dispatch("bob", EventNewMessage, "x")
		}()
	}
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	assert.Zero(t, hub.ConnectionCount("bob"))
}
