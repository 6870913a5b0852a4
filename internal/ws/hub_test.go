package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miroirapp/miroir/internal/presence"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHub() (*Hub, *presence.Registry) {
	registry := presence.NewRegistry()
	return NewHub(nil, registry, discardLogger()), registry
}

// attach registers a bare client without a real socket; Push only touches
// the send queue.
func attach(hub *Hub, registry *presence.Registry, userID uint64, buffer int) *Client {
	c := &Client{
		hub:    hub,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		handle: registry.Connect(userID),
	}
	hub.RegisterClient(c)
	return c
}

func TestPushDeliversToHandle(t *testing.T) {
	hub, registry := testHub()
	c := attach(hub, registry, 1, 4)

	err := hub.Push(context.Background(), c.handle, "message.new", map[string]any{"body": "hi"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(<-c.send, &env))
	assert.Equal(t, "message.new", env.Type)
	assert.Equal(t, "hi", env.Payload["body"])
}

func TestPushUnknownHandleIsStale(t *testing.T) {
	hub, registry := testHub()

	ghost := presence.Handle{ID: "gone", UserID: 1}
	err := hub.Push(context.Background(), ghost, "typing", nil)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.Empty(t, registry.Lookup(1))
}

func TestPushFullBufferDropsClient(t *testing.T) {
	hub, registry := testHub()
	c := attach(hub, registry, 1, 1)

	require.NoError(t, hub.Push(context.Background(), c.handle, "typing", nil))

	// second push finds the queue full: connection cut, presence released
	err := hub.Push(context.Background(), c.handle, "typing", nil)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.Empty(t, registry.Lookup(1))
}

func TestUnregisterReleasesPresence(t *testing.T) {
	hub, registry := testHub()
	c := attach(hub, registry, 1, 4)
	require.Len(t, registry.Lookup(1), 1)

	hub.UnregisterClient(c)
	assert.Empty(t, registry.Lookup(1))

	// repeated unregister is harmless
	hub.UnregisterClient(c)
}

func TestReplyAfterDropDoesNotPanic(t *testing.T) {
	hub, registry := testHub()
	c := attach(hub, registry, 1, 1)

	hub.UnregisterClient(c)

	// the read pump may still be answering an inbound frame while the
	// hub drops the client; queueing a reply must never panic
	c.reply(Envelope{Type: "message.ack"})
	c.reply(Envelope{Type: "error"})

	select {
	case <-c.done:
	default:
		t.Fatal("drop must signal the write pump")
	}
}

func TestPushWithoutSubscribersIsStale(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hub := NewHub(rdb, presence.NewRegistry(), discardLogger())

	// no instance holds user 42, so the publish reaches nobody
	ghost := presence.Handle{ID: "gone", UserID: 42}
	err = hub.Push(context.Background(), ghost, "message.new", nil)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestPushForwardsThroughBridge(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	registryA := presence.NewRegistry()
	hubA := NewHub(redis.NewClient(&redis.Options{Addr: mr.Addr()}), registryA, discardLogger())
	c := attach(hubA, registryA, 7, 4)

	hubB := NewHub(redis.NewClient(&redis.Options{Addr: mr.Addr()}), presence.NewRegistry(), discardLogger())
	remote := presence.Handle{ID: "held-elsewhere", UserID: 7}

	// the publish succeeds once hubA's subscription for user 7 is live
	require.Eventually(t, func() bool {
		return hubB.Push(context.Background(), remote, "message.new", map[string]any{"body": "hi"}) == nil
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "message.new", env.Type)
		assert.Equal(t, "hi", env.Payload["body"])
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not deliver to the local client")
	}
}
