package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	fail   bool
	events []Event
}

func (s *recordingSink) Deliver(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("transport down")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestAsyncDispatcherDelivers(t *testing.T) {
	sink := &recordingSink{}
	d := NewAsyncDispatcher(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	d.Dispatch(NewEvent(KindMatchCreated, 42, map[string]any{"match_id": "1"}))
	d.Dispatch(NewEvent(KindMessageReceived, 43, nil))
	d.Close()

	events := sink.delivered()
	require.Len(t, events, 2)
	assert.Equal(t, KindMatchCreated, events[0].Kind)
	assert.Equal(t, uint64(42), events[0].TargetUserID)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestAsyncDispatcherSwallowsSinkFailures(t *testing.T) {
	sink := &recordingSink{fail: true}
	d := NewAsyncDispatcher(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// must not panic or block the caller
	d.Dispatch(NewEvent(KindMessageReceived, 1, nil))
	d.Close()

	assert.Empty(t, sink.delivered())
}
