package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorFlushWritesOnlyChanges(t *testing.T) {
	reg := NewRegistry()
	rooms := newFakeRoomStore()
	s := reg.OnConnect([]byte(`{"userId":"u1"}`), 8)
	reg.RecordRead(s, "r1", 5)

	f := NewCursorFlusher(reg, rooms, time.Second)
	require.True(t, f.Tick(context.Background()))

	seq, ok := rooms.cursor("r1", "u1")
	require.True(t, ok)
	assert.EqualValues(t, 5, seq)
	assert.Equal(t, 1, rooms.cursorCallCount())

	// Unchanged cursor: no second write.
	require.True(t, f.Tick(context.Background()))
	assert.Equal(t, 1, rooms.cursorCallCount())

	reg.RecordRead(s, "r1", 8)
	require.True(t, f.Tick(context.Background()))
	assert.Equal(t, 2, rooms.cursorCallCount())
	seq, _ = rooms.cursor("r1", "u1")
	assert.EqualValues(t, 8, seq)
}

func TestCursorFlushSkipsGuests(t *testing.T) {
	reg := NewRegistry()
	rooms := newFakeRoomStore()
	guest := reg.OnConnect(nil, 8)
	reg.RecordRead(guest, "r1", 3)

	f := NewCursorFlusher(reg, rooms, time.Second)
	require.True(t, f.Tick(context.Background()))
	assert.Zero(t, rooms.cursorCallCount())
}

func TestCursorFlushRetriesAfterError(t *testing.T) {
	reg := NewRegistry()
	rooms := newFakeRoomStore()
	s := reg.OnConnect([]byte(`{"userId":"u1"}`), 8)
	reg.RecordRead(s, "r1", 5)

	rooms.mu.Lock()
	rooms.cursorErr = fmt.Errorf("store down")
	rooms.mu.Unlock()

	f := NewCursorFlusher(reg, rooms, time.Second)
	require.True(t, f.Tick(context.Background()))
	_, ok := rooms.cursor("r1", "u1")
	assert.False(t, ok)

	rooms.mu.Lock()
	rooms.cursorErr = nil
	rooms.mu.Unlock()

	// Failed write is not marked flushed, so the next tick retries.
	require.True(t, f.Tick(context.Background()))
	seq, ok := rooms.cursor("r1", "u1")
	require.True(t, ok)
	assert.EqualValues(t, 5, seq)
}
