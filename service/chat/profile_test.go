package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileGetColdMissFillsAsync(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.mu.Lock()
	rooms.profiles["u1"] = "/img/u1.png"
	rooms.mu.Unlock()

	c := NewProfileCache(rooms, time.Second)
	assert.Empty(t, c.Get("u1"), "cold cache returns the placeholder")

	require.Eventually(t, func() bool {
		return c.Get("u1") == "/img/u1.png"
	}, time.Second, 5*time.Millisecond)
}

func TestProfileGetCachesUnknownUsers(t *testing.T) {
	rooms := newFakeRoomStore()
	c := NewProfileCache(rooms, time.Second)

	assert.Empty(t, c.Get("nobody"))
	require.Eventually(t, func() bool {
		rooms.mu.Lock()
		defer rooms.mu.Unlock()
		return rooms.lookupCalls == 1
	}, time.Second, 5*time.Millisecond)

	// A hit for the cached "" must not trigger another lookup.
	assert.Empty(t, c.Get("nobody"))
	time.Sleep(20 * time.Millisecond)
	rooms.mu.Lock()
	calls := rooms.lookupCalls
	rooms.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestProfilePutAndClear(t *testing.T) {
	rooms := newFakeRoomStore()
	c := NewProfileCache(rooms, time.Second)

	c.Put("u1", "/img/self.png")
	assert.Equal(t, "/img/self.png", c.Get("u1"))

	c.Clear()
	assert.Empty(t, c.Get("u1"), "cleared entries miss again")
}

func TestProfileEmptyUserID(t *testing.T) {
	rooms := newFakeRoomStore()
	c := NewProfileCache(rooms, time.Second)

	assert.Empty(t, c.Get(""))
	c.Put("", "ref")
	time.Sleep(10 * time.Millisecond)
	rooms.mu.Lock()
	calls := rooms.lookupCalls
	rooms.mu.Unlock()
	assert.Zero(t, calls)
}
