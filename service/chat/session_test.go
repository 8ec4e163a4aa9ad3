package chat

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestOnConnectGuestIdentity(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)

	ident := s.Identity()
	assert.True(t, ident.IsGuest)
	assert.Regexp(t, regexp.MustCompile(`^guest-\d+$`), ident.UserID)
	assert.Equal(t, "guest", ident.DisplayName)
	assert.Equal(t, 1, reg.Len())
}

func TestOnConnectAdoptsSuppliedIdentity(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect([]byte(`{"userId":"u1","displayName":"Alice","profileImage":"/img/a.png"}`), 8)

	ident := s.Identity()
	assert.False(t, ident.IsGuest)
	assert.Equal(t, "u1", ident.UserID)
	assert.Equal(t, "Alice", ident.DisplayName)
	assert.Equal(t, "/img/a.png", ident.ProfileImage)
}

func TestOnConnectBadIdentityFallsBackToGuest(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect([]byte(`{not json`), 8)
	assert.True(t, s.Identity().IsGuest)
}

func TestUpdateAuthMergesAndClearsGuest(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)
	require.True(t, s.Identity().IsGuest)

	reg.UpdateAuth(s, SetAuthReq{DisplayName: strPtr("Bob")})
	assert.True(t, s.Identity().IsGuest, "display name alone keeps guest status")
	assert.Equal(t, "Bob", s.Identity().DisplayName)

	reg.UpdateAuth(s, SetAuthReq{UserID: strPtr("u2")})
	ident := s.Identity()
	assert.False(t, ident.IsGuest)
	assert.Equal(t, "u2", ident.UserID)
	assert.Equal(t, "Bob", ident.DisplayName, "empty patch fields leave existing values")
}

func TestJoinLastWinsAndLeave(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)

	reg.Join(s, "room-a")
	assert.Equal(t, "room-a", s.JoinedRoom())

	reg.Join(s, "room-b")
	assert.Equal(t, "room-b", s.JoinedRoom(), "a session is in at most one room")
	assert.Empty(t, reg.ListByRoom("room-a"))
	assert.Len(t, reg.ListByRoom("room-b"), 1)

	reg.Leave(s, "room-a")
	assert.Equal(t, "room-b", s.JoinedRoom(), "leaving a different room is a no-op")
	reg.Leave(s, "room-b")
	assert.Empty(t, s.JoinedRoom())
}

func TestSetWatchListReplacesWholesale(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)

	reg.SetWatchList(s, []string{"r1", "r2"})
	assert.True(t, s.Watches("r1"))
	assert.True(t, s.Watches("r2"))

	reg.SetWatchList(s, []string{"r3"})
	assert.False(t, s.Watches("r1"))
	assert.True(t, s.Watches("r3"))
}

func TestWatchAllSentinel(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)
	reg.SetWatchList(s, []string{WatchAllSentinel})
	assert.True(t, s.Watches("anything"))
}

func TestRecordRead(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)

	reg.RecordRead(s, "", 7)
	assert.Zero(t, s.LastSeen(""), "missing room id is ignored")

	reg.RecordRead(s, "r1", 7)
	assert.EqualValues(t, 7, s.LastSeen("r1"))
	reg.RecordRead(s, "r1", 9)
	assert.EqualValues(t, 9, s.LastSeen("r1"))
}

func TestOnDisconnectRemovesState(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 8)
	reg.Join(s, "r1")

	reg.OnDisconnect(s)
	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.ListByRoom("r1"))

	select {
	case <-s.quit:
	default:
		t.Fatal("disconnect must signal the writer")
	}
	// A second disconnect must not panic.
	reg.OnDisconnect(s)
}

func TestDeliverBestEffort(t *testing.T) {
	reg := NewRegistry()
	s := reg.OnConnect(nil, 1)

	assert.True(t, s.deliver([]byte("a")))
	assert.False(t, s.deliver([]byte("b")), "full queue drops instead of blocking")
}
