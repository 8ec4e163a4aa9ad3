package chat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/HighK/chatrelay/module/chat/store"
)

// fakeMessageStore is an in-memory MessageStore with error injection and
// call counting.
type fakeMessageStore struct {
	mu          sync.Mutex
	byRoom      map[string][]store.StoredMessage
	insertErr   error
	failRoom    string // when set, insertErr only applies to this room
	updateErr   error
	insertCalls int
	latestCalls int
	onInsert    func() // runs while the insert is "in flight"
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{byRoom: make(map[string][]store.StoredMessage)}
}

func (f *fakeMessageStore) InsertMany(_ context.Context, msgs []store.StoredMessage) error {
	f.mu.Lock()
	f.insertCalls++
	hook := f.onInsert
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil && (f.failRoom == "" || (len(msgs) > 0 && msgs[0].RoomID == f.failRoom)) {
		return f.insertErr
	}
	for _, m := range msgs {
		f.byRoom[m.RoomID] = append(f.byRoom[m.RoomID], m)
	}
	return nil
}

func (f *fakeMessageStore) LatestSeq(_ context.Context, roomID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	var max int64
	for _, m := range f.byRoom[roomID] {
		if m.Seq > max {
			max = m.Seq
		}
	}
	return max, nil
}

func (f *fakeMessageStore) FindByRoomPaginated(_ context.Context, roomID string, beforeSeq, limit int64) ([]store.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.StoredMessage
	for _, m := range f.byRoom[roomID] {
		if beforeSeq > 0 && m.Seq >= beforeSeq {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageStore) UpdateContentByID(_ context.Context, roomID string, seq int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, m := range f.byRoom[roomID] {
		if m.Seq == seq {
			f.byRoom[roomID][i].ContentKind = "text"
			f.byRoom[roomID][i].ContentBody = content
		}
	}
	return nil
}

func (f *fakeMessageStore) seqs(roomID string) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.byRoom[roomID]))
	for _, m := range f.byRoom[roomID] {
		out = append(out, m.Seq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type roomSummary struct {
	Seq  int64
	Text string
	Time time.Time
}

// fakeRoomStore is an in-memory RoomStore.
type fakeRoomStore struct {
	mu           sync.Mutex
	summaries    map[string]roomSummary
	summaryCalls int
	cursors      map[string]int64 // room|user -> seq
	cursorCalls  int
	cursorErr    error
	profiles     map[string]string
	lookupCalls  int
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		summaries: make(map[string]roomSummary),
		cursors:   make(map[string]int64),
		profiles:  make(map[string]string),
	}
}

func (f *fakeRoomStore) UpdateRoomSummary(_ context.Context, roomID string, lastSeq int64, lastText string, lastTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	if cur, ok := f.summaries[roomID]; ok && cur.Seq >= lastSeq {
		return nil
	}
	f.summaries[roomID] = roomSummary{Seq: lastSeq, Text: lastText, Time: lastTime}
	return nil
}

func (f *fakeRoomStore) UpdateReadCursor(_ context.Context, roomID, userID string, seq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorCalls++
	if f.cursorErr != nil {
		return f.cursorErr
	}
	f.cursors[roomID+"|"+userID] = seq
	return nil
}

func (f *fakeRoomStore) LookupProfileRef(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	return f.profiles[userID], nil
}

func (f *fakeRoomStore) cursor(roomID, userID string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.cursors[roomID+"|"+userID]
	return v, ok
}

func (f *fakeRoomStore) cursorCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursorCalls
}

// drainFrames empties the session's send queue into decoded frames.
func drainFrames(s *Session) []Frame {
	var out []Frame
	for {
		select {
		case payload := <-s.send:
			var f Frame
			if err := json.Unmarshal(payload, &f); err == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

func decodeChatEvent(f Frame) ChatEvent {
	var ev ChatEvent
	_ = json.Unmarshal(f.Data, &ev)
	return ev
}
