package chat

import (
	"sync"

	"github.com/HighK/chatrelay/logger"
)

// DeliveryQueue is the process-wide FIFO of already-delivered messages
// awaiting watcher fan-out.
type DeliveryQueue struct {
	mu    sync.Mutex
	items []ChatEvent
}

func NewDeliveryQueue() *DeliveryQueue {
	return &DeliveryQueue{}
}

func (q *DeliveryQueue) Push(ev ChatEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
}

func (q *DeliveryQueue) Pop() (ChatEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return ChatEvent{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notifier drains the delivery queue on a fixed period and fans new
// messages out to sessions watching rooms they have not joined. Each
// session receives one chats event per tick carrying its whole batch.
type Notifier struct {
	reg   *Registry
	queue *DeliveryQueue
	g     gate
}

func NewNotifier(reg *Registry, queue *DeliveryQueue) *Notifier {
	return &Notifier{reg: reg, queue: queue}
}

// Tick runs one fan-out cycle. Returns false when the previous cycle is
// still in flight and this one was skipped.
func (n *Notifier) Tick() bool {
	if !n.g.TryAcquire() {
		return false
	}
	defer n.g.Release()

	sessions := n.reg.ListAll()
	batches := make(map[*Session][]ChatEvent)
	for {
		ev, ok := n.queue.Pop()
		if !ok {
			break
		}
		for _, s := range sessions {
			if !s.Watches(ev.RoomID) {
				continue
			}
			// Skip anything the watcher already reported reading.
			if ev.MsgID <= s.LastSeen(ev.RoomID) {
				continue
			}
			batches[s] = append(batches[s], ev)
		}
	}

	for s, msgs := range batches {
		payload := mustFrame(EvtMsg, ChatEvent{Type: MsgTypeChats, Messages: msgs})
		if !s.deliver(payload) {
			logger.Debug("[notifier] slow watcher, batch dropped conn=" + s.ConnID)
		}
	}
	return true
}
