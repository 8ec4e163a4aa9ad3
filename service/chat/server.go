package chat

import (
	"context"
	"time"

	"github.com/HighK/chatrelay/global"
	"github.com/HighK/chatrelay/logger"
	"github.com/HighK/chatrelay/service/storage"
	"github.com/HighK/chatrelay/tools/safe"
)

// Server wires the relay core together and owns the periodic background
// cycles: write batcher flush, watcher fan-out, read-cursor flush and
// the profile cache clear.
type Server struct {
	cfg *global.AppConfig

	reg      *Registry
	router   *Router
	batcher  *Batcher
	notifier *Notifier
	cursors  *CursorFlusher
	profiles *ProfileCache
	history  *HistoryService
	queue    *DeliveryQueue
	presence *storage.Presence
}

// NewServer builds a relay. msgs may be nil when cfg.DurableStore is
// off; rooms is always required (cursors and profiles live there).
func NewServer(cfg *global.AppConfig, msgs MessageStore, rooms RoomStore, presence *storage.Presence) *Server {
	reg := NewRegistry()
	queue := NewDeliveryQueue()
	profiles := NewProfileCache(rooms, cfg.StoreTimeout)

	s := &Server{
		cfg:      cfg,
		reg:      reg,
		queue:    queue,
		profiles: profiles,
		notifier: NewNotifier(reg, queue),
		cursors:  NewCursorFlusher(reg, rooms, cfg.StoreTimeout),
		history:  NewHistoryService(msgs, cfg.HistoryPageSize, cfg.StoreTimeout),
		presence: presence,
	}

	durable := cfg.DurableStore && msgs != nil
	if durable {
		s.batcher = NewBatcher(msgs, rooms, profiles, queue,
			func(roomID string, ev ChatEvent) {
				s.router.EmitToRoom(roomID, ev)
			}, cfg.StoreTimeout)
	}
	s.router = NewRouter(reg, s.batcher, queue, msgs, durable, cfg.StoreTimeout)
	return s
}

func (s *Server) Registry() *Registry     { return s.reg }
func (s *Server) Router() *Router         { return s.router }
func (s *Server) Profiles() *ProfileCache { return s.profiles }

// Run starts the background cycles and returns; they stop when ctx is
// done.
func (s *Server) Run(ctx context.Context) {
	if s.batcher != nil {
		safe.Go("flush", func() {
			s.runTicker(ctx, "flush", s.cfg.FlushInterval, func() {
				s.batcher.Flush(ctx)
			})
		})
	}
	safe.Go("fanout", func() {
		s.runTicker(ctx, "fanout", s.cfg.FanoutInterval, func() {
			s.notifier.Tick()
		})
	})
	safe.Go("cursor", func() {
		s.runTicker(ctx, "cursor", s.cfg.CursorInterval, func() {
			s.cursors.Tick(ctx)
		})
	})
	safe.Go("profile-clear", func() {
		s.profiles.RunClearLoop(ctx, s.cfg.CacheClearEvery)
	})
}

func (s *Server) runTicker(ctx context.Context, name string, every time.Duration, fn func()) {
	if every <= 0 {
		every = 500 * time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()
	logger.Infof("[server] %s cycle every %s", name, every)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
