package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultMaxRooms = 259
	maxRoomIDRunes  = 64
)

type RegistryConfig struct {
	MaxRooms  int
	IdleTTL   time.Duration
	InboxSize int
}

// Registry maps room ids to room actors. Its lock only guards the map; room
// state is never touched while holding it.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*RoomActor

	cfg  RegistryConfig
	sink StatsSink
	log  *slog.Logger
	now  func() time.Time
}

func NewRegistry(cfg RegistryConfig, sink StatsSink, log *slog.Logger) *Registry {
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = DefaultMaxRooms
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		rooms: make(map[string]*RoomActor),
		cfg:   cfg,
		sink:  sink,
		log:   log,
		now:   time.Now,
	}
}

func validRoomID(id string) error {
	if strings.TrimSpace(id) == "" {
		return badInput("roomId is required")
	}
	if utf8.RuneCountInString(id) > maxRoomIDRunes {
		return badInput("roomId is too long")
	}
	return nil
}

// newActorLocked registers a fresh room. Caller holds g.mu.
func (g *Registry) newActorLocked(id string) (*RoomActor, error) {
	if len(g.rooms) >= g.cfg.MaxRooms {
		return nil, ErrRoomsFull
	}
	var a *RoomActor
	a = newRoomActor(id, RoomDeps{
		Log:     g.log,
		Sink:    g.sink,
		Now:     g.now,
		OnClose: func(string) { g.remove(id, a) },
	}, g.cfg.InboxSize)
	g.rooms[id] = a
	g.log.Info("room created", "room", id, "rooms", len(g.rooms))
	return a, nil
}

func (g *Registry) remove(id string, a *RoomActor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.rooms[id]; ok && cur == a {
		delete(g.rooms, id)
	}
}

// CreateRoom opens a new room with the caller as host.
func (g *Registry) CreateRoom(ctx context.Context, roomID, connID string, conn Sender, username, avatarID string) (*RoomActor, error) {
	if err := validRoomID(roomID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	if _, ok := g.rooms[roomID]; ok {
		g.mu.Unlock()
		return nil, ErrRoomExists
	}
	a, err := g.newActorLocked(roomID)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := a.Do(ctx, joinCmd(connID, conn, username, avatarID)); err != nil {
		abandon(a)
		return nil, err
	}
	return a, nil
}

// JoinRoom joins an existing room or creates it with the joiner as host, so a
// shared link works before anyone opened the room.
func (g *Registry) JoinRoom(ctx context.Context, roomID, connID string, conn Sender, username, avatarID string) (*RoomActor, error) {
	if err := validRoomID(roomID); err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		g.mu.Lock()
		a, ok := g.rooms[roomID]
		var err error
		if !ok {
			a, err = g.newActorLocked(roomID)
		}
		g.mu.Unlock()
		if err != nil {
			return nil, err
		}

		err = a.Do(ctx, joinCmd(connID, conn, username, avatarID))
		if errors.Is(err, ErrRoomClosed) && attempt == 0 {
			// closed between lookup and join; the next pass opens a new one
			g.remove(roomID, a)
			continue
		}
		if err != nil {
			if !ok {
				abandon(a)
			}
			return nil, err
		}
		return a, nil
	}
}

func joinCmd(connID string, conn Sender, username, avatarID string) func(*Room) error {
	return func(r *Room) error {
		_, err := r.Join(connID, conn, username, avatarID)
		return err
	}
}

// abandon closes a room nobody managed to join.
func abandon(a *RoomActor) {
	a.Post(func(r *Room) {
		if r.PlayerCount() == 0 {
			r.close("empty")
		}
	})
}

func (g *Registry) Get(roomID string) (*RoomActor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.rooms[roomID]
	return a, ok
}

// Delete closes the room and drops it from the registry.
func (g *Registry) Delete(roomID string) bool {
	g.mu.Lock()
	a, ok := g.rooms[roomID]
	if ok {
		delete(g.rooms, roomID)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}
	a.Post(func(r *Room) { r.close("deleted") })
	return true
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

func (g *Registry) snapshot() []*RoomActor {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*RoomActor, 0, len(g.rooms))
	for _, a := range g.rooms {
		out = append(out, a)
	}
	return out
}

// Sweep asks every room to close itself if it has been idle too long. The
// check runs inside each room's own queue; a room whose inbox is full is
// skipped until the next sweep.
func (g *Registry) Sweep() {
	ttl := g.cfg.IdleTTL
	if ttl <= 0 {
		return
	}
	for _, a := range g.snapshot() {
		if !a.TryPost(func(r *Room) { r.Sweep(ttl) }) {
			g.log.Debug("room busy, sweep skipped", "room", a.ID())
		}
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (g *Registry) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || g.cfg.IdleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			g.Sweep()
		}
	}
}

// Shutdown closes every room. A room with a full inbox gets its close
// delivered in the background.
func (g *Registry) Shutdown() {
	for _, a := range g.snapshot() {
		closeRoom := func(r *Room) { r.close("server_shutdown") }
		if !a.TryPost(closeRoom) {
			go a.Post(closeRoom)
		}
	}
}
