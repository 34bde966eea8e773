package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ClientConn is one WebSocket client. Rooms write to it through Send, which
// never blocks: a client that cannot keep up loses frames.
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newClientConn(ws *websocket.Conn, buffer int) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *ClientConn) Send(env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		// slow reader, drop
	}
}

func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *ClientConn) writeLoop(ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// handleWS: /ws?ticket=... ; the ticket comes from /api/ticket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		http.Error(w, "missing ticket", http.StatusBadRequest)
		return
	}
	claims, err := s.tickets.Verify(ticket)
	if err != nil {
		http.Error(w, "invalid ticket", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	cc := newClientConn(ws, s.cfg.SendBuffer)
	sess := &wsSession{
		srv:     s,
		id:      uuid.NewString(),
		conn:    cc,
		rooms:   make(map[string]*RoomActor),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.MsgRate), s.cfg.MsgBurst),
	}
	sess.log = s.log.With("conn", sess.id, "client", claims.ClientID)
	sess.log.Debug("ws connected")

	go cc.writeLoop(s.cfg.PingInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		if !sess.limiter.Allow() {
			sess.reply(errRateLimited)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			sess.reply(badInput("invalid json"))
			continue
		}
		if err := sess.dispatch(ctx, env); err != nil {
			sess.log.Debug("action rejected", "type", env.Type, "err", err)
			sess.reply(err)
		}
	}

	sess.leaveAll()
	cc.Close()
	sess.log.Debug("ws disconnected")
}

var (
	errRateLimited = errors.New("rate_limited: slow down")
	errUnknownType = errors.New("unknown message type")
)

// wsSession is the per-connection state of the reader loop.
type wsSession struct {
	srv     *Server
	id      string
	conn    *ClientConn
	rooms   map[string]*RoomActor
	limiter *rate.Limiter
	log     *slog.Logger
}

func (c *wsSession) reply(err error) {
	code := ErrorCode(err)
	switch {
	case errors.Is(err, errRateLimited):
		code = "rate_limited"
	case errors.Is(err, errUnknownType):
		code = "unknown_type"
	}
	c.conn.Send(envelope("error", ErrorPayload{Code: code, Message: err.Error()}))
}

func (c *wsSession) leaveAll() {
	for id, a := range c.rooms {
		a.Post(func(r *Room) { _ = r.Disconnect(c.id) })
		delete(c.rooms, id)
	}
}

func (c *wsSession) dispatch(ctx context.Context, env Envelope) error {
	h, ok := handlers[env.Type]
	if !ok {
		return errUnknownType
	}
	return h(ctx, c, env.Payload)
}

type handler func(ctx context.Context, c *wsSession, raw json.RawMessage) error

func decode[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, badInput("payload is required")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, badInput("invalid payload")
	}
	return p, nil
}

// onRoom decodes P, resolves the room named by its roomId and runs fn inside
// that room's queue.
func onRoom[P any](fn func(r *Room, connID string, p P) error) handler {
	return func(ctx context.Context, c *wsSession, raw json.RawMessage) error {
		target, err := decode[RoomPayload](raw)
		if err != nil {
			return err
		}
		p, err := decode[P](raw)
		if err != nil {
			return err
		}
		a, ok := c.srv.rooms.Get(target.RoomID)
		if !ok {
			return ErrRoomNotFound
		}
		return a.Do(ctx, func(r *Room) error { return fn(r, c.id, p) })
	}
}

func joinHandler(create bool) handler {
	return func(ctx context.Context, c *wsSession, raw json.RawMessage) error {
		p, err := decode[CreateRoomPayload](raw)
		if err != nil {
			return err
		}
		join := c.srv.rooms.JoinRoom
		if create {
			join = c.srv.rooms.CreateRoom
		}
		a, err := join(ctx, p.RoomID, c.id, c.conn, p.Username, string(p.AvatarID))
		if err != nil {
			return err
		}
		c.rooms[p.RoomID] = a
		return nil
	}
}

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"create_room": joinHandler(true),
		"join_room":   joinHandler(false),
		"toggle_ready": onRoom(func(r *Room, id string, _ RoomPayload) error {
			return r.ToggleReady(id)
		}),
		"update_settings": onRoom(func(r *Room, id string, p SettingsPayload) error {
			return r.UpdateSettings(id, p.Settings)
		}),
		"request_settings": onRoom(func(r *Room, id string, _ RoomPayload) error {
			return r.RequestSettings(id)
		}),
		"start_game": onRoom(func(r *Room, id string, p StartGamePayload) error {
			return r.StartGame(id, p.Answer, p.Settings)
		}),
		"submit_guess": onRoom(func(r *Room, id string, p SubmitGuessPayload) error {
			return r.SubmitGuess(id, p.GuessData, p.IsCorrect, p.IsPartialCorrect)
		}),
		"end_game": onRoom(func(r *Room, id string, p EndGamePayload) error {
			return r.EndGame(id, p.Result)
		}),
		"time_out": onRoom(func(r *Room, id string, _ RoomPayload) error {
			return r.TimeOut(id)
		}),
		"reveal_tags": onRoom(func(r *Room, id string, p RevealTagsPayload) error {
			return r.RevealTags(id, p.Tags)
		}),
		"kick_player": onRoom(func(r *Room, id string, p TargetPayload) error {
			return r.Kick(id, p.TargetID)
		}),
		"transfer_host": onRoom(func(r *Room, id string, p TargetPayload) error {
			return r.TransferHost(id, p.TargetID)
		}),
		"toggle_visibility": onRoom(func(r *Room, id string, _ RoomPayload) error {
			return r.ToggleVisibility(id)
		}),
		"rename_room": onRoom(func(r *Room, id string, p RenamePayload) error {
			return r.Rename(id, p.RoomName)
		}),
		"enter_manual_mode": onRoom(func(r *Room, id string, _ RoomPayload) error {
			return r.EnterManualMode(id)
		}),
		"set_answer_setter": onRoom(func(r *Room, id string, p TargetPayload) error {
			return r.SetAnswerSetter(id, p.TargetID)
		}),
		"set_answer": onRoom(func(r *Room, id string, p SetAnswerPayload) error {
			return r.SetAnswer(id, p.Answer, p.Hints)
		}),
		"update_message": onRoom(func(r *Room, id string, p MessagePayload) error {
			return r.UpdateMessage(id, p.Message)
		}),
		"change_team": onRoom(func(r *Room, id string, p TeamPayload) error {
			return r.ChangeTeam(id, p.Team)
		}),
	}
}
