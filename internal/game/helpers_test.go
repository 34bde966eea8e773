package game

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestConn() *ClientConn {
	return &ClientConn{
		ws:   nil,
		send: make(chan []byte, 1024),
		done: make(chan struct{}),
	}
}

func readEnvelopesNonBlocking(c *ClientConn) []Envelope {
	var envs []Envelope
	for {
		select {
		case msg := <-c.send:
			var env Envelope
			if json.Unmarshal(msg, &env) == nil {
				envs = append(envs, env)
			}
		default:
			return envs
		}
	}
}

func findLast[T any](envs []Envelope, typ string) (T, bool) {
	var out T
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type != typ {
			continue
		}
		if json.Unmarshal(envs[i].Payload, &out) == nil {
			return out, true
		}
	}
	return out, false
}

func hasType(envs []Envelope, typ string) bool {
	for _, e := range envs {
		if e.Type == typ {
			return true
		}
	}
	return false
}

type fakeTimer struct {
	d         time.Duration
	fn        func()
	cancelled bool
}

type fakeTimers struct {
	all []*fakeTimer
}

func (f *fakeTimers) After(d time.Duration, fn func()) func() {
	t := &fakeTimer{d: d, fn: fn}
	f.all = append(f.all, t)
	return func() { t.cancelled = true }
}

func (f *fakeTimers) last() *fakeTimer {
	if len(f.all) == 0 {
		return nil
	}
	return f.all[len(f.all)-1]
}

type memSink struct {
	records map[string][][]string
}

func (s *memSink) Record(characterID string, outcomes []string) {
	if s.records == nil {
		s.records = make(map[string][][]string)
	}
	s.records[characterID] = append(s.records[characterID], outcomes)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testRoom struct {
	*Room
	t         *testing.T
	timers    *fakeTimers
	sink      *memSink
	conns     map[string]*ClientConn
	closedIDs []string
	clock     time.Time
}

func newTestRoom(t *testing.T) *testRoom {
	t.Helper()
	tr := &testRoom{
		t:      t,
		timers: &fakeTimers{},
		sink:   &memSink{},
		conns:  make(map[string]*ClientConn),
		clock:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	tr.Room = newRoom("room-1", RoomDeps{
		Log:     discardLogger(),
		Sink:    tr.sink,
		Timers:  tr.timers,
		Now:     func() time.Time { return tr.clock },
		OnClose: func(id string) { tr.closedIDs = append(tr.closedIDs, id) },
	})
	return tr
}

// join seats username with a fresh connection whose id is "id-<username>".
func (tr *testRoom) join(username string) *Player {
	tr.t.Helper()
	return tr.joinAs("id-"+username, username, "")
}

func (tr *testRoom) joinAs(id, username, avatar string) *Player {
	tr.t.Helper()
	c := newTestConn()
	p, err := tr.Join(id, c, username, avatar)
	require.NoError(tr.t, err)
	tr.conns[id] = c
	return p
}

func (tr *testRoom) drain(p *Player) []Envelope {
	return readEnvelopesNonBlocking(tr.conns[p.id])
}

func (tr *testRoom) drainAll() {
	for _, c := range tr.conns {
		readEnvelopesNonBlocking(c)
	}
}

// readyAll readies every connected non-host player.
func (tr *testRoom) readyAll() {
	tr.t.Helper()
	for _, p := range tr.players {
		if !p.isHost && p.connected && !p.ready {
			require.NoError(tr.t, tr.ToggleReady(p.id))
		}
	}
}

func (tr *testRoom) start(s Settings) {
	tr.t.Helper()
	tr.readyAll()
	require.NoError(tr.t, tr.StartGame(tr.host().id, Answer{ID: "ans"}, s))
}

func (tr *testRoom) setTeam(p *Player, team string) {
	tr.t.Helper()
	require.NoError(tr.t, tr.ChangeTeam(p.id, &team))
}

func candidate(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"name":"char %s"}`, id, id))
}

func (tr *testRoom) miss(p *Player, id string) {
	tr.t.Helper()
	require.NoError(tr.t, tr.SubmitGuess(p.id, candidate(id), false, false))
}

func (tr *testRoom) partial(p *Player, id string) {
	tr.t.Helper()
	require.NoError(tr.t, tr.SubmitGuess(p.id, candidate(id), false, true))
}

// win submits the correct answer and reports the win.
func (tr *testRoom) win(p *Player) {
	tr.t.Helper()
	require.NoError(tr.t, tr.SubmitGuess(p.id, candidate("ans"), true, false))
	require.NoError(tr.t, tr.EndGame(p.id, "win"))
}
