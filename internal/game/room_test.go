package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostCount(r *Room) int {
	n := 0
	for _, p := range r.players {
		if p.isHost {
			n++
		}
	}
	return n
}

func TestRoom_Join(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "first player hosts",
			run: func(t *testing.T) {
				tr := newTestRoom(t)
				a := tr.join("alice")
				b := tr.join("bob")
				assert.True(t, a.isHost)
				assert.False(t, b.isHost)

				roster, ok := findLast[RosterPayload](tr.drain(a), "roster")
				require.True(t, ok)
				assert.Len(t, roster.Players, 2)
				assert.Nil(t, roster.Players[0].Team)
			},
		},
		{
			name: "name taken case-insensitively",
			run: func(t *testing.T) {
				tr := newTestRoom(t)
				tr.join("alice")
				_, err := tr.Join("x", newTestConn(), "ALICE", "")
				require.ErrorIs(t, err, ErrNameTaken)
				require.ErrorIs(t, err, ErrConflict)
				assert.Equal(t, "conflict", ErrorCode(err))
			},
		},
		{
			name: "avatar collision",
			run: func(t *testing.T) {
				tr := newTestRoom(t)
				tr.joinAs("a", "alice", "7")
				_, err := tr.Join("b", newTestConn(), "bob", "7")
				require.ErrorIs(t, err, ErrAvatarTaken)

				tr.joinAs("c", "carol", NoAvatar)
				tr.joinAs("d", "dave", NoAvatar)
			},
		},
		{
			name: "blank username",
			run: func(t *testing.T) {
				tr := newTestRoom(t)
				_, err := tr.Join("a", newTestConn(), "   ", "")
				require.ErrorIs(t, err, ErrBadInput)
			},
		},
		{
			name: "mid-session joiner observes and resets at the next lobby",
			run: func(t *testing.T) {
				tr := newTestRoom(t)
				a := tr.join("alice")
				tr.join("bob")
				tr.start(Settings{})

				late := tr.join("late")
				assert.Equal(t, SeatObserver, late.seat.Kind())
				assert.True(t, late.joinedMidSession)
				envs := tr.drain(late)
				assert.True(t, hasType(envs, "game_started"))
				assert.True(t, hasType(envs, "guess_history"))

				err := tr.SubmitGuess(late.id, candidate("1"), false, false)
				require.ErrorIs(t, err, ErrObserver)

				tr.win(a)
				require.False(t, tr.InSession())
				assert.Equal(t, SeatUnassigned, late.seat.Kind())
				assert.False(t, late.ready)
				assert.False(t, late.joinedMidSession)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestRoom_ReconnectKeepsScore(t *testing.T) {
	tr := newTestRoom(t)
	a := tr.join("alice")
	tr.join("bob")
	tr.start(Settings{MaxAttempts: 10})
	tr.miss(a, "1")
	tr.win(a)
	require.Equal(t, 4, a.score)

	require.NoError(t, tr.Disconnect(a.id))
	assert.False(t, a.connected)
	assert.Equal(t, 1, hostCount(tr.Room))

	back := tr.joinAs("alice-2", "Alice", "")
	assert.Same(t, a, back)
	assert.Equal(t, "alice-2", back.id)
	assert.Equal(t, 4, back.score)
	assert.True(t, back.connected)
	assert.False(t, back.isHost, "host moved to bob while alice was away")
}

func TestRoom_ReconnectMidSessionKeepsTrack(t *testing.T) {
	tr := newTestRoom(t)
	tr.join("alice")
	b := tr.join("bob")
	tr.join("carol")
	tr.start(Settings{})
	tr.miss(b, "1")
	tr.miss(b, "2")

	require.NoError(t, tr.Disconnect(b.id))
	back := tr.joinAs("bob-2", "bob", "")
	assert.Same(t, b, back)
	assert.Equal(t, 2, back.track.Attempts())
	assert.True(t, back.participant)

	envs := tr.drain(back)
	hist, ok := findLast[GuessHistoryPayload](envs, "guess_history")
	require.True(t, ok)
	require.NotEmpty(t, hist.Guesses)

	require.NoError(t, tr.SubmitGuess(back.id, candidate("3"), false, false))
}

func TestRoom_HostFailover(t *testing.T) {
	tr := newTestRoom(t)
	a := tr.join("alice")
	b := tr.join("bob")
	c := tr.join("carol")
	require.NoError(t, tr.ToggleReady(b.id))
	tr.drainAll()

	require.NoError(t, tr.Disconnect(a.id))
	assert.True(t, b.isHost)
	assert.False(t, b.ready, "a host has no ready state")
	assert.Equal(t, 1, hostCount(tr.Room))

	ht, ok := findLast[HostTransferredPayload](tr.drain(c), "host_transferred")
	require.True(t, ok)
	assert.Equal(t, "alice", ht.OldHostName)
	assert.Equal(t, b.id, ht.NewHostID)

	require.NoError(t, tr.Disconnect(b.id))
	assert.True(t, c.isHost)

	require.NoError(t, tr.Disconnect(c.id))
	assert.True(t, tr.Closed())
	assert.Equal(t, []string{"room-1"}, tr.closedIDs)
}

func TestRoom_LastPlayerLeavingClosesRoom(t *testing.T) {
	tr := newTestRoom(t)
	a := tr.join("alice")

	require.NoError(t, tr.Disconnect(a.id))
	require.True(t, tr.Closed())

	_, err := tr.Join("b", newTestConn(), "bob", "")
	require.ErrorIs(t, err, ErrRoomClosed)
}

func TestRoom_RosterRules(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T, tr *testRoom, host, guest *Player)
	}{
		{
			name: "host cannot ready",
			run: func(t *testing.T, tr *testRoom, host, _ *Player) {
				require.ErrorIs(t, tr.ToggleReady(host.id), ErrHostNoReady)
			},
		},
		{
			name: "ready toggles",
			run: func(t *testing.T, tr *testRoom, _, guest *Player) {
				require.NoError(t, tr.ToggleReady(guest.id))
				assert.True(t, guest.ready)
				require.NoError(t, tr.ToggleReady(guest.id))
				assert.False(t, guest.ready)
			},
		},
		{
			name: "no ready toggling during a session",
			run: func(t *testing.T, tr *testRoom, _, guest *Player) {
				tr.start(Settings{})
				require.ErrorIs(t, tr.ToggleReady(guest.id), ErrSessionActive)
			},
		},
		{
			name: "only host kicks",
			run: func(t *testing.T, tr *testRoom, host, guest *Player) {
				require.ErrorIs(t, tr.Kick(guest.id, host.id), ErrNotHost)
				require.ErrorIs(t, tr.Kick(host.id, host.id), ErrKickSelf)
				require.ErrorIs(t, tr.Kick(host.id, "nobody"), ErrPlayerNotFound)
			},
		},
		{
			name: "kick removes outright",
			run: func(t *testing.T, tr *testRoom, host, guest *Player) {
				conn := tr.conns[guest.id]
				require.NoError(t, tr.Kick(host.id, guest.id))
				assert.Nil(t, tr.player(guest.id))
				k, ok := findLast[KickedPayload](readEnvelopesNonBlocking(conn), "kicked")
				require.True(t, ok)
				assert.Equal(t, guest.id, k.PlayerID)
			},
		},
		{
			name: "transfer host",
			run: func(t *testing.T, tr *testRoom, host, guest *Player) {
				require.NoError(t, tr.ToggleReady(guest.id))
				require.ErrorIs(t, tr.TransferHost(guest.id, host.id), ErrNotHost)
				require.NoError(t, tr.TransferHost(host.id, guest.id))
				assert.True(t, guest.isHost)
				assert.False(t, guest.ready)
				assert.False(t, host.isHost)
			},
		},
		{
			name: "transfer to offline player",
			run: func(t *testing.T, tr *testRoom, host, _ *Player) {
				c := tr.join("carol")
				require.NoError(t, tr.Disconnect(c.id))
				require.ErrorIs(t, tr.TransferHost(host.id, c.id), ErrHostOffline)
			},
		},
		{
			name: "settings are host only and normalized",
			run: func(t *testing.T, tr *testRoom, host, guest *Player) {
				require.ErrorIs(t, tr.UpdateSettings(guest.id, Settings{}), ErrNotHost)
				require.ErrorIs(t, tr.UpdateSettings(host.id, Settings{MaxAttempts: -1}), ErrBadInput)
				require.NoError(t, tr.UpdateSettings(host.id, Settings{SyncMode: true}))
				assert.Equal(t, defaultAttempts, tr.settings.MaxAttempts)

				tr.drainAll()
				require.NoError(t, tr.RequestSettings(guest.id))
				got, ok := findLast[SettingsPayload](tr.drain(guest), "settings")
				require.True(t, ok)
				assert.True(t, got.Settings.SyncMode)
			},
		},
		{
			name: "rename trims and truncates",
			run: func(t *testing.T, tr *testRoom, host, guest *Player) {
				require.ErrorIs(t, tr.Rename(guest.id, "x"), ErrNotHost)
				require.ErrorIs(t, tr.Rename(host.id, "   "), ErrBadInput)
				require.NoError(t, tr.Rename(host.id, "  一二三四五六七八九十一二三四五六七八九十一二三四五六七八九十多余  "))
				assert.Equal(t, "一二三四五六七八九十一二三四五六七八九十一二三四五六七八九十", tr.name)
			},
		},
		{
			name: "visibility toggles",
			run: func(t *testing.T, tr *testRoom, host, _ *Player) {
				require.NoError(t, tr.ToggleVisibility(host.id))
				assert.False(t, tr.public)
			},
		},
		{
			name: "team changes",
			run: func(t *testing.T, tr *testRoom, _, guest *Player) {
				tr.setTeam(guest, "3")
				assert.Equal(t, "3", guest.seat.Team())
				tr.setTeam(guest, ObserverTeam)
				assert.Equal(t, SeatObserver, guest.seat.Kind())
				require.NoError(t, tr.ChangeTeam(guest.id, nil))
				assert.Equal(t, SeatUnassigned, guest.seat.Kind())

				bad := "9"
				require.ErrorIs(t, tr.ChangeTeam(guest.id, &bad), ErrBadInput)
			},
		},
		{
			name: "message",
			run: func(t *testing.T, tr *testRoom, _, guest *Player) {
				require.NoError(t, tr.UpdateMessage(guest.id, "  gl hf "))
				assert.Equal(t, "gl hf", guest.message)
			},
		},
		{
			name: "start needs everyone ready",
			run: func(t *testing.T, tr *testRoom, host, _ *Player) {
				err := tr.StartGame(host.id, Answer{ID: "ans"}, Settings{})
				require.ErrorIs(t, err, ErrNotReady)
				assert.False(t, tr.InSession())
			},
		},
		{
			name: "start needs a contender",
			run: func(t *testing.T, tr *testRoom, host, guest *Player) {
				tr.setTeam(host, ObserverTeam)
				tr.setTeam(guest, ObserverTeam)
				tr.readyAll()
				err := tr.StartGame(host.id, Answer{ID: "ans"}, Settings{})
				require.ErrorIs(t, err, ErrNoContenders)
			},
		},
		{
			name: "start purges disconnected zero-score players",
			run: func(t *testing.T, tr *testRoom, _, _ *Player) {
				c := tr.join("carol")
				require.NoError(t, tr.Disconnect(c.id))
				tr.start(Settings{})
				assert.Nil(t, tr.player(c.id))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTestRoom(t)
			host := tr.join("alice")
			guest := tr.join("bob")
			tc.run(t, tr, host, guest)
			assert.Equal(t, 1, hostCount(tr.Room))
		})
	}
}

func TestRoom_IdleSweep(t *testing.T) {
	tr := newTestRoom(t)
	a := tr.join("alice")

	tr.clock = tr.clock.Add(30 * time.Minute)
	assert.False(t, tr.Sweep(time.Hour))

	tr.clock = tr.clock.Add(31 * time.Minute)
	assert.True(t, tr.Sweep(time.Hour))
	assert.True(t, tr.Closed())

	rc, ok := findLast[RoomClosedPayload](tr.drain(a), "room_closed")
	require.True(t, ok)
	assert.Equal(t, "idle", rc.Reason)
}
