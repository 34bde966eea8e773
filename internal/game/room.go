package game

import (
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxRoomNameRunes = 30
	maxUsernameRunes = 20
	maxMessageRunes  = 100
	maxTeamKey       = 8
)

// Scheduler runs fn after d unless cancelled. The room actor's scheduler
// delivers fn through the room mailbox, never on the timer goroutine.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// StatsSink receives (character, outcome) pairs once per settled session.
// Implementations must not block the caller.
type StatsSink interface {
	Record(characterID string, outcomes []string)
}

type RoomDeps struct {
	Log    *slog.Logger
	Sink   StatsSink
	Timers Scheduler
	Now    func() time.Time
	// OnClose runs once when the room closes itself.
	OnClose func(roomID string)
}

// Room is the per-lobby aggregate. It is not safe for concurrent use: every
// call must come from the room's actor goroutine (or a test owning it).
type Room struct {
	id       string
	name     string
	public   bool
	players  []*Player
	settings Settings
	session  *Session

	lastActive time.Time
	closed     bool

	log     *slog.Logger
	sink    StatsSink
	timers  Scheduler
	now     func() time.Time
	onClose func(string)
}

func newRoom(id string, deps RoomDeps) *Room {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &Room{
		id:       id,
		name:     id,
		public:   true,
		settings: Settings{MaxAttempts: defaultAttempts},
		log:      deps.Log.With("room", id),
		sink:     deps.Sink,
		timers:   deps.Timers,
		now:      deps.Now,
		onClose:  deps.OnClose,
	}
	r.lastActive = r.now()
	return r
}

func (r *Room) ID() string       { return r.id }
func (r *Room) Closed() bool     { return r.closed }
func (r *Room) InSession() bool  { return r.session != nil }
func (r *Room) touch()           { r.lastActive = r.now() }
func (r *Room) PlayerCount() int { return len(r.players) }

func (r *Room) player(id string) *Player {
	for _, p := range r.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (r *Room) mustPlayer(id string) (*Player, error) {
	if p := r.player(id); p != nil {
		return p, nil
	}
	return nil, ErrPlayerNotFound
}

func (r *Room) host() *Player {
	for _, p := range r.players {
		if p.isHost {
			return p
		}
	}
	return nil
}

func (r *Room) requireHost(id string) (*Player, error) {
	p, err := r.mustPlayer(id)
	if err != nil {
		return nil, err
	}
	if !p.isHost {
		return nil, ErrNotHost
	}
	return p, nil
}

func (r *Room) broadcast(env Envelope) {
	for _, p := range r.players {
		p.send(env)
	}
}

func (r *Room) view(p *Player) PlayerView {
	v := PlayerView{
		ID:               p.id,
		Username:         p.username,
		AvatarID:         p.avatarID,
		Score:            p.score,
		Ready:            p.ready,
		IsHost:           p.isHost,
		IsAnswerSetter:   p.isSetter,
		Disconnected:     !p.connected,
		TempObserver:     p.seat.Kind() == SeatTempObserver,
		JoinedDuringGame: p.joinedMidSession,
		Message:          p.message,
		Guesses:          p.track,
	}
	if w := p.seat.Wire(); w != "" {
		v.Team = &w
	}
	return v
}

func (r *Room) Roster() []PlayerView {
	out := make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, r.view(p))
	}
	return out
}

func (r *Room) pendingSetter() *Player {
	if r.session != nil {
		return nil
	}
	for _, p := range r.players {
		if p.isSetter {
			return p
		}
	}
	return nil
}

func (r *Room) broadcastRoster() {
	payload := RosterPayload{Players: r.Roster(), IsPublic: r.public}
	if s := r.pendingSetter(); s != nil {
		payload.AnswerSetterID = s.id
	} else if r.session != nil {
		for _, p := range r.players {
			if p.isSetter {
				payload.AnswerSetterID = p.id
			}
		}
	}
	r.broadcast(envelope("roster", payload))
}

// Join seats a connection under username. A disconnected player with the same
// name (case-insensitively) is resumed in place.
func (r *Room) Join(connID string, conn Sender, username, avatarID string) (*Player, error) {
	if r.closed {
		return nil, ErrRoomClosed
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, badInput("username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameRunes {
		return nil, badInput("username is too long")
	}
	if r.player(connID) != nil {
		return nil, ErrAlreadyInRoom
	}

	var existing *Player
	for _, p := range r.players {
		if p.sameName(username) {
			existing = p
			break
		}
	}
	if existing != nil && existing.connected {
		return nil, ErrNameTaken
	}
	if avatarID != "" && avatarID != NoAvatar {
		for _, p := range r.players {
			if p != existing && p.connected && p.avatarID == avatarID {
				return nil, ErrAvatarTaken
			}
		}
	}

	r.touch()
	if existing != nil {
		r.reconnect(existing, connID, conn, avatarID)
		return existing, nil
	}

	p := &Player{
		id:        connID,
		username:  username,
		avatarID:  avatarID,
		seat:      Unassigned(),
		connected: true,
		conn:      conn,
	}
	if len(r.players) == 0 || r.host() == nil {
		p.isHost = true
	}
	if r.session != nil {
		p.seat = Observer()
		p.joinedMidSession = true
	}
	r.players = append(r.players, p)
	r.log.Info("player joined", "player", p.username, "host", p.isHost, "mid_session", p.joinedMidSession)

	r.broadcastRoster()
	p.send(envelope("settings", SettingsPayload{RoomID: r.id, Settings: r.settings}))
	p.send(envelope("room_name", RoomNamePayload{RoomName: r.name}))
	if r.session != nil {
		r.replaySession(p)
	}
	return p, nil
}

func (r *Room) reconnect(p *Player, connID string, conn Sender, avatarID string) {
	old := p.id
	p.id = connID
	p.conn = conn
	p.connected = true
	if avatarID != "" {
		p.avatarID = avatarID
	}
	r.log.Info("player reconnected", "player", p.username, "score", p.score)

	if r.session != nil {
		r.session.rewriteID(old, connID)
		r.backfillTeamWin(p)
	}

	r.broadcastRoster()
	p.send(envelope("settings", SettingsPayload{RoomID: r.id, Settings: r.settings}))
	p.send(envelope("room_name", RoomNamePayload{RoomName: r.name}))
	if r.session != nil {
		r.replaySession(p)
	}
}

// backfillTeamWin credits a teammate who was away when their team won.
func (r *Room) backfillTeamWin(p *Player) {
	s := r.session
	team := p.seat.Team()
	if team == "" || !p.participant || p.finished() {
		return
	}
	winner, ok := s.teamWinners[team]
	if !ok {
		return
	}
	p.track = append(p.track, OutcomeTeamCredit)
	p.seat = TempObserver(p.seat)
	delete(s.completed, p.id)
	p.send(envelope("team_win", TeamWinPayload{WinnerName: winner}))
}

// Disconnect marks the player as gone, keeping their seat and score for a
// later reconnect. The room closes when nobody connected is left.
func (r *Room) Disconnect(id string) error {
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	if !p.connected {
		return nil
	}
	p.connected = false
	p.conn = nil
	r.touch()
	r.log.Info("player disconnected", "player", p.username)

	if p.isSetter && r.session == nil {
		r.cancelSetter("answer setter left")
	}
	if p.isHost {
		if !r.failoverHost(p) {
			r.close("empty")
			return nil
		}
	}
	r.afterLeave()
	if !r.closed {
		r.broadcastRoster()
	}
	return nil
}

func (r *Room) failoverHost(old *Player) bool {
	for _, p := range r.players {
		if p != old && p.connected {
			r.moveHost(old, p)
			return true
		}
	}
	return false
}

func (r *Room) moveHost(from, to *Player) {
	from.isHost = false
	to.isHost = true
	to.ready = false
	r.log.Info("host transferred", "from", from.username, "to", to.username)
	r.broadcast(envelope("host_transferred", HostTransferredPayload{
		OldHostName: from.username,
		NewHostID:   to.id,
		NewHostName: to.username,
	}))
}

// afterLeave re-evaluates the session once a contender stops counting. A
// round completion is kept so a quick rejoin cannot act twice in one round.
func (r *Room) afterLeave() {
	s := r.session
	if s == nil {
		return
	}
	if s.sync() {
		r.updateSync()
	}
	r.checkTermination()
}

func (r *Room) Kick(requesterID, targetID string) error {
	host, err := r.requireHost(requesterID)
	if err != nil {
		return err
	}
	if requesterID == targetID {
		return ErrKickSelf
	}
	target, err := r.mustPlayer(targetID)
	if err != nil {
		return err
	}

	r.touch()
	kicked := envelope("kicked", KickedPayload{PlayerID: target.id, Username: target.username})
	r.broadcast(kicked)
	r.log.Info("player kicked", "player", target.username, "by", host.username)

	if target.isSetter && r.session == nil {
		r.cancelSetter("answer setter was kicked")
	}
	r.players = slices.DeleteFunc(r.players, func(p *Player) bool { return p == target })
	r.afterLeave()
	if !r.closed {
		r.broadcastRoster()
	}
	return nil
}

func (r *Room) TransferHost(requesterID, targetID string) error {
	host, err := r.requireHost(requesterID)
	if err != nil {
		return err
	}
	target, err := r.mustPlayer(targetID)
	if err != nil {
		return err
	}
	if !target.connected {
		return ErrHostOffline
	}
	if target == host {
		return nil
	}
	r.touch()
	r.moveHost(host, target)
	r.broadcastRoster()
	return nil
}

func (r *Room) ToggleReady(id string) error {
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	if p.isHost {
		return ErrHostNoReady
	}
	if r.session != nil {
		return ErrSessionActive
	}
	p.ready = !p.ready
	r.touch()
	r.broadcastRoster()
	return nil
}

func (r *Room) UpdateSettings(id string, s Settings) error {
	if _, err := r.requireHost(id); err != nil {
		return err
	}
	if r.session != nil {
		return ErrSessionActive
	}
	s, err := normalizeSettings(s)
	if err != nil {
		return err
	}
	r.settings = s
	r.touch()
	r.broadcast(envelope("settings", SettingsPayload{RoomID: r.id, Settings: r.settings}))
	return nil
}

func normalizeSettings(s Settings) (Settings, error) {
	if s.MaxAttempts < 0 || s.TimeLimit < 0 {
		return s, badInput("maxAttempts and timeLimit must not be negative")
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = defaultAttempts
	}
	return s, nil
}

func (r *Room) RequestSettings(id string) error {
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	settings := r.settings
	if r.session != nil {
		settings = r.session.settings
	}
	p.send(envelope("settings", SettingsPayload{RoomID: r.id, Settings: settings}))
	return nil
}

func (r *Room) ToggleVisibility(id string) error {
	if _, err := r.requireHost(id); err != nil {
		return err
	}
	r.public = !r.public
	r.touch()
	r.broadcastRoster()
	return nil
}

func (r *Room) Rename(id, name string) error {
	if _, err := r.requireHost(id); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return badInput("room name is required")
	}
	r.name = truncateRunes(name, maxRoomNameRunes)
	r.touch()
	r.broadcast(envelope("room_name", RoomNamePayload{RoomName: r.name}))
	return nil
}

func (r *Room) UpdateMessage(id, text string) error {
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	p.message = truncateRunes(strings.TrimSpace(text), maxMessageRunes)
	r.touch()
	r.broadcastRoster()
	return nil
}

// ChangeTeam moves a player between unassigned (nil), observer ("0") and
// teams "1".."8".
func (r *Room) ChangeTeam(id string, team *string) error {
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	if r.session != nil {
		return ErrSessionActive
	}
	seat := Unassigned()
	if team != nil {
		t := strings.TrimSpace(*team)
		if len(t) != 1 || t[0] < '0' || t[0] > '0'+maxTeamKey {
			return badInput("team must be null or 0..8")
		}
		seat = SeatFromWire(t)
	}
	p.seat = seat
	r.touch()
	r.broadcastRoster()
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Sweep closes the room if nothing happened for longer than ttl.
func (r *Room) Sweep(ttl time.Duration) bool {
	if r.closed {
		return true
	}
	if ttl <= 0 || r.now().Sub(r.lastActive) < ttl {
		return false
	}
	r.log.Info("room idle, closing", "idle", r.now().Sub(r.lastActive))
	r.close("idle")
	return true
}

func (r *Room) close(reason string) {
	if r.closed {
		return
	}
	if r.session != nil {
		r.session.stopTimer()
		r.session = nil
	}
	r.broadcast(envelope("room_closed", RoomClosedPayload{Reason: reason}))
	r.closed = true
	r.log.Info("room closed", "reason", reason)
	if r.onClose != nil {
		r.onClose(r.id)
	}
}
