package game

import "strings"

// ObserverTeam is the wire value of the observer seat.
const ObserverTeam = "0"

// NoAvatar is the avatar id that never collides with anyone.
const NoAvatar = "0"

type SeatKind uint8

const (
	SeatUnassigned SeatKind = iota
	SeatTeam
	SeatObserver
	SeatTempObserver
)

// Seat is where a player sits in the room. A temporary observer remembers the
// seat it came from so that restoring it is always possible.
type Seat struct {
	kind    SeatKind
	team    string
	restore *Seat
}

func Unassigned() Seat        { return Seat{kind: SeatUnassigned} }
func OnTeam(team string) Seat { return Seat{kind: SeatTeam, team: team} }
func Observer() Seat          { return Seat{kind: SeatObserver} }

// TempObserver parks a seat. Parking an already parked seat keeps the
// first restore target.
func TempObserver(from Seat) Seat {
	if from.kind == SeatTempObserver {
		return from
	}
	r := from
	return Seat{kind: SeatTempObserver, restore: &r}
}

// SeatFromWire parses the client team value: "" for unassigned, "0" for observer.
func SeatFromWire(team string) Seat {
	switch team {
	case "":
		return Unassigned()
	case ObserverTeam:
		return Observer()
	}
	return OnTeam(team)
}

func (s Seat) Kind() SeatKind { return s.kind }

// Restored returns the seat a temporary observer goes back to.
func (s Seat) Restored() Seat {
	if s.kind != SeatTempObserver {
		return s
	}
	if s.restore == nil {
		return Unassigned()
	}
	return *s.restore
}

// Team is the team key used to share tracks and group scores. A temporary
// observer still belongs to the team it was parked from.
func (s Seat) Team() string {
	switch s.kind {
	case SeatTeam:
		return s.team
	case SeatTempObserver:
		return s.Restored().Team()
	}
	return ""
}

func (s Seat) Spectating() bool { return s.kind == SeatObserver || s.kind == SeatTempObserver }

// Wire renders the seat the way clients store it ("" unassigned, "0" observer).
func (s Seat) Wire() string {
	switch s.kind {
	case SeatTeam:
		return s.team
	case SeatObserver:
		return ObserverTeam
	case SeatTempObserver:
		if t := s.Team(); t != "" {
			return t
		}
		return ObserverTeam
	}
	return ""
}

type Player struct {
	id       string
	username string
	avatarID string
	message  string

	score int
	ready bool
	seat  Seat

	isHost    bool
	isSetter  bool
	connected bool
	conn      Sender

	joinedMidSession bool

	// session-scoped
	participant bool
	track       Track
}

func (p *Player) ID() string       { return p.id }
func (p *Player) Username() string { return p.username }
func (p *Player) Score() int       { return p.score }
func (p *Player) Track() Track     { return p.track.clone() }

func (p *Player) finished() bool { return p.track.Finished() }

func (p *Player) sameName(username string) bool {
	return strings.EqualFold(p.username, username)
}

func (p *Player) send(env Envelope) {
	if p.conn == nil || !p.connected {
		return
	}
	p.conn.Send(env)
}

// contender reports whether the player is still part of the running session.
func (p *Player) contender() bool {
	return p.participant && !p.isSetter
}

// active is a connected contender: they count for barriers and rank totals.
func (p *Player) active() bool {
	return p.contender() && p.connected
}
