package game

import (
	"errors"
	"fmt"
	"time"
)

type ScoreBreakdown struct {
	Base       int `json:"base,omitempty"`
	BigWin     int `json:"bigWin,omitempty"`
	QuickGuess int `json:"quickGuess,omitempty"`
	Rank       int `json:"rank,omitempty"`
	Partial    int `json:"partial,omitempty"`
}

type ScoreDetail struct {
	Type      string          `json:"type"` // player | team | setter
	TeamID    string          `json:"teamId,omitempty"`
	TeamScore int             `json:"teamScore,omitempty"`
	Members   []ScoreDetail   `json:"members,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Score     int             `json:"score"`
	Result    string          `json:"result,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`
}

// Settlement is the outcome of scoring one finished session. It is computed
// from the final tracks without touching the room.
type Settlement struct {
	Deltas   map[string]int // player id -> score change
	Details  []ScoreDetail
	Setter   *SetterScore
	BigWins  []string // player ids upgraded to a big win by avatar
	Outcomes []string // results for the stats sink
}

var errNoSessionToSettle = errors.New("settle: no active session")

// computeSettlement is pure: calling it twice on the same room yields the same result.
func (r *Room) computeSettlement() (Settlement, error) {
	s := r.session
	if s == nil {
		return Settlement{}, errNoSessionToSettle
	}
	out := Settlement{Deltas: make(map[string]int)}
	maxAttempts := s.settings.attempts()

	var contenders []*Player
	var setter *Player
	for _, p := range r.players {
		if p.isSetter {
			setter = p
		}
		if p.contender() {
			contenders = append(contenders, p)
		}
	}

	breakdowns := make(map[string]*ScoreBreakdown)
	winnerIDs := make(map[string]bool)
	award := func(p *Player, ws WinnerScore, rank int) {
		winnerIDs[p.id] = true
		out.Deltas[p.id] += ws.Total
		breakdowns[p.id] = &ScoreBreakdown{
			Base:       ws.Base,
			BigWin:     ws.Bonuses.BigWin,
			QuickGuess: ws.Bonuses.QuickGuess,
			Rank:       rank,
		}
	}

	var setterScore SetterScore
	if s.nonstop() {
		active := 0
		for _, p := range contenders {
			if p.connected {
				active++
			}
		}
		bigWinnerTotal := -1
		for _, w := range s.winners {
			p := r.player(w.playerID)
			if p == nil {
				continue
			}
			ws := ScoreWinner(p.track, NonstopBase(w.activeAtWin, w.rank), maxAttempts)
			award(p, ws, w.rank)
			if ws.BigWin && bigWinnerTotal < 0 {
				bigWinnerTotal = ws.Total
			}
		}
		setterScore = ScoreNonstopSetter(bigWinnerTotal, len(s.winners), active)
	} else {
		winners, primary, upgraded, err := r.classicWinners(contenders)
		if err != nil {
			return Settlement{}, err
		}
		out.BigWins = upgraded
		var primaryTrack Track
		primaryTotal := 0
		if primary != nil {
			primaryTrack = effectiveTrack(primary, upgraded)
			ws := ScoreWinner(primaryTrack, classicBase, maxAttempts)
			primaryTotal = ws.Total
			// sync winners of the same round share the primary winner's score
			for _, p := range winners {
				award(p, ws, 0)
			}
		}
		setterScore = ScoreSetter(primaryTrack, primaryTotal, maxAttempts)
	}

	// partial credit: once per team or solo player, never for a group that won
	excluded := make(map[string]bool)
	for _, p := range contenders {
		if winnerIDs[p.id] || p.track.Has(OutcomeTeamCredit) {
			excluded[groupKey(p.seat.Team(), p.username)] = true
		}
	}
	for _, name := range s.ledger.PartialAwardees(excluded) {
		for _, p := range contenders {
			if p.username != name {
				continue
			}
			out.Deltas[p.id] += partialCredit
			if breakdowns[p.id] == nil {
				breakdowns[p.id] = &ScoreBreakdown{}
			}
			breakdowns[p.id].Partial = partialCredit
		}
	}

	if setter != nil && s.manual {
		out.Setter = &setterScore
		out.Deltas[setter.id] += setterScore.Score
	}

	for _, p := range contenders {
		res := effectiveTrack(p, out.BigWins).Result()
		if res != "" {
			out.Outcomes = append(out.Outcomes, res)
		}
	}
	out.Details = r.scoreDetails(contenders, setter, out, breakdowns)
	return out, nil
}

// classicWinners picks who scores in a classic session. Sync mode lets every
// winner of the closing round score; otherwise there is one winner and a big
// winner beats the first plain winner.
func (r *Room) classicWinners(contenders []*Player) (winners []*Player, primary *Player, upgraded []string, err error) {
	s := r.session
	byID := func(id string) *Player {
		for _, p := range contenders {
			if p.id == id {
				return p
			}
		}
		return nil
	}
	find := func(o Outcome) *Player {
		for _, p := range contenders {
			if p.track.Has(o) {
				return p
			}
		}
		return nil
	}

	if s.sync() {
		for _, p := range contenders {
			if p.track.Won() {
				winners = append(winners, p)
			}
		}
		if len(winners) == 0 {
			return nil, nil, nil, nil
		}
		primary = byID(s.firstWinner)
		if primary == nil || !primary.track.Won() {
			primary = winners[0]
		}
		return winners, primary, nil, nil
	}

	var big *Player
	if s.firstBig {
		big = byID(s.firstWinner)
	}
	if big == nil {
		big = find(OutcomeBigWin)
	}
	if big == nil && s.answer.ID != "" {
		for _, p := range contenders {
			if p.track.Won() && p.avatarID != "" && p.avatarID != NoAvatar && p.avatarID == string(s.answer.ID) {
				big = p
				upgraded = []string{p.id}
				break
			}
		}
	}
	if big != nil {
		return []*Player{big}, big, upgraded, nil
	}
	w := byID(s.firstWinner)
	if w == nil || !w.track.Won() {
		w = find(OutcomeWin)
	}
	if w == nil {
		if s.firstWinner != "" && r.player(s.firstWinner) != nil {
			return nil, nil, nil, fmt.Errorf("settle: first winner %q has no win", s.firstWinner)
		}
		return nil, nil, nil, nil
	}
	return []*Player{w}, w, nil, nil
}

// effectiveTrack is p's track with an avatar upgrade applied.
func effectiveTrack(p *Player, upgraded []string) Track {
	for _, id := range upgraded {
		if id == p.id {
			t := make(Track, 0, len(p.track))
			for _, o := range p.track {
				if o == OutcomeWin {
					o = OutcomeBigWin
				}
				t = append(t, o)
			}
			return t
		}
	}
	return p.track
}

func (r *Room) scoreDetails(contenders []*Player, setter *Player, st Settlement, bd map[string]*ScoreBreakdown) []ScoreDetail {
	teamSize := make(map[string]int)
	for _, p := range contenders {
		if t := p.seat.Team(); t != "" {
			teamSize[t]++
		}
	}

	var out []ScoreDetail
	teamIdx := make(map[string]int)
	for _, p := range contenders {
		d := ScoreDetail{
			Type:      "player",
			PlayerID:  p.id,
			Username:  p.username,
			Score:     st.Deltas[p.id],
			Result:    effectiveTrack(p, st.BigWins).Result(),
			Breakdown: bd[p.id],
		}
		team := p.seat.Team()
		if team == "" || teamSize[team] < 2 {
			out = append(out, d)
			continue
		}
		i, ok := teamIdx[team]
		if !ok {
			i = len(out)
			teamIdx[team] = i
			out = append(out, ScoreDetail{Type: "team", TeamID: team})
		}
		out[i].Members = append(out[i].Members, d)
		out[i].TeamScore += d.Score
		out[i].Score = out[i].TeamScore
	}
	if setter != nil && st.Setter != nil {
		out = append(out, ScoreDetail{
			Type:     "setter",
			PlayerID: setter.id,
			Username: setter.username,
			Score:    st.Setter.Score,
			Reason:   st.Setter.Reason,
		})
	}
	return out
}

// settle scores the session once and returns the room to the lobby. A failed
// computation still returns to the lobby, without awarding anything.
func (r *Room) settle() {
	s := r.session
	if s == nil {
		return
	}
	s.stopTimer()
	s.flushPendingTags()

	st, err := r.computeSettlement()
	if err != nil {
		r.log.Error("settlement failed, returning to lobby", "err", err)
		r.resetToLobby()
		r.broadcast(envelope("game_ended", GameEndedPayload{Guesses: s.ledger.View(), ScoreDetails: []ScoreDetail{}}))
		r.broadcastRoster()
		return
	}

	for id, d := range st.Deltas {
		if p := r.player(id); p != nil {
			p.score += d
		}
	}
	for _, id := range st.BigWins {
		if p := r.player(id); p != nil {
			p.track = effectiveTrack(p, st.BigWins)
		}
	}
	if r.sink != nil && len(st.Outcomes) > 0 {
		r.sink.Record(string(s.answer.ID), st.Outcomes)
	}
	r.log.Info("session settled",
		"players", len(st.Deltas),
		"setter", st.Setter != nil,
		"guesses", s.ledger.Len(),
		"duration", r.now().Sub(s.startedAt).Round(time.Second),
	)

	r.resetToLobby()
	details := st.Details
	if details == nil {
		details = []ScoreDetail{}
	}
	r.broadcast(envelope("game_ended", GameEndedPayload{Guesses: s.ledger.View(), ScoreDetails: details}))
	r.broadcastRoster()
}

func (r *Room) resetToLobby() {
	for _, p := range r.players {
		if p.seat.Kind() == SeatTempObserver {
			p.seat = p.seat.Restored()
		}
		p.isSetter = false
		p.participant = false
		if p.joinedMidSession {
			p.joinedMidSession = false
			p.seat = Unassigned()
			p.ready = false
		}
	}
	r.session = nil
}
