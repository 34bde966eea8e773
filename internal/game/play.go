package game

import (
	"encoding/json"
	"slices"
	"strings"
)

// EnterManualMode readies every non-host so the host can pick an answer setter.
func (r *Room) EnterManualMode(id string) error {
	if _, err := r.requireHost(id); err != nil {
		return err
	}
	if r.session != nil {
		return ErrSessionActive
	}
	for _, p := range r.players {
		if !p.isHost && p.connected {
			p.ready = true
		}
	}
	r.touch()
	r.broadcastRoster()
	return nil
}

// SetAnswerSetter designates a connected player to supply the answer. Their
// teammates sit out as temporary observers until the designation ends.
func (r *Room) SetAnswerSetter(hostID, targetID string) error {
	if _, err := r.requireHost(hostID); err != nil {
		return err
	}
	if r.session != nil {
		return ErrSessionActive
	}
	target, err := r.mustPlayer(targetID)
	if err != nil {
		return err
	}
	if !target.connected {
		return ErrPlayerNotFound
	}
	if err := r.checkReady(); err != nil {
		return err
	}

	if prev := r.pendingSetter(); prev != nil {
		r.revertSetter(prev)
	}
	target.isSetter = true
	if team := target.seat.Team(); team != "" && target.seat.Kind() == SeatTeam {
		for _, p := range r.players {
			if p != target && p.connected && p.seat.Kind() == SeatTeam && p.seat.Team() == team {
				p.seat = TempObserver(p.seat)
				p.ready = false
			}
		}
	}
	r.touch()
	r.log.Info("answer setter designated", "player", target.username)
	r.broadcast(envelope("wait_for_answer", WaitForAnswerPayload{
		AnswerSetterID: target.id,
		SetterUsername: target.username,
	}))
	r.broadcastRoster()
	return nil
}

func (r *Room) revertSetter(setter *Player) {
	setter.isSetter = false
	for _, p := range r.players {
		if p.seat.Kind() == SeatTempObserver {
			p.seat = p.seat.Restored()
		}
	}
}

// cancelSetter drops a pending designation and puts parked teammates back.
func (r *Room) cancelSetter(reason string) {
	s := r.pendingSetter()
	if s == nil {
		return
	}
	r.revertSetter(s)
	r.log.Info("answer setter canceled", "player", s.username, "reason", reason)
	r.broadcast(envelope("wait_for_answer_canceled", NoticePayload{Message: reason}))
}

func (r *Room) SetAnswer(id string, answer Answer, hints json.RawMessage) error {
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	if r.session != nil {
		return ErrSessionActive
	}
	if !p.isSetter {
		return ErrNotSetter
	}
	return r.begin(answer, hints, r.settings, true)
}

func (r *Room) StartGame(id string, answer Answer, settings Settings) error {
	if _, err := r.requireHost(id); err != nil {
		return err
	}
	if r.session != nil {
		return ErrSessionActive
	}
	if r.pendingSetter() != nil {
		return ErrSetterPending
	}
	if err := r.checkReady(); err != nil {
		return err
	}
	settings, err := normalizeSettings(settings)
	if err != nil {
		return err
	}
	return r.begin(answer, nil, settings, false)
}

func (r *Room) checkReady() error {
	for _, p := range r.players {
		if p.connected && !p.isHost && !p.ready {
			return ErrNotReady
		}
	}
	return nil
}

func purgeable(p *Player) bool { return !p.connected && p.score == 0 && !p.isSetter }

func seedable(p *Player) bool { return !p.isSetter && !p.seat.Spectating() }

// begin moves the room from lobby to an active session.
func (r *Room) begin(answer Answer, hints json.RawMessage, settings Settings, manual bool) error {
	if answer.ID == "" {
		return badInput("answer.id is required")
	}
	n := 0
	for _, p := range r.players {
		if seedable(p) && !purgeable(p) {
			n++
		}
	}
	if n == 0 {
		return ErrNoContenders
	}

	r.players = slices.DeleteFunc(r.players, purgeable)
	r.settings = settings
	s := newSession(answer, hints, settings, manual, r.now())
	r.session = s
	for _, p := range r.players {
		p.track = nil
		p.participant = seedable(p)
		if !p.participant {
			continue
		}
		s.ledger.Seed(p.username)
		if t := p.seat.Team(); t != "" {
			s.teamTracks[t] = Track{}
		}
	}
	if s.sync() {
		s.round = 1
	}
	r.touch()
	r.log.Info("session started", "players", n, "sync", settings.SyncMode, "nonstop", settings.NonstopMode, "manual", manual)

	roster := r.Roster()
	for _, p := range r.players {
		p.send(envelope("game_started", GameStartedPayload{
			Answer:         answer,
			Settings:       settings,
			Players:        roster,
			IsPublic:       r.public,
			Hints:          hints,
			IsAnswerSetter: p.isSetter,
		}))
	}
	if settings.TagBan {
		r.broadcast(envelope("tag_ban_state", TagBanPayload{Entries: s.tags}))
	}
	if s.sync() {
		r.startRoundTimer()
		r.broadcast(envelope("round_start", r.roundStart()))
		r.broadcast(envelope("round_waiting", r.roundWaiting()))
	}
	if s.nonstop() {
		r.broadcast(envelope("nonstop_progress", r.nonstopProgress()))
	}
	r.broadcastRoster()
	return nil
}

// replaySession brings a joiner or reconnector up to date with a running session.
func (r *Room) replaySession(p *Player) {
	s := r.session
	p.send(envelope("game_started", GameStartedPayload{
		Answer:         s.answer,
		Settings:       s.settings,
		Players:        r.Roster(),
		IsPublic:       r.public,
		Hints:          s.hints,
		IsAnswerSetter: p.isSetter,
	}))
	p.send(envelope("guess_history", r.historyFor(p)))
	if s.settings.TagBan {
		p.send(envelope("tag_ban_state", TagBanPayload{Entries: s.tags}))
	}
	if s.sync() {
		p.send(envelope("round_waiting", r.roundWaiting()))
	}
	if s.nonstop() {
		p.send(envelope("nonstop_progress", r.nonstopProgress()))
	}
}

// sees reports whether viewer may watch guesses made by author.
func (r *Room) sees(viewer, author *Player) bool {
	switch {
	case viewer == author, viewer.isSetter, viewer.seat.Spectating(), !viewer.participant:
		return true
	}
	t := author.seat.Team()
	return t != "" && viewer.seat.Team() == t
}

func (r *Room) historyFor(viewer *Player) GuessHistoryPayload {
	s := r.session
	out := GuessHistoryPayload{Guesses: []LedgerView{}, TeamGuesses: map[string]Track{}}
	byName := make(map[string]*Player, len(r.players))
	for _, p := range r.players {
		byName[p.username] = p
	}
	for _, v := range s.ledger.View() {
		author := byName[v.Username]
		if author == nil || r.sees(viewer, author) {
			out.Guesses = append(out.Guesses, v)
		}
	}
	for team, t := range s.teamTracks {
		if viewer.isSetter || viewer.seat.Spectating() || !viewer.participant || viewer.seat.Team() == team {
			out.TeamGuesses[team] = t.clone()
		}
	}
	return out
}

// teammates are the other participants sharing p's team, connected or not.
func (r *Room) teammates(p *Player) []*Player {
	team := p.seat.Team()
	if team == "" {
		return nil
	}
	var out []*Player
	for _, q := range r.players {
		if q != p && q.participant && !q.isSetter && q.seat.Team() == team {
			out = append(out, q)
		}
	}
	return out
}

// shareTeamTrack appends o to p's track, or to the team track and every
// teammate still playing when p is on a team.
func (r *Room) shareTeamTrack(p *Player, o Outcome) {
	team := p.seat.Team()
	if team == "" {
		p.track = append(p.track, o)
		return
	}
	s := r.session
	s.teamTracks[team] = append(s.teamTracks[team], o)
	p.track = s.teamTracks[team].clone()
	for _, q := range r.teammates(p) {
		if !q.finished() {
			q.track = s.teamTracks[team].clone()
		}
	}
}

func (r *Room) actingPlayer(id string) (*Player, error) {
	if r.session == nil {
		return nil, ErrNoSession
	}
	p, err := r.mustPlayer(id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.isSetter:
		return nil, ErrSetterPlays
	case !p.participant, p.seat.Kind() == SeatObserver:
		return nil, ErrObserver
	case p.finished():
		return nil, ErrAlreadyFinished
	}
	if s := r.session; s.sync() && s.completed[p.id] {
		return nil, ErrRoundWait
	}
	return p, nil
}

func (r *Room) SubmitGuess(id string, raw json.RawMessage, correct, partial bool) error {
	p, err := r.actingPlayer(id)
	if err != nil {
		return err
	}
	c, err := ParseCandidate(raw)
	if err != nil {
		return err
	}
	s := r.session
	if s.settings.GlobalPick && !(s.nonstop() && correct) && s.ledger.PickedByOther(p.username, c.ID) {
		return ErrAlreadyPicked
	}

	r.touch()
	s.ledger.Append(GuessEntry{
		PlayerID:    p.id,
		PlayerName:  p.username,
		Team:        p.seat.Team(),
		CandidateID: c.ID,
		Name:        c.Name,
		Correct:     correct,
		Partial:     partial && !correct,
		Data:        c.Data,
	})
	o := OutcomeMiss
	switch {
	case correct:
		o = OutcomeCorrect
	case partial:
		o = OutcomePartial
	}
	r.shareTeamTrack(p, o)

	if s.sync() && !correct {
		r.exhaustTeam(p)
		r.completeRound(p)
	}

	bc := envelope("guess_broadcast", GuessBroadcastPayload{GuessData: c.Data, PlayerID: p.id, PlayerName: p.username})
	for _, q := range r.players {
		if !r.sees(q, p) {
			continue
		}
		q.send(envelope("guess_history", r.historyFor(q)))
		if q != p {
			q.send(bc)
		}
	}
	r.broadcastRoster()

	if s.sync() && !correct {
		r.updateSync()
		r.checkTermination()
	}
	return nil
}

// completeRound marks p (and their team) as done for the current sync round.
func (r *Room) completeRound(p *Player) {
	s := r.session
	s.completed[p.id] = true
	for _, q := range r.teammates(p) {
		s.completed[q.id] = true
	}
}

// exhaustTeam ends a team that spent its shared attempt budget.
func (r *Room) exhaustTeam(p *Player) {
	s := r.session
	team := p.seat.Team()
	if team == "" || s.teamTracks[team].Attempts() < s.settings.attempts() {
		return
	}
	for _, q := range append([]*Player{p}, r.teammates(p)...) {
		if q.finished() {
			continue
		}
		q.track = append(q.track, OutcomeExhausted)
		s.completed[q.id] = true
	}
	if !s.teamTracks[team].Finished() {
		s.teamTracks[team] = append(s.teamTracks[team], OutcomeExhausted)
	}
}

func parseResult(result string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "win":
		return OutcomeWin, nil
	case "bigwin":
		return OutcomeBigWin, nil
	case "surrender":
		return OutcomeSurrender, nil
	case "lose", "exhausted":
		return OutcomeExhausted, nil
	}
	return 0, badInput("result must be win, bigwin, surrender or lose")
}

// EndGame records the player's terminal outcome.
func (r *Room) EndGame(id, result string) error {
	o, err := parseResult(result)
	if err != nil {
		return err
	}
	if r.session == nil {
		return ErrNoSession
	}
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	switch {
	case p.isSetter:
		return ErrSetterPlays
	case !p.participant, p.seat.Kind() == SeatObserver:
		return ErrObserver
	case p.finished():
		return ErrAlreadyFinished
	}

	s := r.session
	if o == OutcomeWin && p.track.Attempts() == 1 {
		o = OutcomeBigWin
	}
	r.touch()

	switch o {
	case OutcomeWin, OutcomeBigWin:
		p.track = append(p.track, o)
		r.recordWin(p, o)
	case OutcomeSurrender:
		p.track = append(p.track, o)
	case OutcomeExhausted:
		r.shareTeamTrack(p, o)
	}
	r.log.Debug("player finished", "player", p.username, "outcome", o.Symbol())

	if s.sync() {
		s.completed[p.id] = true
		if s.nonstop() {
			r.completeRound(p)
		}
	}
	r.broadcastRoster()
	if s.nonstop() {
		r.broadcast(envelope("nonstop_progress", r.nonstopProgress()))
	}
	if s.sync() {
		r.updateSync()
	}
	r.checkTermination()
	return nil
}

func (r *Room) recordWin(p *Player, o Outcome) {
	s := r.session
	if s.nonstop() {
		rank := len(s.winners) + 1
		if s.sync() {
			rank = s.roundStartRank
		}
		s.winners = append(s.winners, nonstopWinner{
			playerID:    p.id,
			username:    p.username,
			rank:        rank,
			activeAtWin: r.activeCount(),
		})
	} else {
		if s.firstWinner == "" || (o == OutcomeBigWin && !s.firstBig) {
			s.firstWinner = p.id
			s.firstBig = o == OutcomeBigWin
		}
		if s.sync() {
			s.winnerFound = true
		}
	}
	r.markTeamVictory(p)
}

// markTeamVictory credits p's teammates with the team win and parks them as
// temporary observers so they stop guessing.
func (r *Room) markTeamVictory(winner *Player) {
	s := r.session
	team := winner.seat.Team()
	if team != "" {
		if _, ok := s.teamWinners[team]; !ok {
			s.teamWinners[team] = winner.username
			s.teamTracks[team] = append(s.teamTracks[team], OutcomeTeamCredit)
		}
		for _, q := range r.teammates(winner) {
			if !q.connected || q.finished() {
				continue
			}
			q.track = append(q.track, OutcomeTeamCredit)
			q.seat = TempObserver(q.seat)
			delete(s.completed, q.id)
			q.send(envelope("team_win", TeamWinPayload{WinnerName: winner.username}))
		}
	}
	// classic sync: the winner sits out the rest of the round as well
	if !s.nonstop() && s.sync() {
		winner.seat = TempObserver(winner.seat)
	}
}

// TimeOut spends one attempt of a player whose turn clock ran out.
func (r *Room) TimeOut(id string) error {
	p, err := r.actingPlayer(id)
	if err != nil {
		return err
	}
	r.touch()
	r.applyTimeout(p)
	r.broadcastRoster()
	if r.session.sync() {
		r.updateSync()
	}
	r.checkTermination()
	return nil
}

func (r *Room) applyTimeout(p *Player) {
	s := r.session
	r.shareTeamTrack(p, OutcomeTimeout)
	for _, q := range r.teammates(p) {
		q.send(envelope("timer_reset", struct{}{}))
	}
	if s.sync() {
		r.exhaustTeam(p)
		r.completeRound(p)
	}
}

// RevealTags shares attributes a player uncovered. In sync mode reveals wait
// for the round barrier so slower players see nothing early.
func (r *Room) RevealTags(id string, tags []string) error {
	if r.session == nil {
		return ErrNoSession
	}
	p, err := r.mustPlayer(id)
	if err != nil {
		return err
	}
	s := r.session
	if !s.settings.TagBan {
		return badInput("tag ban is off")
	}
	var in []TagReveal
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			in = append(in, TagReveal{Tag: t, Revealers: []string{p.id}})
		}
	}
	if len(in) == 0 {
		return nil
	}
	r.touch()
	if s.sync() {
		s.pendingTags = mergeTags(s.pendingTags, in...)
		return nil
	}
	s.tags = mergeTags(s.tags, in...)
	r.broadcast(envelope("tag_ban_state", TagBanPayload{Entries: s.tags}))
	return nil
}

func (r *Room) activeCount() int {
	n := 0
	for _, p := range r.players {
		if p.active() {
			n++
		}
	}
	return n
}

// checkTermination settles the session once its mode says it is over.
func (r *Room) checkTermination() {
	s := r.session
	if s == nil {
		return
	}
	if s.nonstop() {
		for _, p := range r.players {
			if p.active() && !p.finished() {
				return
			}
		}
		r.settle()
		return
	}
	r.tryFinalizeClassic(false)
}
