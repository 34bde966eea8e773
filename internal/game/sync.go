package game

import "time"

// updateSync is the round barrier: the round advances only once every
// connected contender still playing has acted in it.
func (r *Room) updateSync() {
	s := r.session
	if s == nil || !s.sync() {
		return
	}
	pending := 0
	waiting := 0
	for _, p := range r.players {
		if !p.active() || p.finished() {
			continue
		}
		waiting++
		if !s.completed[p.id] {
			pending++
		}
	}
	if waiting == 0 {
		return
	}

	if pending > 0 {
		r.broadcast(envelope("round_waiting", r.roundWaiting()))
		if !s.nonstop() && s.winnerFound {
			name := ""
			if w := r.player(s.firstWinner); w != nil {
				name = w.username
			}
			r.broadcast(envelope("round_ending", RoundEndingPayload{WinnerUsername: name}))
		}
		return
	}

	if s.flushPendingTags() {
		r.broadcast(envelope("tag_ban_state", TagBanPayload{Entries: s.tags}))
	}
	if !s.nonstop() && s.winnerFound {
		s.readyToEnd = true
		s.stopTimer()
		r.tryFinalizeClassic(true)
		return
	}

	s.round++
	clear(s.completed)
	if s.nonstop() {
		s.roundStartRank = len(s.winners) + 1
	}
	r.startRoundTimer()
	r.log.Debug("round advanced", "round", s.round)
	r.broadcast(envelope("round_start", r.roundStart()))
	r.broadcast(envelope("round_waiting", r.roundWaiting()))
}

func (r *Room) startRoundTimer() {
	s := r.session
	s.stopTimer()
	s.roundToken++
	s.roundDeadline = time.Time{}
	if s.settings.TimeLimit <= 0 || r.timers == nil {
		return
	}
	d := time.Duration(s.settings.TimeLimit) * time.Second
	token := s.roundToken
	s.roundDeadline = r.now().Add(d)
	s.cancelTimer = r.timers.After(d, func() { r.onRoundTimeout(token) })
}

// onRoundTimeout spends one attempt of everyone who has not acted this round.
func (r *Room) onRoundTimeout(token int64) {
	s := r.session
	if r.closed || s == nil || token != s.roundToken {
		return // stale timer
	}
	s.cancelTimer = nil
	for _, p := range r.players {
		if !p.active() || p.finished() || s.completed[p.id] {
			continue
		}
		r.applyTimeout(p)
	}
	r.broadcastRoster()
	r.updateSync()
	r.checkTermination()
}

func (r *Room) roundStart() RoundStartPayload {
	s := r.session
	out := RoundStartPayload{Round: s.round}
	if !s.roundDeadline.IsZero() {
		out.DeadlineMs = s.roundDeadline.UnixMilli()
	}
	return out
}

func (r *Room) roundWaiting() RoundWaitingPayload {
	s := r.session
	out := RoundWaitingPayload{Round: s.round, Status: []SyncStatus{}}
	for _, p := range r.players {
		if !p.active() || p.finished() {
			continue
		}
		done := s.completed[p.id]
		out.Status = append(out.Status, SyncStatus{ID: p.id, Username: p.username, Completed: done})
		out.TotalCount++
		if done {
			out.CompletedCount++
		}
	}
	return out
}

func (r *Room) nonstopProgress() NonstopProgressPayload {
	s := r.session
	out := NonstopProgressPayload{Winners: []NonstopWinnerView{}}
	for _, w := range s.winners {
		v := NonstopWinnerView{Username: w.username, Rank: w.rank}
		if p := r.player(w.playerID); p != nil {
			v.Score = ScoreWinner(p.track, NonstopBase(w.activeAtWin, w.rank), s.settings.attempts()).Total
		}
		out.Winners = append(out.Winners, v)
	}
	for _, p := range r.players {
		if !p.active() {
			continue
		}
		out.TotalCount++
		if !p.finished() {
			out.RemainingCount++
		}
	}
	return out
}

// tryFinalizeClassic settles a classic session when a winner exists or
// everyone is done. In sync mode a winner waits for the round barrier unless
// force is set.
func (r *Room) tryFinalizeClassic(force bool) {
	s := r.session
	if s == nil || s.nonstop() {
		return
	}
	allEnded := true
	hasWinner := false
	for _, p := range r.players {
		if !p.contender() {
			continue
		}
		if p.track.Won() {
			hasWinner = true
		}
		if p.connected && !p.finished() {
			allEnded = false
		}
	}
	switch {
	case !hasWinner && !allEnded:
		return
	case hasWinner && s.sync() && !allEnded && !s.readyToEnd && !force:
		return
	}
	r.settle()
}
