package game

import (
	"encoding/json"
	"slices"
	"time"
)

type nonstopWinner struct {
	playerID    string
	username    string
	rank        int
	activeAtWin int
}

// Session is one played game, from the answer being set to settlement.
type Session struct {
	answer   Answer
	hints    json.RawMessage
	settings Settings
	manual   bool

	ledger     *Ledger
	teamTracks map[string]Track

	// team key -> winner name, for backfilling reconnecting teammates
	teamWinners map[string]string

	// sync
	round          int
	completed      map[string]bool
	roundStartRank int
	winnerFound    bool
	readyToEnd     bool
	roundToken     int64
	roundDeadline  time.Time
	cancelTimer    func()

	// classic
	firstWinner string
	firstBig    bool

	// nonstop
	winners []nonstopWinner

	tags        []TagReveal
	pendingTags []TagReveal

	startedAt time.Time
}

func newSession(answer Answer, hints json.RawMessage, settings Settings, manual bool, now time.Time) *Session {
	return &Session{
		answer:         answer,
		hints:          hints,
		settings:       settings,
		manual:         manual,
		ledger:         newLedger(),
		teamTracks:     make(map[string]Track),
		teamWinners:    make(map[string]string),
		completed:      make(map[string]bool),
		roundStartRank: 1,
		startedAt:      now,
	}
}

func (s *Session) sync() bool    { return s.settings.SyncMode }
func (s *Session) nonstop() bool { return s.settings.NonstopMode }

func (s *Session) stopTimer() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}

// rewriteID follows a reconnecting player to their new connection id.
func (s *Session) rewriteID(from, to string) {
	if s.completed[from] {
		delete(s.completed, from)
		s.completed[to] = true
	}
	if s.firstWinner == from {
		s.firstWinner = to
	}
	for i := range s.winners {
		if s.winners[i].playerID == from {
			s.winners[i].playerID = to
		}
	}
	rewriteRevealers(s.tags, from, to)
	rewriteRevealers(s.pendingTags, from, to)
}

func rewriteRevealers(entries []TagReveal, from, to string) {
	for i := range entries {
		for j, id := range entries[i].Revealers {
			if id == from {
				entries[i].Revealers[j] = to
			}
		}
	}
}

// mergeTags folds reveals into dst keeping tag order and revealer uniqueness.
func mergeTags(dst []TagReveal, src ...TagReveal) []TagReveal {
	for _, in := range src {
		i := slices.IndexFunc(dst, func(e TagReveal) bool { return e.Tag == in.Tag })
		if i < 0 {
			dst = append(dst, TagReveal{Tag: in.Tag, Revealers: slices.Clone(in.Revealers)})
			continue
		}
		for _, id := range in.Revealers {
			if !slices.Contains(dst[i].Revealers, id) {
				dst[i].Revealers = append(dst[i].Revealers, id)
			}
		}
	}
	return dst
}

func (s *Session) flushPendingTags() bool {
	if len(s.pendingTags) == 0 {
		return false
	}
	s.tags = mergeTags(s.tags, s.pendingTags...)
	s.pendingTags = nil
	return true
}
