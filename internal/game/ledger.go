package game

import (
	"cmp"
	"encoding/json"
	"slices"
)

// GuessEntry is one accepted guess. Entries are never mutated once appended.
type GuessEntry struct {
	Seq         int
	PlayerID    string
	PlayerName  string
	Team        string
	CandidateID string
	Name        string
	Correct     bool
	Partial     bool
	Data        json.RawMessage
}

type LedgerView struct {
	Username string            `json:"username"`
	Guesses  []json.RawMessage `json:"guesses"`
}

// Ledger is the per-session append-only guess record, grouped by username in
// seeding order.
type Ledger struct {
	order   []string
	entries map[string][]GuessEntry
	seq     int
}

func newLedger() *Ledger {
	return &Ledger{entries: make(map[string][]GuessEntry)}
}

// Seed opens an empty list for username. Seeding twice is a no-op.
func (l *Ledger) Seed(username string) {
	if _, ok := l.entries[username]; ok {
		return
	}
	l.order = append(l.order, username)
	l.entries[username] = nil
}

func (l *Ledger) Append(e GuessEntry) GuessEntry {
	l.Seed(e.PlayerName)
	l.seq++
	e.Seq = l.seq
	l.entries[e.PlayerName] = append(l.entries[e.PlayerName], e)
	return e
}

func (l *Ledger) Len() int { return l.seq }

// PickedByOther reports whether someone other than username already guessed candidateID.
func (l *Ledger) PickedByOther(username, candidateID string) bool {
	for name, list := range l.entries {
		if name == username {
			continue
		}
		for _, e := range list {
			if e.CandidateID == candidateID {
				return true
			}
		}
	}
	return false
}

// All returns every entry in submission order.
func (l *Ledger) All() []GuessEntry {
	out := make([]GuessEntry, 0, l.seq)
	for _, n := range l.order {
		out = append(out, l.entries[n]...)
	}
	slices.SortFunc(out, func(a, b GuessEntry) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

func (l *Ledger) View() []LedgerView {
	out := make([]LedgerView, 0, len(l.order))
	for _, n := range l.order {
		v := LedgerView{Username: n, Guesses: []json.RawMessage{}}
		for _, e := range l.entries[n] {
			v.Guesses = append(v.Guesses, e.Data)
		}
		out = append(out, v)
	}
	return out
}

// PartialAwardees returns, per scoring group, the username whose partial hit
// came first. A group is a team key or a solo player's username; groups listed
// in excluded get nothing.
func (l *Ledger) PartialAwardees(excluded map[string]bool) map[string]string {
	awards := make(map[string]string)
	for _, e := range l.All() {
		if !e.Partial || e.Correct {
			continue
		}
		g := groupKey(e.Team, e.PlayerName)
		if excluded[g] {
			continue
		}
		if _, ok := awards[g]; !ok {
			awards[g] = e.PlayerName
		}
	}
	return awards
}

func groupKey(team, username string) string {
	if team != "" {
		return "team:" + team
	}
	return "solo:" + username
}
