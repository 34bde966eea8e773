package game

import (
	"fmt"
	"strings"
)

// Outcome is one entry of a player's per-session progress track.
type Outcome uint8

const (
	OutcomeMiss Outcome = iota + 1
	OutcomeCorrect
	OutcomePartial
	OutcomeTimeout

	// terminal outcomes
	OutcomeWin
	OutcomeBigWin
	OutcomeExhausted
	OutcomeSurrender
	OutcomeTeamCredit
)

var outcomeSymbols = map[Outcome]string{
	OutcomeMiss:       "❌",
	OutcomeCorrect:    "✔",
	OutcomePartial:    "💡",
	OutcomeTimeout:    "⏱️",
	OutcomeWin:        "✌",
	OutcomeBigWin:     "👑",
	OutcomeExhausted:  "💀",
	OutcomeSurrender:  "🏳️",
	OutcomeTeamCredit: "🏆",
}

func (o Outcome) Symbol() string { return outcomeSymbols[o] }

func (o Outcome) Terminal() bool { return o >= OutcomeWin }

// Won reports a personal win (the team credit of a teammate does not count).
func (o Outcome) Won() bool { return o == OutcomeWin || o == OutcomeBigWin }

// Track is the ordered outcome history of a player (or a team) for one session.
type Track []Outcome

func (t Track) Has(o Outcome) bool {
	for _, x := range t {
		if x == o {
			return true
		}
	}
	return false
}

// Attempts counts non-terminal entries. A partial hit is an attempt too.
func (t Track) Attempts() int {
	n := 0
	for _, x := range t {
		if !x.Terminal() {
			n++
		}
	}
	return n
}

func (t Track) Finished() bool {
	for _, x := range t {
		if x.Terminal() {
			return true
		}
	}
	return false
}

func (t Track) Won() bool { return t.Has(OutcomeWin) || t.Has(OutcomeBigWin) }

func (t Track) Last() (Outcome, bool) {
	if len(t) == 0 {
		return 0, false
	}
	return t[len(t)-1], true
}

func (t Track) clone() Track { return append(Track(nil), t...) }

// String renders the track with the symbols clients display.
func (t Track) String() string {
	var b strings.Builder
	for _, x := range t {
		b.WriteString(x.Symbol())
	}
	return b.String()
}

func (t Track) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses the symbol rendering back, longest symbol first so a
// variation selector stays with its base character.
func (t *Track) UnmarshalText(b []byte) error {
	s := string(b)
	out := Track{}
	for s != "" {
		var match Outcome
		n := 0
		for o, sym := range outcomeSymbols {
			if len(sym) > n && strings.HasPrefix(s, sym) {
				match, n = o, len(sym)
			}
		}
		if n == 0 {
			return fmt.Errorf("track: unknown symbol in %q", s)
		}
		out = append(out, match)
		s = s[n:]
	}
	*t = out
	return nil
}

// Result names how a finished track ended, as shown in score details.
func (t Track) Result() string {
	switch {
	case t.Has(OutcomeBigWin):
		return "bigwin"
	case t.Has(OutcomeWin):
		return "win"
	}
	last, _ := t.Last()
	switch last {
	case OutcomeTeamCredit:
		return "teamwin"
	case OutcomeExhausted:
		return "lose"
	case OutcomeSurrender:
		return "surrender"
	}
	return ""
}
