package game

// Scoring is a set of pure functions over finished tracks. Nothing here reads
// or mutates a Room, so running it twice over the same input gives the same
// deltas.

const (
	classicBase      = 2
	bigWinBonus      = 12
	defaultAttempts  = 10
	partialCredit    = 1
	quickBonusFast   = 2
	quickBonusSteady = 1
)

// Setter reason codes.
const (
	ReasonGivingAway = "giving_away_points"
	ReasonTooEasy    = "too_easy"
	ReasonTooHard    = "too_hard"
	ReasonBalanced   = "well_balanced"
	ReasonNobody     = "nobody_got_it"
)

type Bonuses struct {
	BigWin     int `json:"bigWin,omitempty"`
	QuickGuess int `json:"quickGuess,omitempty"`
}

type WinnerScore struct {
	Total    int
	Base     int
	Attempts int
	BigWin   bool
	Bonuses  Bonuses
}

// ScoreWinner computes base + big-win bonus + quick-guess bonus for a winning track.
func ScoreWinner(t Track, base, maxAttempts int) WinnerScore {
	if maxAttempts <= 0 {
		maxAttempts = defaultAttempts
	}
	s := WinnerScore{
		Base:     base,
		Attempts: t.Attempts(),
		BigWin:   t.Has(OutcomeBigWin),
	}

	if s.BigWin {
		s.Bonuses.BigWin = bigWinBonus
	} else {
		half := (maxAttempts + 1) / 2
		switch {
		case s.Attempts >= 2 && s.Attempts <= 3:
			s.Bonuses.QuickGuess = quickBonusFast
		case s.Attempts >= 4 && s.Attempts <= half:
			s.Bonuses.QuickGuess = quickBonusSteady
		}
	}

	s.Total = s.Base + s.Bonuses.BigWin + s.Bonuses.QuickGuess
	return s
}

// NonstopBase is the rank-based base score of a battle-royale winner.
func NonstopBase(activePlayers, rank int) int {
	return max(1, activePlayers-rank+1)
}

type SetterScore struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// ScoreSetter rates a manually-set answer in classic and sync mode.
// winner is the primary winner's track (nil when nobody won).
func ScoreSetter(winner Track, winnerTotal, maxAttempts int) SetterScore {
	if maxAttempts <= 0 {
		maxAttempts = defaultAttempts
	}
	if winner == nil {
		return SetterScore{Score: -1, Reason: ReasonNobody}
	}
	if winner.Has(OutcomeBigWin) {
		return SetterScore{Score: -max(1, winnerTotal/2), Reason: ReasonGivingAway}
	}

	n := winner.Attempts()
	switch {
	case n <= 3:
		return SetterScore{Score: -1, Reason: ReasonTooEasy}
	case 2*n > maxAttempts:
		return SetterScore{Score: 1, Reason: ReasonBalanced}
	}
	return SetterScore{}
}

// ScoreNonstopSetter rates a manually-set answer in battle-royale mode.
// bigWinnerTotal < 0 means there is no big winner.
func ScoreNonstopSetter(bigWinnerTotal, winners, activePlayers int) SetterScore {
	total := max(1, activePlayers)
	multiplier := max(1, (total+1)/2)

	if bigWinnerTotal >= 0 {
		return SetterScore{Score: -max(1, bigWinnerTotal/2), Reason: ReasonGivingAway}
	}
	if winners == 0 {
		return SetterScore{Score: -2 * multiplier, Reason: ReasonNobody}
	}

	// win rate compared as integers: 4*w <= n is w/n <= 25%
	switch {
	case 4*winners <= total:
		return SetterScore{Score: multiplier, Reason: ReasonTooHard}
	case 4*winners >= 3*total:
		return SetterScore{Score: multiplier, Reason: ReasonTooEasy}
	}
	return SetterScore{Score: 2 * multiplier, Reason: ReasonBalanced}
}
