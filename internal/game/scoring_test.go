package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func track(os ...Outcome) Track { return Track(os) }

func TestScoreWinner(t *testing.T) {
	M, C, P, T := OutcomeMiss, OutcomeCorrect, OutcomePartial, OutcomeTimeout
	W, B := OutcomeWin, OutcomeBigWin

	cases := []struct {
		name      string
		tr        Track
		base      int
		max       int
		wantTotal int
		wantQuick int
		wantBig   int
	}{
		{name: "big win skips quick bonus", tr: track(C, B), base: 2, max: 10, wantTotal: 14, wantBig: 12},
		{name: "two attempts", tr: track(M, C, W), base: 2, max: 10, wantTotal: 4, wantQuick: 2},
		{name: "three attempts", tr: track(M, P, C, W), base: 2, max: 10, wantTotal: 4, wantQuick: 2},
		{name: "four attempts", tr: track(M, M, T, C, W), base: 2, max: 10, wantTotal: 3, wantQuick: 1},
		{name: "half of budget", tr: track(M, M, M, M, C, W), base: 2, max: 10, wantTotal: 3, wantQuick: 1},
		{name: "over half", tr: track(M, M, M, M, M, C, W), base: 2, max: 10, wantTotal: 2},
		{name: "odd budget rounds half up", tr: track(M, M, M, M, C, W), base: 2, max: 9, wantTotal: 3, wantQuick: 1},
		{name: "nonstop base", tr: track(M, M, M, M, M, M, C, W), base: 4, max: 10, wantTotal: 4},
		{name: "zero budget uses default", tr: track(M, C, W), base: 2, max: 0, wantTotal: 4, wantQuick: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreWinner(tc.tr, tc.base, tc.max)
			assert.Equal(t, tc.wantTotal, got.Total)
			assert.Equal(t, tc.wantQuick, got.Bonuses.QuickGuess)
			assert.Equal(t, tc.wantBig, got.Bonuses.BigWin)
			assert.Equal(t, tc.base, got.Base)
		})
	}
}

func TestNonstopBaseByRank(t *testing.T) {
	// four active players finishing in order
	var got []int
	for rank := 1; rank <= 4; rank++ {
		got = append(got, NonstopBase(4, rank))
	}
	assert.Equal(t, []int{4, 3, 2, 1}, got)
	assert.Equal(t, 1, NonstopBase(2, 5), "never below one")
}

func TestScoreSetter(t *testing.T) {
	M, C, W, B := OutcomeMiss, OutcomeCorrect, OutcomeWin, OutcomeBigWin

	cases := []struct {
		name   string
		winner Track
		total  int
		want   SetterScore
	}{
		{name: "nobody", winner: nil, want: SetterScore{Score: -1, Reason: ReasonNobody}},
		{name: "big winner", winner: track(C, B), total: 14, want: SetterScore{Score: -7, Reason: ReasonGivingAway}},
		{name: "too easy", winner: track(M, M, C, W), total: 4, want: SetterScore{Score: -1, Reason: ReasonTooEasy}},
		{name: "middle band", winner: track(M, M, M, M, C, W), total: 3, want: SetterScore{}},
		{name: "well balanced", winner: track(M, M, M, M, M, C, W), total: 2, want: SetterScore{Score: 1, Reason: ReasonBalanced}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScoreSetter(tc.winner, tc.total, 10))
		})
	}
}

func TestScoreNonstopSetter(t *testing.T) {
	cases := []struct {
		name    string
		big     int
		winners int
		active  int
		want    SetterScore
	}{
		{name: "half won", big: -1, winners: 2, active: 4, want: SetterScore{Score: 4, Reason: ReasonBalanced}},
		{name: "nobody", big: -1, winners: 0, active: 4, want: SetterScore{Score: -4, Reason: ReasonNobody}},
		{name: "too hard", big: -1, winners: 1, active: 4, want: SetterScore{Score: 2, Reason: ReasonTooHard}},
		{name: "too easy", big: -1, winners: 3, active: 4, want: SetterScore{Score: 2, Reason: ReasonTooEasy}},
		{name: "big winner", big: 16, winners: 1, active: 4, want: SetterScore{Score: -8, Reason: ReasonGivingAway}},
		{name: "odd count rounds up", big: -1, winners: 2, active: 5, want: SetterScore{Score: 6, Reason: ReasonBalanced}},
		{name: "single player", big: -1, winners: 0, active: 1, want: SetterScore{Score: -2, Reason: ReasonNobody}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScoreNonstopSetter(tc.big, tc.winners, tc.active))
		})
	}
}

func TestTrack(t *testing.T) {
	tr := track(OutcomeMiss, OutcomePartial, OutcomeTimeout, OutcomeCorrect, OutcomeWin)
	assert.Equal(t, 4, tr.Attempts())
	assert.True(t, tr.Finished())
	assert.True(t, tr.Won())
	assert.Equal(t, "win", tr.Result())
	assert.Equal(t, "❌💡⏱️✔✌", tr.String())

	b, err := tr.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, tr.String(), string(b))

	var back Track
	assert.NoError(t, back.UnmarshalText([]byte("🏳️⏱️✔❌")))
	assert.Equal(t, track(OutcomeSurrender, OutcomeTimeout, OutcomeCorrect, OutcomeMiss), back)
	assert.Error(t, back.UnmarshalText([]byte("x")))

	assert.Equal(t, "teamwin", track(OutcomeMiss, OutcomeTeamCredit).Result())
	assert.Equal(t, "lose", track(OutcomeExhausted).Result())
	assert.Equal(t, "surrender", track(OutcomeSurrender).Result())
	assert.Equal(t, "bigwin", track(OutcomeCorrect, OutcomeBigWin).Result())
	assert.Equal(t, "", track(OutcomeMiss).Result())
	assert.False(t, track(OutcomeMiss, OutcomeTeamCredit).Won())
}
