package vote

import (
	"testing"
	"time"
)

func TestVote_Tally(t *testing.T) {
	v := &Vote{Ballots: map[string]Ballot{
		"a": {Choice: ChoiceYes},
		"b": {Choice: ChoiceYes},
		"c": {Choice: ChoiceNo},
		"d": {Choice: ChoiceAbstain},
	}}
	yes, no := v.Tally()
	if yes != 2 || no != 1 {
		t.Fatalf("Tally() = (%d, %d), want (2, 1)", yes, no)
	}
}

func TestVote_Passed(t *testing.T) {
	tests := []struct {
		name      string
		ballots   map[string]Ballot
		quorum    int
		threshold float64
		want      bool
	}{
		{
			name:      "below quorum",
			ballots:   map[string]Ballot{"a": {Choice: ChoiceYes}},
			quorum:    2,
			threshold: 0.5,
			want:      false,
		},
		{
			name: "meets quorum and threshold",
			ballots: map[string]Ballot{
				"a": {Choice: ChoiceYes},
				"b": {Choice: ChoiceYes},
				"c": {Choice: ChoiceNo},
			},
			quorum:    2,
			threshold: 0.5,
			want:      true,
		},
		{
			name: "meets quorum but fails threshold",
			ballots: map[string]Ballot{
				"a": {Choice: ChoiceYes},
				"b": {Choice: ChoiceNo},
				"c": {Choice: ChoiceNo},
			},
			quorum:    2,
			threshold: 0.6,
			want:      false,
		},
		{
			name:      "no ballots at all",
			ballots:   map[string]Ballot{},
			quorum:    0,
			threshold: 0.5,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Vote{Ballots: tt.ballots, Quorum: tt.quorum, Threshold: tt.threshold}
			if got := v.Passed(); got != tt.want {
				t.Fatalf("Passed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVote_Closed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := &Vote{ClosesAt: now}
	if !v.Closed(now) {
		t.Fatal("vote at its own close time should be closed")
	}
}
