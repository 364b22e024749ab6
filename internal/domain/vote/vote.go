// Package vote defines dangerous-action voting: a time-bounded ballot
// round that gates execution of an action tagged with its vote id.
package vote

import "time"

// Choice is a single agent's ballot.
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

// Ballot is one agent's cast vote.
type Ballot struct {
	Choice Choice    `json:"choice"`
	TS     time.Time `json:"ts"`
}

// Vote is an open or resolved ballot round for a dangerous action.
type Vote struct {
	ID        string            `json:"id"`
	Subject   string            `json:"subject"`
	Kind      string            `json:"kind"`
	OpenedBy  string            `json:"opened_by"`
	OpenedAt  time.Time         `json:"opened_at"`
	ClosesAt  time.Time         `json:"closes_at"`
	Ballots   map[string]Ballot `json:"ballots"` // keyed by agent
	Quorum    int               `json:"quorum"`
	Threshold float64           `json:"threshold"`
}

// Tally counts yes/no ballots (abstentions don't count toward either side).
func (v *Vote) Tally() (yes, no int) {
	for _, b := range v.Ballots {
		switch b.Choice {
		case ChoiceYes:
			yes++
		case ChoiceNo:
			no++
		}
	}
	return yes, no
}

// Passed reports whether the vote has reached quorum and cleared threshold.
func (v *Vote) Passed() bool {
	yes, no := v.Tally()
	total := yes + no
	if total < v.Quorum || total == 0 {
		return false
	}
	return float64(yes)/float64(total) >= v.Threshold
}

// Closed reports whether the vote's deadline has passed.
func (v *Vote) Closed(now time.Time) bool {
	return !now.Before(v.ClosesAt)
}
