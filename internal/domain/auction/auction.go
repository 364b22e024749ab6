// Package auction defines the bidding round used to assign a ready task.
package auction

import "time"

// Bid is one agent's offer to take on a task. A later bid from the same
// agent overwrites its earlier one.
type Bid struct {
	Agent    string    `json:"agent"`
	Score    float64   `json:"score"`
	PostedAt time.Time `json:"posted_at"`
}

// Auction is the open bidding round for a single task.
type Auction struct {
	TaskID   string         `json:"task_id"`
	OpenedAt time.Time      `json:"opened_at"`
	ClosesAt time.Time      `json:"closes_at"`
	Bids     map[string]Bid `json:"bids"` // keyed by agent
}

// Winner returns the winning bid under the tie-break rule: highest score,
// then earliest posted_at, then lexicographically smallest agent id. The
// second return value is false if there are no bids.
func (a *Auction) Winner() (Bid, bool) {
	var best Bid
	found := false
	for _, b := range a.Bids {
		if !found {
			best, found = b, true
			continue
		}
		if b.Score > best.Score ||
			(b.Score == best.Score && b.PostedAt.Before(best.PostedAt)) ||
			(b.Score == best.Score && b.PostedAt.Equal(best.PostedAt) && b.Agent < best.Agent) {
			best = b
		}
	}
	return best, found
}

// Closed reports whether the auction's deadline has passed.
func (a *Auction) Closed(now time.Time) bool {
	return !now.Before(a.ClosesAt)
}
