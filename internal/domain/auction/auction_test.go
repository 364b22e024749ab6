package auction

import (
	"testing"
	"time"
)

func TestAuction_Winner_TieBreak(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no bids", func(t *testing.T) {
		a := &Auction{Bids: map[string]Bid{}}
		if _, ok := a.Winner(); ok {
			t.Fatal("expected no winner")
		}
	})

	t.Run("highest score wins", func(t *testing.T) {
		a := &Auction{Bids: map[string]Bid{
			"alice": {Agent: "alice", Score: 0.5, PostedAt: base},
			"bob":   {Agent: "bob", Score: 0.9, PostedAt: base},
		}}
		win, ok := a.Winner()
		if !ok || win.Agent != "bob" {
			t.Fatalf("Winner() = %+v, want bob", win)
		}
	})

	t.Run("tie breaks on earliest posted_at", func(t *testing.T) {
		a := &Auction{Bids: map[string]Bid{
			"alice": {Agent: "alice", Score: 0.5, PostedAt: base.Add(time.Minute)},
			"bob":   {Agent: "bob", Score: 0.5, PostedAt: base},
		}}
		win, ok := a.Winner()
		if !ok || win.Agent != "bob" {
			t.Fatalf("Winner() = %+v, want bob (earlier post)", win)
		}
	})

	t.Run("tie on score and time breaks lexicographically", func(t *testing.T) {
		a := &Auction{Bids: map[string]Bid{
			"zoe":   {Agent: "zoe", Score: 0.5, PostedAt: base},
			"alice": {Agent: "alice", Score: 0.5, PostedAt: base},
		}}
		win, ok := a.Winner()
		if !ok || win.Agent != "alice" {
			t.Fatalf("Winner() = %+v, want alice (lexicographically first)", win)
		}
	})
}

func TestAuction_Closed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := &Auction{ClosesAt: now}
	if !a.Closed(now) {
		t.Fatal("auction at its own close time should be closed")
	}
	a.ClosesAt = now.Add(time.Second)
	if a.Closed(now) {
		t.Fatal("auction before close time should not be closed")
	}
}
