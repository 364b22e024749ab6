package task

import "testing"

func TestValidateDAG(t *testing.T) {
	byID := map[string]*Task{
		"a": {ID: "a", DependsOn: map[string]bool{}},
		"b": {ID: "b", DependsOn: map[string]bool{"a": true}},
	}

	t.Run("acyclic addition", func(t *testing.T) {
		if err := ValidateDAG(byID, "c", map[string]bool{"b": true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("self cycle", func(t *testing.T) {
		if err := ValidateDAG(byID, "a", map[string]bool{"a": true}); err == nil {
			t.Fatal("expected cycle error")
		}
	})

	t.Run("introduced cycle", func(t *testing.T) {
		// b depends on a; making a depend on b closes the loop.
		if err := ValidateDAG(byID, "a", map[string]bool{"b": true}); err == nil {
			t.Fatal("expected cycle error")
		}
	})

	t.Run("dependency on unknown id is ignored, not rejected", func(t *testing.T) {
		if err := ValidateDAG(byID, "d", map[string]bool{"nonexistent": true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestReadyTasks(t *testing.T) {
	byID := map[string]*Task{
		"a": {ID: "a", Status: StatusDone},
		"b": {ID: "b", Status: StatusOpen, DependsOn: map[string]bool{"a": true}},
		"c": {ID: "c", Status: StatusOpen, DependsOn: map[string]bool{"b": true}},
		"d": {ID: "d", Status: StatusInProgress},
	}

	ready := ReadyTasks(byID)
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("ReadyTasks = %v, want [b]", ready)
	}
}
