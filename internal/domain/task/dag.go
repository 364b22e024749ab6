package task

import "fmt"

// ErrCycle indicates that a proposed depends_on edge set would introduce a
// cycle in the project's task dependency graph.
type ErrCycle struct {
	TaskID string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("task %s: dependency graph contains a cycle", e.TaskID)
}

// ValidateDAG runs Kahn's algorithm over the full project task graph,
// including a proposed task (which may not yet be present in byID, as on
// create) with its candidate dependency set. It rejects any edge set that
// would make the graph non-acyclic.
func ValidateDAG(byID map[string]*Task, candidateID string, candidateDeps map[string]bool) error {
	ids := make([]string, 0, len(byID)+1)
	deps := make(map[string]map[string]bool, len(byID)+1)
	for id, t := range byID {
		ids = append(ids, id)
		if id == candidateID {
			deps[id] = candidateDeps
		} else {
			deps[id] = t.DependsOn
		}
	}
	if _, exists := byID[candidateID]; !exists {
		ids = append(ids, candidateID)
		deps[candidateID] = candidateDeps
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	n := len(ids)
	inDegree := make([]int, n)
	adj := make([][]int, n)
	for id, depSet := range deps {
		i := index[id]
		for dep := range depSet {
			j, ok := index[dep]
			if !ok {
				continue
			}
			adj[j] = append(adj[j], i)
			inDegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, neighbor := range adj[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if visited != n {
		return &ErrCycle{TaskID: candidateID}
	}
	return nil
}

// ReadyTasks returns the IDs of open tasks whose dependencies are all done.
// Called after a completion to find dependents that can now be announced.
func ReadyTasks(byID map[string]*Task) []string {
	var ready []string
	for id, t := range byID {
		if t.Ready(byID) {
			ready = append(ready, id)
		}
	}
	return ready
}
