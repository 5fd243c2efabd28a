package forksearch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStart is returned by Run when the start node is not part of the graph.
	ErrInvalidStart = errors.New("start node not in graph")

	// ErrGoalFound is the token cause recorded by the branch that reached a goal.
	ErrGoalFound = errors.New("goal found")

	errExhausted = errors.New("graph exhausted")
)

// TaskPanicError reports a panic recovered inside a search branch. It aborts the run.
type TaskPanicError struct {
	Node  any
	Value any
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("branch exploring %v panicked: %v", e.Node, e.Value)
}
