package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound indicates the task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrMicroTaskNotFound indicates the micro task doesn't exist.
	ErrMicroTaskNotFound = errors.New("micro task not found")
	// ErrNotOwner indicates the caller does not own the task.
	ErrNotOwner = errors.New("task is owned by another user")
	// ErrInvalidInput indicates invalid task input.
	ErrInvalidInput = errors.New("invalid task input")
)

// InvalidTransitionError reports a transition that is not in the state
// machine's adjacency list, naming the current state, the requested action
// and the actions that would have been legal.
type InvalidTransitionError struct {
	TaskID  string
	From    Status
	Action  Action
	Allowed []Action
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, a := range e.Allowed {
		allowed[i] = string(a)
	}
	if len(allowed) == 0 {
		return fmt.Sprintf("invalid transition: cannot %s task %s in state %s (terminal state)",
			e.Action, e.TaskID, e.From)
	}
	return fmt.Sprintf("invalid transition: cannot %s task %s in state %s (allowed: %s)",
		e.Action, e.TaskID, e.From, strings.Join(allowed, ", "))
}
