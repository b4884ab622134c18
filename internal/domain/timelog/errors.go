package timelog

import "errors"

var (
	// ErrConflictingTimer indicates an attempt to open a second interval
	// while one is already open for the user.
	ErrConflictingTimer = errors.New("conflicting timer: an interval is already open")
	// ErrNoOpenInterval indicates a closing action with no open interval
	// for the task.
	ErrNoOpenInterval = errors.New("no open interval for task")
	// ErrOnBreak indicates the action requires ending the current break
	// first.
	ErrOnBreak = errors.New("task is on break")
	// ErrNotOnBreak indicates a break_end with no open break.
	ErrNotOnBreak = errors.New("task is not on break")
	// ErrSameTask indicates a switch where source and target are the same.
	ErrSameTask = errors.New("cannot switch a task to itself")
	// ErrInvalidInput indicates invalid timer input.
	ErrInvalidInput = errors.New("invalid timer input")
	// ErrInvalidCursor indicates a malformed pagination cursor.
	ErrInvalidCursor = errors.New("invalid cursor")
)
