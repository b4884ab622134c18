package task

// Action represents a requested state machine event
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// transitions is the single adjacency list for macro task statuses. Every
// transition in the system passes through Next; there are no status writes
// outside of it.
var transitions = map[Status]map[Action]Status{
	StatusNotStarted: {
		ActionStart:  StatusInProgress,
		ActionCancel: StatusCancelled,
	},
	StatusInProgress: {
		ActionPause:    StatusPaused,
		ActionComplete: StatusCompleted,
		ActionCancel:   StatusCancelled,
	},
	StatusPaused: {
		ActionResume: StatusInProgress,
		ActionCancel: StatusCancelled,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// stepTransitions is the restricted adjacency list for micro task statuses.
var stepTransitions = map[StepStatus]map[Action]StepStatus{
	StepNotStarted: {
		ActionStart: StepInProgress,
	},
	StepInProgress: {
		ActionComplete: StepCompleted,
	},
	StepCompleted: {},
}

// Next returns the status reached by applying action to the current status,
// or an InvalidTransitionError naming the legal actions.
func Next(taskID string, from Status, action Action) (Status, error) {
	edges, ok := transitions[from]
	if ok {
		if to, ok := edges[action]; ok {
			return to, nil
		}
	}
	return "", &InvalidTransitionError{
		TaskID:  taskID,
		From:    from,
		Action:  action,
		Allowed: allowedActions(edges),
	}
}

// NextStep returns the micro task status reached by applying action, or an
// InvalidTransitionError.
func NextStep(microID string, from StepStatus, action Action) (StepStatus, error) {
	edges, ok := stepTransitions[from]
	if ok {
		if to, ok := edges[action]; ok {
			return to, nil
		}
	}
	stepEdges := make(map[Action]Status, len(edges))
	for a, to := range edges {
		stepEdges[a] = Status(to)
	}
	return "", &InvalidTransitionError{
		TaskID:  microID,
		From:    Status(from),
		Action:  action,
		Allowed: allowedActions(stepEdges),
	}
}

// Allowed returns the actions legal from the given status.
func Allowed(from Status) []Action {
	return allowedActions(transitions[from])
}

func allowedActions(edges map[Action]Status) []Action {
	// Stable order for error messages.
	order := []Action{ActionStart, ActionPause, ActionResume, ActionComplete, ActionCancel}
	allowed := make([]Action, 0, len(edges))
	for _, a := range order {
		if _, ok := edges[a]; ok {
			allowed = append(allowed, a)
		}
	}
	return allowed
}
