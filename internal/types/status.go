package types

// Status is a closed set of task states forming a strict forward cycle:
// todo -> in-progress -> waiting -> completed -> todo.
type Status string

const (
	// StatusTodo is the initial state for new tasks.
	StatusTodo Status = "todo"

	// StatusInProgress indicates someone is actively working on the task.
	StatusInProgress Status = "in-progress"

	// StatusWaiting indicates the task is blocked on something external
	// (drying, soaking, another household member).
	StatusWaiting Status = "waiting"

	// StatusCompleted indicates the task is done. Entering this state
	// stamps CompletedAt; leaving it clears the stamp.
	StatusCompleted Status = "completed"
)

// AllStatuses lists every status in cycle order.
var AllStatuses = []Status{StatusTodo, StatusInProgress, StatusWaiting, StatusCompleted}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusWaiting, StatusCompleted:
		return true
	}
	return false
}

// Advance returns the next status in the cycle. The transition is total:
// every state has exactly one successor, and completed wraps to todo.
func (s Status) Advance() Status {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusWaiting
	case StatusWaiting:
		return StatusCompleted
	case StatusCompleted:
		return StatusTodo
	default:
		return StatusTodo
	}
}

// Index returns the position of s in the cycle, with todo at 0.
// Unknown states report -1.
func (s Status) Index() int {
	for i, known := range AllStatuses {
		if s == known {
			return i
		}
	}
	return -1
}

// String returns the wire representation of the status.
func (s Status) String() string {
	return string(s)
}
