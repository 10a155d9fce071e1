package agent

// State is the observable position of the agent in its turn lifecycle.
type State int32

const (
	StateIdle State = iota
	StateAwaitingBackend
	StateAwaitingApproval
	StateExecutingTools
	StateCompacting
	StateCancelled
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBackend:
		return "awaiting_backend"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateExecutingTools:
		return "executing_tools"
	case StateCompacting:
		return "compacting"
	case StateCancelled:
		return "cancelled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
