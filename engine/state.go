package engine

// State is the lifecycle state of a Worker.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}
