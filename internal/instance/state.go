package instance

// State is the lifecycle state of the singleton instance.
type State int

const (
	Absent State = iota
	Starting
	Running
	IdlePending
	Suspended
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case IdlePending:
		return "idle-pending"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Active reports whether an instance process exists in this state.
func (s State) Active() bool {
	return s == Running || s == IdlePending
}
