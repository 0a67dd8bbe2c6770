package block

// State identifies one of the states block can be in.
type State int

// Block states.
const (
	// Uninitialized means that Init wasn't called.
	Uninitialized State = iota
	// Initialized means that block is ready to be started.
	Initialized
	// Running means that block worker is executing.
	Running
	// Paused means that block worker is stopped for reconfiguration.
	Paused
	// Stopped means that block was started and then stopped.
	Stopped
)

// String converts the state to a string.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
