package permissions

// State is the lifecycle state of an Engine.
type State int

const (
	// StateInitialized means the engine is built but not bootstrapped.
	StateInitialized State = iota

	// StateStarting means Start is replaying history.
	StateStarting

	// StateRunning means bootstrap completed and admission is open.
	StateRunning

	// StateStopped means the engine has been shut down.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
