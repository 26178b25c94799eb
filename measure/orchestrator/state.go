package orchestrator

type State int32

const (
	StateIdle State = iota
	StateCalibrating
	StateAwaitingRepetition
	StateRunning
	StateAccounting
	StateRetryPending
	StateRepetitionComplete
	StateSessionComplete
)

var stateNames = [...]string{
	StateIdle:               "idle",
	StateCalibrating:        "calibrating",
	StateAwaitingRepetition: "awaiting_repetition",
	StateRunning:            "running",
	StateAccounting:         "accounting",
	StateRetryPending:       "retry_pending",
	StateRepetitionComplete: "repetition_complete",
	StateSessionComplete:    "session_complete",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
