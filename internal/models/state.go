package models

// AppState is the engine's top-level state. It is owned exclusively by
// the core state manager; everything else, the UI included, only reads
// it to decide what prompt to render.
type AppState int

const (
	StateBooting AppState = iota
	StateIdle
	StateProcessing
	StateConfirmation
	StateCategorization
	StateCaution
	StateExecuting
	StateErrorRecovery
	StateError
)

func (s AppState) String() string {
	switch s {
	case StateBooting:
		return "BOOTING"
	case StateIdle:
		return "IDLE"
	case StateProcessing:
		return "PROCESSING"
	case StateConfirmation:
		return "CONFIRMATION"
	case StateCategorization:
		return "CATEGORIZATION"
	case StateCaution:
		return "CAUTION"
	case StateExecuting:
		return "EXECUTING"
	case StateErrorRecovery:
		return "ERROR_RECOVERY"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// AwaitingDecision reports whether the state is a user-facing prompt
// rather than background work.
func (s AppState) AwaitingDecision() bool {
	switch s {
	case StateConfirmation, StateCategorization, StateCaution, StateErrorRecovery:
		return true
	}
	return false
}
