package core

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/models"
)

// StateManager is the single owner of the engine's AppState and its
// working directory. Other components request transitions by returning
// outcomes to the router; only the router calls Transition.
type StateManager struct {
	mu     sync.RWMutex
	state  models.AppState
	cwd    string
	logger *zap.Logger
}

// legalTransitions encodes the state machine. A transition missing here
// is a programming error and is logged, not applied.
var legalTransitions = map[models.AppState][]models.AppState{
	models.StateBooting:        {models.StateIdle, models.StateError},
	models.StateIdle:           {models.StateProcessing, models.StateConfirmation, models.StateCategorization, models.StateCaution, models.StateExecuting, models.StateError},
	models.StateProcessing:     {models.StateIdle, models.StateConfirmation, models.StateCategorization, models.StateCaution, models.StateExecuting, models.StateError},
	models.StateConfirmation:   {models.StateIdle, models.StateCategorization, models.StateExecuting, models.StateProcessing, models.StateError},
	models.StateCategorization: {models.StateIdle, models.StateExecuting, models.StateError},
	models.StateCaution:        {models.StateIdle, models.StateExecuting, models.StateError},
	models.StateExecuting:      {models.StateIdle, models.StateErrorRecovery, models.StateError},
	models.StateErrorRecovery:  {models.StateIdle, models.StateProcessing, models.StateError},
	models.StateError:          {models.StateIdle},
}

func NewStateManager(logger *zap.Logger) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = os.TempDir()
	}
	return &StateManager{state: models.StateBooting, cwd: cwd, logger: logger}
}

func (sm *StateManager) State() models.AppState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Transition moves to the requested state, reporting whether the move
// was legal. Illegal moves are logged and dropped.
func (sm *StateManager) Transition(to models.AppState) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, allowed := range legalTransitions[sm.state] {
		if allowed == to {
			sm.logger.Debug("state transition",
				zap.Stringer("from", sm.state), zap.Stringer("to", to))
			sm.state = to
			return true
		}
	}
	sm.logger.Warn("illegal state transition dropped",
		zap.Stringer("from", sm.state), zap.Stringer("to", to))
	return false
}

// Cwd returns the engine's current working directory.
func (sm *StateManager) Cwd() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.cwd
}

// SetCwd updates the working directory after a cd builtin.
func (sm *StateManager) SetCwd(dir string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cwd = dir
}
