package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/models"
)

func TestStateManagerLegalTransitions(t *testing.T) {
	sm := NewStateManager(zap.NewNop())
	assert.Equal(t, models.StateBooting, sm.State())

	assert.True(t, sm.Transition(models.StateIdle))
	assert.True(t, sm.Transition(models.StateProcessing))
	assert.True(t, sm.Transition(models.StateConfirmation))
	assert.True(t, sm.Transition(models.StateExecuting))
	assert.True(t, sm.Transition(models.StateErrorRecovery))
	assert.True(t, sm.Transition(models.StateIdle))
}

func TestStateManagerDropsIllegalTransitions(t *testing.T) {
	sm := NewStateManager(zap.NewNop())

	// Booting cannot jump straight to execution.
	assert.False(t, sm.Transition(models.StateExecuting))
	assert.Equal(t, models.StateBooting, sm.State())

	sm.Transition(models.StateIdle)

	// Idle cannot enter error recovery without a failed run.
	assert.False(t, sm.Transition(models.StateErrorRecovery))
	assert.Equal(t, models.StateIdle, sm.State())

	// Self-transitions are not listed as legal.
	assert.False(t, sm.Transition(models.StateIdle))
}

func TestStateManagerCwd(t *testing.T) {
	sm := NewStateManager(zap.NewNop())
	assert.NotEmpty(t, sm.Cwd())

	sm.SetCwd("/tmp")
	assert.Equal(t, "/tmp", sm.Cwd())
}
