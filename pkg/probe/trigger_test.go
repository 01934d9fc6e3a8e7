package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerRisingEdgeFires(t *testing.T) {
	tr := NewTrigger(TriggerNormal, EdgeRising, 0, 1.0, 1e-3)
	tr.Arm(0)

	assert.False(t, tr.Evaluate(0, 0.5))
	assert.True(t, tr.Evaluate(1e-4, 1.5))
	assert.Equal(t, StateHoldoff, tr.State())
}

func TestTriggerFallingEdgeIgnoresRising(t *testing.T) {
	tr := NewTrigger(TriggerNormal, EdgeFalling, 0, 1.0, 1e-3)
	tr.Arm(0)

	assert.False(t, tr.Evaluate(0, 0.5))
	assert.False(t, tr.Evaluate(1e-4, 1.5), "falling-edge trigger must not fire on a rising crossing")
	assert.True(t, tr.Evaluate(2e-4, 0.5), "falling-edge trigger must fire on the actual downward crossing")
}

func TestTriggerHoldoffBlocksRearm(t *testing.T) {
	tr := NewTrigger(TriggerNormal, EdgeRising, 0, 1.0, 5e-3)
	tr.Arm(0)
	require := tr.Evaluate(0, 0.5)
	_ = require
	tr.Evaluate(1e-4, 1.5)
	assert.Equal(t, StateHoldoff, tr.State())

	// Still within holdoff: another crossing must not re-fire.
	assert.False(t, tr.Evaluate(5e-4, 0.5))
	assert.False(t, tr.Evaluate(6e-4, 1.5))
}

func TestTriggerAutoFreeRuns(t *testing.T) {
	tr := NewTrigger(TriggerAuto, EdgeRising, 0, 100, 0)
	tr.Arm(0)

	assert.False(t, tr.Evaluate(0, 0))
	assert.True(t, tr.Evaluate(autoFreeRunAfter+1e-6, 0), "auto mode must free-run after the timeout with no crossing")
}

func TestTriggerSingleModeFreezesUntilRearm(t *testing.T) {
	tr := NewTrigger(TriggerSingle, EdgeRising, 0, 1.0, 1e-3)
	tr.Arm(0)
	tr.Evaluate(0, 0.5)
	tr.Evaluate(1e-4, 1.5)
	assert.Equal(t, StateTriggered, tr.State())

	tr.Rearm(1e-4)
	assert.Equal(t, StateHoldoff, tr.State())
}
