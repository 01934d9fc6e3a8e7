package transient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

func buildRC(t *testing.T, r, cap_ float64) *mna.Assembly {
	t.Helper()
	c := circuit.New("rc")
	gnd := c.AddNode(0, 0)
	in := c.AddNode(1, 0)
	out := c.AddNode(2, 0)
	require.NoError(t, c.SetGround(gnd))

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{in, gnd},
		Params:    map[string]float64{"voltage": 1},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{in, out},
		Params:    map[string]float64{"resistance": r},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindCapacitor, Name: "C1",
		Terminals: []int{out, gnd},
		Params:    map[string]float64{"capacitance": cap_},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))

	asm, err := mna.Build(c, false)
	require.NoError(t, err)
	return asm
}

// TestRCChargeCurveMatchesAnalytic checks the classic RC step response
// Vc(t) = V*(1-exp(-t/RC)) to within the adaptive step's own tolerance.
func TestRCChargeCurveMatchesAnalytic(t *testing.T) {
	r, cap_ := 1000.0, 1e-6
	tau := r * cap_

	asm := buildRC(t, r, cap_)
	d := New(DefaultConfig())

	outIdx := asm.NodeMap().Index(2)
	for d.Time() < 5*tau {
		d.ClampDt(5*tau - d.Time())
		_, err := d.Step(asm)
		require.NoError(t, err)
	}

	got := asm.GetMatrix().Solution()[outIdx]
	want := 1.0 * (1 - math.Exp(-5))
	assert.InDelta(t, want, got, 0.02)
}

func TestResetClearsTimeAndStep(t *testing.T) {
	asm := buildRC(t, 1000, 1e-6)
	d := New(DefaultConfig())

	_, err := d.Step(asm)
	require.NoError(t, err)
	require.Greater(t, d.Time(), 0.0)

	d.Reset()
	assert.Equal(t, 0.0, d.Time())
	assert.Equal(t, d.cfg.DtInit, d.Dt())
}

func TestClampDtNeverGrowsStep(t *testing.T) {
	d := New(DefaultConfig())
	before := d.Dt()
	d.ClampDt(before * 10)
	assert.Equal(t, before, d.Dt(), "ClampDt must never increase the pending step")
}
