package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/circuit"
	"github.com/anton-oss/circuitsim/pkg/device"
)

func buildDivider(t *testing.T) *mna.Assembly {
	t.Helper()
	c := circuit.New("divider")
	gnd := c.AddNode(0, 0)
	mid := c.AddNode(1, 0)
	top := c.AddNode(2, 0)
	require.NoError(t, c.SetGround(gnd))

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{top, gnd},
		Params:    map[string]float64{"voltage": 10},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{top, mid},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R2",
		Terminals: []int{mid, gnd},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))

	asm, err := mna.Build(c, false)
	require.NoError(t, err)
	return asm
}

func TestSolveLinearDivider(t *testing.T) {
	asm := buildDivider(t)
	status := &device.CircuitStatus{Mode: device.OperatingPointAnalysis, Temp: 300.15}

	require.NoError(t, Solve(asm, status, DefaultConfig(), true))

	solution := asm.GetMatrix().Solution()
	midIdx := asm.NodeMap().Index(1)
	assert.InDelta(t, 5.0, solution[midIdx], 1e-6)
}

func TestSolveDiodeClampConverges(t *testing.T) {
	c := circuit.New("clamp")
	gnd := c.AddNode(0, 0)
	top := c.AddNode(1, 0)
	mid := c.AddNode(2, 0)
	require.NoError(t, c.SetGround(gnd))

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{top, gnd},
		Params:    map[string]float64{"voltage": 5},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{top, mid},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindDiode, Name: "D1",
		Terminals: []int{mid, gnd},
		Params:    map[string]float64{"saturation_current": 1e-14, "n": 1, "breakdown_voltage": 100},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))

	asm, err := mna.Build(c, false)
	require.NoError(t, err)

	status := &device.CircuitStatus{Mode: device.OperatingPointAnalysis, Temp: 300.15}
	require.NoError(t, Solve(asm, status, DefaultConfig(), true))

	solution := asm.GetMatrix().Solution()
	midIdx := asm.NodeMap().Index(mid)
	assert.Greater(t, solution[midIdx], 0.4, "diode drop should sit near a silicon junction's forward voltage")
	assert.Less(t, solution[midIdx], 1.0, "diode should clamp the node well below the 5V supply")
}
