package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-oss/circuitsim/pkg/circuit"
)

func buildRCCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	c := circuit.New("rc")

	gnd := c.AddNode(0, 0)
	in := c.AddNode(1, 0)
	out := c.AddNode(2, 0)
	require.NoError(t, c.SetGround(gnd))

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceAC, Name: "V1",
		Terminals: []int{in, gnd},
		Params:    map[string]float64{"voltage": 5, "ac_mag": 1, "ac_phase": 0},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{in, out},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindCapacitor, Name: "C1",
		Terminals: []int{out, gnd},
		Params:    map[string]float64{"capacitance": 1e-6},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))

	require.NoError(t, c.AddProbe(&circuit.Probe{NodeID: out, Channel: 0}))
	return c
}

func TestEngineStepAdvancesTimeAndSamplesProbe(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.SetCircuit(buildRCCircuit(t)))

	res, err := e.Step(1e-3)
	require.NoError(t, err)
	assert.Greater(t, res.AdvancedTime, 0.0)
	assert.Greater(t, res.IterationsUsed, 0)

	samples := e.ProbeSamples(0)
	require.NotEmpty(t, samples)
	assert.Greater(t, samples[len(samples)-1].T, 0.0)
}

func TestEngineStepErrorsWithoutCircuit(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.Step(1e-3)
	assert.Error(t, err)
}

func TestEngineRebuildsOnCircuitModified(t *testing.T) {
	e := New(DefaultConfig())
	c := buildRCCircuit(t)
	require.NoError(t, e.SetCircuit(c))
	before := e.lastModified

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R2",
		Terminals: []int{0, 0},
		Params:    map[string]float64{"resistance": 500},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NotEqual(t, before, c.Modified())

	_, err := e.Step(1e-4)
	require.NoError(t, err)
	assert.Equal(t, c.Modified(), e.lastModified)
}

func TestEngineCancelStopsStepLoop(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.SetCircuit(buildRCCircuit(t)))

	e.Cancel()
	res, err := e.Step(10) // a huge wall-clock tick that would otherwise run many iterations
	require.NoError(t, err)
	assert.Less(t, res.AdvancedTime, 10.0, "cancellation should stop the loop well short of the requested duration")
}

func TestEngineProbeSamplesUnknownChannelIsEmpty(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.SetCircuit(buildRCCircuit(t)))
	assert.Nil(t, e.ProbeSamples(7))
}

func TestEngineRunBodeProducesMonotonicFrequencies(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.SetCircuit(buildRCCircuit(t)))

	cfg := DefaultConfig().Bode
	cfg.VinNode = 1
	cfg.VoutNode = 2
	cfg.Points = 5

	points, err := e.RunBode(cfg)
	require.NoError(t, err)
	require.Len(t, points, 5)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].FreqHz, points[i-1].FreqHz)
	}
}

// TestEngineRunBodeRCCornerFrequency checks the classic first-order
// low-pass corner: at f_c = 1/(2*pi*R*C) the response is -3 dB with -45
// degrees of phase.
func TestEngineRunBodeRCCornerFrequency(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.SetCircuit(buildRCCircuit(t)))

	fc := 1.0 / (2 * math.Pi * 1000 * 1e-6)
	cfg := BodeConfig{FStart: fc, FStop: fc, Points: 3, PointsType: "LIN", VinNode: 1, VoutNode: 2}

	points, err := e.RunBode(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, points)

	assert.InDelta(t, -3.0103, points[0].MagDB, 0.3)
	assert.InDelta(t, -45.0, points[0].PhaseDeg, 2.0)
}

func TestEngineRunBodeErrorsWithoutCircuit(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.RunBode(DefaultConfig().Bode)
	assert.Error(t, err)
}
