package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// dividerCircuit is the 10V / 10k / 10k voltage divider: V(mid) = 5V.
func dividerCircuit(t *testing.T, tolerance float64) (*circuit.Circuit, int) {
	t.Helper()
	c := circuit.New("divider")
	gnd := c.AddNode(0, 0)
	top := c.AddNode(1, 0)
	mid := c.AddNode(2, 0)
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
		Params:    map[string]float64{"resistance": 10000},
		Sweeps:    map[string]circuit.SweepConfig{},
		Tolerance: tolerance, ToleranceEnabled: tolerance != 0,
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R2",
		Terminals: []int{mid, gnd},
		Params:    map[string]float64{"resistance": 10000},
		Sweeps:    map[string]circuit.SweepConfig{},
		Tolerance: tolerance, ToleranceEnabled: tolerance != 0,
	}))
	return c, mid
}

func TestOperatingPointVoltageDivider(t *testing.T) {
	c, mid := dividerCircuit(t, 0)
	asm, err := mna.Build(c, false)
	require.NoError(t, err)

	op := NewOP()
	require.NoError(t, op.Setup(asm))
	require.NoError(t, op.Execute())

	idx := asm.NodeMap().Index(mid)
	got := asm.GetMatrix().Solution()[idx]
	assert.InDelta(t, 5.0, got, 1e-3)
}

func TestMonteCarloZeroToleranceReproducesNominal(t *testing.T) {
	c, mid := dividerCircuit(t, 0)

	spec := MonteCarloSpec{
		Runs: 8, Distribution: DistUniform, Seed: 42,
		TargetNode: mid, Metric: MetricFinalValue,
		RunDuration: 1e-4, Bins: 4,
	}
	h, err := RunMonteCarlo(c, spec)
	require.NoError(t, err)
	require.Len(t, h.Values, spec.Runs)

	for _, v := range h.Values {
		assert.InDelta(t, 5.0, v, 1e-3, "zero tolerance must reproduce the nominal divider output")
	}
	assert.InDelta(t, 0.0, h.StdDev, 1e-6)
}

func TestMonteCarloIdenticalSeedsIdenticalHistograms(t *testing.T) {
	c, mid := dividerCircuit(t, 0.05)

	spec := MonteCarloSpec{
		Runs: 12, Distribution: DistGaussian, Seed: 7,
		TargetNode: mid, Metric: MetricFinalValue,
		RunDuration: 1e-4, Bins: 6,
	}
	h1, err := RunMonteCarlo(c, spec)
	require.NoError(t, err)
	h2, err := RunMonteCarlo(c, spec)
	require.NoError(t, err)

	require.Equal(t, len(h1.Values), len(h2.Values))
	for i := range h1.Values {
		assert.Equal(t, h1.Values[i], h2.Values[i], "run %d must be bit-identical across equal seeds", i)
	}
	assert.Equal(t, h1.Counts, h2.Counts)
}

func TestSweepOrdersPointsAndVariesOutput(t *testing.T) {
	c, mid := dividerCircuit(t, 0)

	spec := SweepSpec{
		ComponentName: "R2", ParamKey: "resistance",
		Start: 5000, Stop: 20000, Points: 4,
		Mode: SweepPointLinear, RunDuration: 1e-4,
		ProbeNodes: []int{mid},
	}
	wfs, err := RunSweep(c, spec)
	require.NoError(t, err)
	require.Len(t, wfs, spec.Points)

	prev := -1.0
	for _, wf := range wfs {
		assert.Greater(t, wf.ParamValue, prev, "waveforms must arrive in sweep order")
		prev = wf.ParamValue

		series := wf.NodeVoltages[mid]
		require.NotEmpty(t, series)
		// Divider ratio R2/(R1+R2) rises with R2.
		want := 10 * wf.ParamValue / (10000 + wf.ParamValue)
		assert.InDelta(t, want, series[len(series)-1], 0.05)
	}

	// The engine's live circuit is untouched: sweeps run on clones.
	assert.InDelta(t, 10000.0, c.Components()[2].Params["resistance"], 1e-12)
}
