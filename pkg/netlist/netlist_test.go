package netlist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-oss/circuitsim/pkg/circuit"
)

func buildSample() *circuit.Circuit {
	c := circuit.New("sample")
	gnd := c.AddNode(0, 0)
	vcc := c.AddNode(10, 0)
	mid := c.AddNode(20, 0)
	_ = c.SetGround(gnd)

	_ = c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{vcc, gnd},
		Params:    map[string]float64{"voltage": 5, "ac_mag": 0, "ac_phase": 0},
		Sweeps:    map[string]circuit.SweepConfig{},
	})
	_ = c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{vcc, mid},
		Params:    map[string]float64{"resistance": 1000, "tc1": 0, "tc2": 0},
		Sweeps:    map[string]circuit.SweepConfig{},
		Tolerance: 0.05, ToleranceEnabled: true,
	})
	_ = c.AddComponent(&circuit.Component{
		Kind: circuit.KindDiode, Name: "D1",
		Terminals: []int{mid, gnd},
		Params:    map[string]float64{"saturation_current": 1e-14, "n": 1, "breakdown_voltage": 100},
		Sweeps:    map[string]circuit.SweepConfig{},
		Thermal:   &circuit.ThermalState{Rth: 50, Cth: 1e-3, TMax: 450, AmbientT: 300.15},
	})
	_ = c.AddWire(mid, mid)

	return c
}

func assertStructurallyEqual(t *testing.T, want, got *circuit.Circuit) {
	require.Len(t, got.Nodes(), len(want.Nodes()))
	require.Len(t, got.Components(), len(want.Components()))
	require.Len(t, got.Wires(), len(want.Wires()))

	wantGround, wantHasGround := want.GroundNodeID()
	gotGround, gotHasGround := got.GroundNodeID()
	assert.Equal(t, wantHasGround, gotHasGround)
	if wantHasGround {
		assert.Equal(t, want.Node(wantGround).X, got.Node(gotGround).X)
	}

	for i, wc := range want.Components() {
		gc := got.Components()[i]
		assert.Equal(t, wc.Kind, gc.Kind)
		assert.Equal(t, wc.Name, gc.Name)
		assert.Equal(t, len(wc.Terminals), len(gc.Terminals))
		for key, v := range wc.Params {
			assert.InDelta(t, v, gc.Params[key], 1e-9, "param %s on %s", key, wc.Name)
		}
		assert.Equal(t, wc.ToleranceEnabled, gc.ToleranceEnabled)
		assert.InDelta(t, wc.Tolerance, gc.Tolerance, 1e-12)
		if wc.Thermal != nil {
			require.NotNil(t, gc.Thermal)
			assert.InDelta(t, wc.Thermal.Rth, gc.Thermal.Rth, 1e-9)
			assert.InDelta(t, wc.Thermal.TMax, gc.Thermal.TMax, 1e-9)
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	c := buildSample()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, c))

	loaded, err := Load(&buf, "sample")
	require.NoError(t, err)

	assertStructurallyEqual(t, c, loaded)
}

func TestBinaryRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 12))
	_, err := Load(buf, "broken")
	assert.Error(t, err)
}

func TestBinaryRejectsFutureVersion(t *testing.T) {
	var buf bytes.Buffer
	c := circuit.New("empty")
	c.AddNode(0, 0)
	require.NoError(t, Save(&buf, c))

	raw := buf.Bytes()
	raw[4] = 99 // version field, little-endian low byte

	_, err := Load(bytes.NewReader(raw), "empty")
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	c := buildSample()

	var buf bytes.Buffer
	require.NoError(t, SaveJSON(&buf, c))

	loaded, err := LoadJSON(&buf, "sample")
	require.NoError(t, err)

	assertStructurallyEqual(t, c, loaded)
}

func TestParseEngineeringValue(t *testing.T) {
	cases := map[string]float64{
		"4.7k": 4700, "100n": 100e-9, "1meg": 1e6, "2.2u": 2.2e-6,
	}
	for in, want := range cases {
		got, err := ParseEngineeringValue(in)
		require.NoError(t, err)
		assert.InDelta(t, want, got, want*1e-9+1e-18)
	}
}
