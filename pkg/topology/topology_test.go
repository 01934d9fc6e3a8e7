package topology

import (
	"testing"

	"github.com/anton-oss/circuitsim/pkg/circuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIdempotent(t *testing.T) {
	c := circuit.New("t")
	g := c.AddNode(0, 0)
	n1 := c.AddNode(1, 0)
	n2 := c.AddNode(2, 0)
	require.NoError(t, c.SetGround(g))
	require.NoError(t, c.AddWire(n1, n2))

	first := Build(c)
	second := Build(c)

	assert.Equal(t, first.Size(), second.Size())
	assert.Equal(t, first.Index(n1), second.Index(n1))
	assert.Equal(t, first.Index(n2), second.Index(n2))
	assert.Equal(t, first.Index(n1), first.Index(n2), "wire-coalesced nodes must share an index")
	assert.Equal(t, 0, first.Index(g))
}

func TestBuildGroundPromotion(t *testing.T) {
	c := circuit.New("t")
	a := c.AddNode(0, 0)
	b := c.AddNode(1, 0)
	require.NoError(t, c.AddWire(a, b))
	require.NoError(t, c.SetGround(b))

	nm := Build(c)
	assert.Equal(t, 0, nm.Index(a))
	assert.Equal(t, 0, nm.Index(b))
	assert.Equal(t, 0, nm.Size())
}

func TestBuildSameLayoutGivesSameIndex(t *testing.T) {
	// Two separately built circuits with the same layout (two nodes tied
	// by a wire, plus an isolated third node) give the isolated node the
	// same matrix index: Build numbers classes from the layout alone.
	c := circuit.New("t")
	g := c.AddNode(0, 0)
	n1 := c.AddNode(1, 0)
	n2 := c.AddNode(2, 0)
	n3 := c.AddNode(3, 0)
	require.NoError(t, c.SetGround(g))
	require.NoError(t, c.AddWire(n1, n2))

	before := Build(c)
	idxN3Before := before.Index(n3)

	c2 := circuit.New("t")
	g2 := c2.AddNode(0, 0)
	m1 := c2.AddNode(1, 0)
	m2 := c2.AddNode(2, 0)
	m3 := c2.AddNode(3, 0)
	require.NoError(t, c2.SetGround(g2))
	require.NoError(t, c2.AddWire(m1, m2))
	_ = m3

	after := Build(c2)
	assert.Equal(t, idxN3Before, after.Index(m3))
}

// TestWireCurrentsPropagatesAlongChain builds a source feeding a load
// through a chain of equipotential wires: the source's + terminal seeds
// the first wire's direction, and the fixup passes must carry the same
// current through the rest of the chain.
func TestWireCurrentsPropagatesAlongChain(t *testing.T) {
	c := circuit.New("chain")
	gnd := c.AddNode(0, 0)
	a := c.AddNode(1, 0)
	b := c.AddNode(2, 0)
	d := c.AddNode(3, 0)
	require.NoError(t, c.SetGround(gnd))

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{a, gnd},
		Params:    map[string]float64{"voltage": 5},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{d, gnd},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddWire(a, b))
	require.NoError(t, c.AddWire(b, d))

	nm := Build(c)
	voltages := map[int]float64{gnd: 0, a: 5, b: 5, d: 5}
	voltOf := func(id int) float64 { return voltages[id] }

	currents := WireCurrents(c, nm, voltOf)
	require.Len(t, currents, 2)

	// Icircuit = 5V / 1k through R1; both chain wires carry it Start->End.
	assert.InDelta(t, 5e-3, currents[0], 1e-12)
	assert.InDelta(t, 5e-3, currents[1], 1e-12)
}

// TestWireCurrentsPassCapLeavesFarWiresUnassigned exercises the fixed
// propagation-pass cap: a chain ordered so each pass can only assign one
// more wire must leave anything beyond the cap's reach at zero.
func TestWireCurrentsPassCapLeavesFarWiresUnassigned(t *testing.T) {
	c := circuit.New("long-chain")
	gnd := c.AddNode(0, 0)
	require.NoError(t, c.SetGround(gnd))

	const n = 14
	nodes := make([]int, n)
	for i := range nodes {
		nodes[i] = c.AddNode(float64(i+1), 0)
	}

	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{nodes[0], gnd},
		Params:    map[string]float64{"voltage": 5},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{nodes[n-1], gnd},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))

	// Far-to-near order: wire i connects nodes[n-2-i] -> nodes[n-1-i], so
	// only the last wire touches the source terminal and each pass can
	// reach exactly one wire further down the chain.
	for i := n - 2; i >= 0; i-- {
		require.NoError(t, c.AddWire(nodes[i], nodes[i+1]))
	}

	nm := Build(c)
	voltOf := func(id int) float64 {
		if id == gnd {
			return 0
		}
		return 5
	}

	currents := WireCurrents(c, nm, voltOf)
	require.Len(t, currents, n-1)

	// The seed wire (last added, touching the source's + terminal) plus
	// ten passes reach eleven wires; the remaining two stay at zero.
	assigned := 0
	for _, cur := range currents {
		if cur != 0 {
			assigned++
		}
	}
	assert.Equal(t, 11, assigned)
	assert.Zero(t, currents[0])
	assert.Zero(t, currents[1])
}

func TestWireCurrentsQuiescentCircuitIsAllZero(t *testing.T) {
	c := circuit.New("quiet")
	gnd := c.AddNode(0, 0)
	a := c.AddNode(1, 0)
	require.NoError(t, c.SetGround(gnd))
	require.NoError(t, c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{a, gnd},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	}))
	require.NoError(t, c.AddWire(a, gnd))

	nm := Build(c)
	voltOf := func(int) float64 { return 0 }

	currents := WireCurrents(c, nm, voltOf)
	require.Len(t, currents, 1)
	assert.Zero(t, currents[0])
}
