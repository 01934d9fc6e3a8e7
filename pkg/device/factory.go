package device

import (
	"fmt"

	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// indexer resolves a circuit node id to its MNA matrix row/column, same
// contract as topology.NodeMap.Index but expressed as a function so this
// package never imports pkg/topology.
type indexer func(nodeID int) int

func nodeIndices(comp *circuit.Component, idx indexer) []int {
	out := make([]int, len(comp.Terminals))
	for i, t := range comp.Terminals {
		out[i] = idx(t)
	}
	return out
}

func param(comp *circuit.Component, key string, def float64) float64 {
	if v, ok := comp.Params[key]; ok {
		return v
	}
	return def
}

func sweptParam(comp *circuit.Component, key string, def float64, t float64) float64 {
	if s, ok := comp.Sweeps[key]; ok && s.Enabled {
		return s.Value(t)
	}
	return param(comp, key, def)
}

// names returns a NodeNames-shaped placeholder; every device family kept
// from the teacher addresses nodes by position, never by the string name
// once topology has resolved them, so a component's terminal count is all
// that's needed here.
func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("n%d", i)
	}
	return out
}

// FromComponent builds the concrete device.Device (or, for mutual
// inductance, a Mutual awaiting SetInductor) implementing comp, resolving
// its terminals through idx. It mirrors the dispatch-by-discriminator shape
// of the teacher's SPICE-netlist device constructor, generalized from a
// SPICE element keyword to the persisted Component sum type.
func FromComponent(comp *circuit.Component, idx indexer) (Device, error) {
	nodes := nodeIndices(comp, idx)

	switch comp.Kind {
	case circuit.KindResistor:
		r := NewResistor(comp.Name, names(2), param(comp, "resistance", 1000))
		r.Tc1 = param(comp, "tc1", 0)
		r.Tc2 = param(comp, "tc2", 0)
		r.Component = comp
		r.SetNodes(nodes)
		return r, nil

	case circuit.KindCapacitor:
		c := NewCapacitor(comp.Name, names(2), param(comp, "capacitance", 1e-6))
		c.Component = comp
		c.SetNodes(nodes)
		return c, nil

	case circuit.KindInductor:
		l := NewInductor(comp.Name, names(2), param(comp, "inductance", 1e-3))
		l.Component = comp
		l.SetNodes(nodes)
		return l, nil

	case circuit.KindMutualInductance:
		m := NewMutual(comp.Name, comp.CoupledInductors, param(comp, "coupling", 1))
		m.Component = comp
		return m, nil

	case circuit.KindDiode, circuit.KindZenerDiode, circuit.KindSchottkyDiode, circuit.KindLED:
		d := NewDiode(comp.Name, names(2))
		applyDiodeKind(d, comp)
		d.Component = comp
		d.SetNodes(nodes)
		return d, nil

	case circuit.KindBJT:
		b := NewBJT(comp.Name, names(3))
		b.SetModelParameters(comp.Params)
		b.Component = comp
		b.SetNodes(nodes)
		return b, nil

	case circuit.KindMOSFET:
		m := NewMosfet(comp.Name, names(4))
		m.SetModelParameters(comp.Params)
		m.Component = comp
		if len(nodes) == 3 {
			// Three-terminal component: tie bulk to source.
			nodes = append(nodes, nodes[2])
		}
		m.SetNodes(nodes)
		return m, nil

	case circuit.KindOpAmp:
		o := NewOpAmp(comp.Name, param(comp, "gain", 1e5), param(comp, "vrail", 15))
		o.rin = param(comp, "rin", o.rin)
		o.rout = param(comp, "rout", o.rout)
		o.gbw = param(comp, "gbw", o.gbw)
		o.slew = param(comp, "slew", o.slew)
		o.Component = comp
		o.SetNodes(nodes)
		return o, nil

	case circuit.KindVoltageSourceDC:
		v := NewDCVoltageSource(comp.Name, names(2), param(comp, "voltage", 0))
		v.acMag, v.acPhase = param(comp, "ac_mag", 0), param(comp, "ac_phase", 0)
		v.Component = comp
		v.SetNodes(nodes)
		return v, nil

	case circuit.KindVoltageSourceAC:
		v := NewACVoltageSource(comp.Name, names(2), param(comp, "voltage", 0), param(comp, "ac_mag", 1), param(comp, "ac_phase", 0))
		v.Component = comp
		v.SetNodes(nodes)
		return v, nil

	case circuit.KindCurrentSourceDC:
		i := NewDCCurrentSource(comp.Name, names(2), param(comp, "current", 0))
		i.Component = comp
		i.SetNodes(nodes)
		return i, nil

	case circuit.KindSquareWaveSource, circuit.KindTriangleWaveSource, circuit.KindSawWaveSource, circuit.KindNoiseSource:
		v := newWaveformSource(comp)
		v.Component = comp
		v.SetNodes(nodes)
		return v, nil

	case circuit.KindSwitch, circuit.KindPushButton, circuit.KindRelay:
		s := NewSwitch(comp.Name, switchVariant(comp.Kind), param(comp, "on_resistance", 1e-3), param(comp, "off_resistance", 1e9))
		s.closed = param(comp, "closed", 0) != 0
		s.Component = comp
		s.SetNodes(nodes)
		return s, nil

	case circuit.KindTransformer:
		mi := NewMagneticInductor(comp.Name, names(2), int(param(comp, "turns", 100)))
		mi.Component = comp
		mi.SetNodes(nodes)
		return mi, nil

	case circuit.KindLogicGate:
		g := NewLogicGate(comp.Name, gateOp(comp), param(comp, "vhigh", 5), param(comp, "vlow", 0))
		g.Component = comp
		g.SetNodes(nodes)
		return g, nil

	case circuit.KindSchmittTrigger:
		st := NewSchmittTrigger(comp.Name, param(comp, "v_low_threshold", 1.5), param(comp, "v_high_threshold", 3.5), param(comp, "vhigh", 5))
		st.Component = comp
		st.SetNodes(nodes)
		return st, nil

	case circuit.KindVoltmeter, circuit.KindAmmeter, circuit.KindWattmeter:
		me := NewMeter(comp.Name, meterVariant(comp.Kind))
		me.Component = comp
		me.SetNodes(nodes)
		return me, nil

	default:
		return nil, fmt.Errorf("device: unsupported component kind %v for %s", comp.Kind, comp.Name)
	}
}

func applyDiodeKind(d *Diode, comp *circuit.Component) {
	d.setDefaultParameters()
	switch comp.Kind {
	case circuit.KindZenerDiode:
		d.Bv = param(comp, "breakdown_voltage", 5.1)
		d.Is = param(comp, "saturation_current", 1e-14)
	case circuit.KindSchottkyDiode:
		d.Is = param(comp, "saturation_current", 1e-8)
		d.N = param(comp, "n", 1.05)
	case circuit.KindLED:
		d.Is = param(comp, "saturation_current", 1e-20)
		d.N = param(comp, "n", 2.0)
		d.Vj = param(comp, "forward_voltage", 2.0)
	default:
		d.Is = param(comp, "saturation_current", d.Is)
		d.N = param(comp, "n", d.N)
		d.Bv = param(comp, "breakdown_voltage", d.Bv)
	}
}

func switchVariant(k circuit.ComponentKind) SwitchKind {
	switch k {
	case circuit.KindPushButton:
		return SwitchPushButton
	case circuit.KindRelay:
		return SwitchRelay
	default:
		return SwitchManual
	}
}

func meterVariant(k circuit.ComponentKind) MeterKind {
	switch k {
	case circuit.KindAmmeter:
		return MeterAmmeter
	case circuit.KindWattmeter:
		return MeterWattmeter
	default:
		return MeterVoltmeter
	}
}

func gateOp(comp *circuit.Component) GateOp {
	switch comp.Params["gate_op"] {
	case 1:
		return GateOR
	case 2:
		return GateNOT
	case 3:
		return GateNAND
	case 4:
		return GateNOR
	case 5:
		return GateXOR
	default:
		return GateAND
	}
}

func newWaveformSource(comp *circuit.Component) *VoltageSource {
	v := NewDCVoltageSource(comp.Name, names(2), param(comp, "offset", 0))
	v.vtype = PWL // GetVoltage dispatches on v.shape for this PWL slot
	v.shape = waveShape(comp.Kind)
	v.dcValue = param(comp, "offset", 0)
	v.amplitude = param(comp, "amplitude", 1)
	v.freq = param(comp, "frequency", 1000)
	v.phase = param(comp, "phase", 0)
	return v
}

func waveShape(k circuit.ComponentKind) waveformShape {
	switch k {
	case circuit.KindTriangleWaveSource:
		return shapeTriangle
	case circuit.KindSawWaveSource:
		return shapeSaw
	case circuit.KindNoiseSource:
		return shapeNoise
	default:
		return shapeSquare
	}
}
