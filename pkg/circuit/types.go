// Package circuit holds the engine's persisted data model: nodes, wires,
// components and probes that make up a Circuit, independent of any
// particular analysis. Rendering, the schematic editor, mouse/keyboard
// input and file I/O serializers are external collaborators; this
// package only owns the values they hand to the engine.
package circuit

import "math"

// Node is a circuit node: a stable id, an editor-only position, a
// ground flag, and the solver's latest voltage.
type Node struct {
	ID       int
	X, Y     float64 // editor position, opaque to the engine
	IsGround bool
	Voltage  float64 // solver output, valid after a successful step
}

// Wire coalesces two nodes with zero electrical resistance. Its Current
// field is a post-solve display estimate (see topology.WireCurrents),
// never a physical quantity consumed by the solver.
type Wire struct {
	Start, End int // node ids
	Current    float64
}

// Probe watches one node for the oscilloscope front-end.
type Probe struct {
	NodeID  int
	Color   string
	Channel int
	Voltage float64 // latest sampled value
}

// ComponentKind discriminates the Component sum type.
type ComponentKind int

const (
	KindResistor ComponentKind = iota
	KindCapacitor
	KindInductor
	KindMutualInductance
	KindDiode
	KindZenerDiode
	KindSchottkyDiode
	KindLED
	KindBJT
	KindMOSFET
	KindOpAmp
	KindVoltageSourceDC
	KindVoltageSourceAC
	KindCurrentSourceDC
	KindSquareWaveSource
	KindTriangleWaveSource
	KindSawWaveSource
	KindNoiseSource
	KindSwitch
	KindPushButton
	KindRelay
	KindTransformer
	KindLogicGate
	KindSchmittTrigger
	KindVoltmeter
	KindAmmeter
	KindWattmeter
)

// SweepMode selects how a swept parameter's instantaneous value moves
// through its range over time.
type SweepMode int

const (
	SweepLinear SweepMode = iota
	SweepLog
	SweepStepped
)

// SweepWrap selects what happens when a sweep reaches its endpoint.
type SweepWrap int

const (
	SweepOnce SweepWrap = iota
	SweepRepeat
	SweepBidirectional
)

// SweepConfig describes a parameter that varies over time instead of
// holding a fixed value, attached to any numeric parameter of a Component.
type SweepConfig struct {
	Enabled bool
	Start   float64
	End     float64
	Period  float64
	Mode    SweepMode
	Wrap    SweepWrap
}

// Value evaluates the sweep at time t.
func (s SweepConfig) Value(t float64) float64 {
	if !s.Enabled || s.Period <= 0 {
		return s.Start
	}
	phase := t / s.Period
	switch s.Wrap {
	case SweepRepeat:
		phase -= float64(int(phase))
	case SweepBidirectional:
		phase -= float64(int(phase/2)) * 2
		if phase > 1 {
			phase = 2 - phase
		}
	default: // SweepOnce
		if phase > 1 {
			phase = 1
		}
	}
	if phase < 0 {
		phase = 0
	}

	switch s.Mode {
	case SweepLog:
		if s.Start <= 0 || s.End <= 0 {
			return s.Start
		}
		logStart, logEnd := math.Log(s.Start), math.Log(s.End)
		return math.Exp(logStart + phase*(logEnd-logStart))
	case SweepStepped:
		const steps = 10
		step := float64(int(phase*steps)) / steps
		return s.Start + step*(s.End-s.Start)
	default: // SweepLinear
		return s.Start + phase*(s.End-s.Start)
	}
}

// ThermalState tracks the optional per-device thermal sub-model (§4.3).
type ThermalState struct {
	Temp     float64 // current temperature, K
	Damage   float64 // accumulated damage, [0,1) until failure
	Failed   bool
	TMax     float64 // failure threshold, K
	Rth      float64 // thermal resistance, K/W
	Cth      float64 // thermal capacitance, J/K
	AmbientT float64
}

// Step advances the thermal state by one transient timestep given
// instantaneous dissipated power p, per the §4.3 thermal sub-model.
func (th *ThermalState) Step(dt, p float64) {
	if th.Failed || th.Cth <= 0 {
		return
	}
	if th.Rth <= 0 {
		th.Rth = 1
	}
	th.Temp += dt * (p - (th.Temp-th.AmbientT)/th.Rth) / th.Cth
	if th.Temp > th.TMax {
		th.Damage += dt * (th.Temp - th.TMax) / th.TMax
		if th.Damage >= 1 {
			th.Failed = true
		}
	}
}

// Component is the sum-type circuit element: a discriminator, editor
// geometry, an ordered terminal list (one node id per terminal), a
// parameter record keyed by the discriminator, per-device state, and
// an optional thermal sub-state. The engine never inspects Kind once it
// has dispatched to the matching device.Device; Kind only drives
// construction (see pkg/device/factory.go) and persistence (pkg/netlist).
type Component struct {
	Kind     ComponentKind
	Name     string
	X, Y     float64
	Rotation int // degrees, editor-only

	Terminals []int // node ids, length determined by Kind

	Params map[string]float64
	Sweeps map[string]SweepConfig // parameter name -> sweep, when enabled

	// Tolerance and ToleranceEnabled drive the Monte-Carlo analysis (§4.6):
	// when enabled, the component's primary value (see primaryParamKey in
	// pkg/analysis) is scaled by 1+Tolerance*r per run, r drawn from the
	// run's uniform(-1,+1) or standard-normal distribution.
	Tolerance        float64
	ToleranceEnabled bool

	Thermal *ThermalState // nil when the device doesn't dissipate power

	// CoupledInductors names the two sibling KindInductor components a
	// KindMutualInductance component couples; empty for every other Kind.
	CoupledInductors []string
}
