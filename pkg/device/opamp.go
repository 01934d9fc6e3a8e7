package device

import (
	"fmt"
	"math"
)

// OpAmp is a finite-gain voltage-controlled voltage source with an output
// rail clamp: Vout = clamp(gain*(V+ - V-), -Vrail, +Vrail). Nodes are
// ordered [v+, v-, out]. While the output is inside its allowed window
// the full VCVS coupling is stamped through Rout, so feedback topologies
// see the gain through the matrix itself; once the last iterate pins the
// output against a limit, the output is held at that limit and the input
// coupling drops out, re-linearized per Newton iteration the same way
// the diode re-linearizes its exponential.
//
// In transient runs the window is narrower than the static rails: slew
// bounds the output's movement per step to slew*dt, and gbw bounds it to
// the one-pole open-loop response (pole at gbw/gain) integrated over dt.
// Both limits are re-evaluated between NR iterations from the latest
// differential input, per the rate-limit contract, and reference the
// last committed output, so a step can never move the output faster
// than the device's dynamics allow.
//
// High gain (>1e7) into a marginally-stable feedback loop (Wien bridge,
// phase-shift oscillator) is numerically brittle with this stamp; that is
// a known limitation of the finite-gain formulation, surfaced to the host
// as NoConvergence rather than silently flattened.
type OpAmp struct {
	BaseDevice
	gain  float64
	vrail float64
	rin   float64 // differential input resistance
	rout  float64 // output drive resistance
	gbw   float64 // unity-gain bandwidth, Hz; 0 disables
	slew  float64 // slew rate, V/s; 0 disables

	vinDiff  float64 // last iterate's V+ - V-, the limit-test input
	prevOut  float64 // last committed output, the rate-limit reference
	havePrev bool
}

func NewOpAmp(name string, gain, vrail float64) *OpAmp {
	return &OpAmp{
		BaseDevice: BaseDevice{Name: name, Nodes: make([]int, 3), NodeNames: []string{"vp", "vn", "out"}, Value: gain},
		gain:       gain,
		vrail:      vrail,
		rin:        1e6,
		rout:       75,
		gbw:        1e6,
		slew:       5e5,
	}
}

func (o *OpAmp) GetType() string { return "O" }

// outWindow returns the output voltage bounds for this iteration: the
// static rails, narrowed in transient runs by the slew and GBW rate
// limits around the last committed output.
func (o *OpAmp) outWindow(status *CircuitStatus) (float64, float64) {
	lo, hi := -o.vrail, o.vrail
	if status.Mode != TransientAnalysis || !o.havePrev || status.TimeStep <= 0 {
		return lo, hi
	}

	maxStep := math.Inf(1)
	if o.slew > 0 {
		maxStep = o.slew * status.TimeStep
	}
	if o.gbw > 0 && o.gain > 0 {
		// One-pole open-loop response: worst-case movement toward a
		// rail-limited target over dt, integrated backward-Euler.
		k := 2 * math.Pi * (o.gbw / o.gain) * status.TimeStep
		if bound := 2 * o.vrail * k / (1 + k); bound < maxStep {
			maxStep = bound
		}
	}
	if l := o.prevOut - maxStep; l > lo {
		lo = l
	}
	if h := o.prevOut + maxStep; h < hi {
		hi = h
	}
	return lo, hi
}

func (o *OpAmp) Stamp(matrix DeviceMatrix, status *CircuitStatus) error {
	vp, vn, out := o.Nodes[0], o.Nodes[1], o.Nodes[2]
	if out == 0 {
		return nil
	}
	gOut := 1.0 / o.rout

	// Input impedance between the differential inputs.
	gin := 1.0 / o.rin
	if vp != 0 {
		matrix.AddElement(vp, vp, gin)
		if vn != 0 {
			matrix.AddElement(vp, vn, -gin)
		}
	}
	if vn != 0 {
		matrix.AddElement(vn, vn, gin)
		if vp != 0 {
			matrix.AddElement(vn, vp, -gin)
		}
	}

	lo, hi := o.outWindow(status)
	target := o.gain * o.vinDiff
	if target < lo || target > hi {
		// Pinned: railed or rate-limited, input decoupled for this
		// iteration. A slewing op-amp is input-decoupled by definition.
		pin := hi
		if target < lo {
			pin = lo
		}
		matrix.AddElement(out, out, gOut)
		matrix.AddRHS(out, gOut*pin)
		return nil
	}

	// Linear region: gOut*(Vout - gain*(V+ - V-)) = 0, the controlled-
	// voltage equation folded into the output node's KCL row through the
	// Rout drive conductance.
	matrix.AddElement(out, out, gOut)
	if vp != 0 {
		matrix.AddElement(out, vp, -gOut*o.gain)
	}
	if vn != 0 {
		matrix.AddElement(out, vn, gOut*o.gain)
	}
	return nil
}

func (o *OpAmp) LoadConductance(matrix DeviceMatrix) error { return o.Stamp(matrix, &CircuitStatus{}) }
func (o *OpAmp) LoadCurrent(matrix DeviceMatrix) error     { return nil }

// UpdateVoltages advances the limit-test input to the new iterate's
// differential voltage, re-evaluating the rail/rate window for the next
// Stamp — the "applied between NR iterations" half of the contract.
func (o *OpAmp) UpdateVoltages(voltages []float64) error {
	vp, vn := o.Nodes[0], o.Nodes[1]
	var v1, v2 float64
	if vp != 0 {
		v1 = voltages[vp]
	}
	if vn != 0 {
		v2 = voltages[vn]
	}
	o.vinDiff = v1 - v2
	return nil
}

func (o *OpAmp) SetTimeStep(dt float64, status *CircuitStatus) {}

func (o *OpAmp) LoadState(voltages []float64, status *CircuitStatus) {}

// UpdateState commits the accepted step's output as the next step's
// rate-limit reference.
func (o *OpAmp) UpdateState(voltages []float64, status *CircuitStatus) {
	out := o.Nodes[2]
	if out != 0 && out < len(voltages) {
		o.prevOut = voltages[out]
		o.havePrev = true
	}
}

// CalculateLTE returns 0: a controlled source holds no charge state, and
// its per-step movement is already bounded by the slew/GBW window, so it
// contributes no truncation error to step control.
func (o *OpAmp) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	return 0
}

var _ Device = (*OpAmp)(nil)
var _ NonLinear = (*OpAmp)(nil)
var _ TimeDependent = (*OpAmp)(nil)

func (o *OpAmp) String() string { return fmt.Sprintf("O(%s gain=%g)", o.Name, o.gain) }
