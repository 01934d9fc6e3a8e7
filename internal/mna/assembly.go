package mna

import (
	"fmt"

	"github.com/anton-oss/circuitsim/pkg/circuit"
	"github.com/anton-oss/circuitsim/pkg/device"
	"github.com/anton-oss/circuitsim/pkg/topology"
)

// thermalDevice pairs a power-dissipating device with the thermal state
// its owning circuit.Component carries, so Assembly.StepThermal can drive
// the §4.3 thermal sub-model without the device package depending on
// pkg/circuit.
type thermalDevice struct {
	dev     device.PowerDissipator
	thermal *circuit.ThermalState
}

// Assembly is the per-analysis MNA system built from a circuit.Circuit: a
// resolved node numbering, the concrete device.Device for every
// circuit.Component, voltage-source/inductor branch unknowns, and the
// sparse System they stamp into. It plays the role the teacher's
// netlist-driven Circuit played, with circuit.Component replacing a
// parsed SPICE element as the construction input.
type Assembly struct {
	name string

	nodeMap          *topology.NodeMap
	branchMap        map[string]int // component name -> branch unknown index
	devices          []device.Device
	numNodes         int
	Matrix           *System
	Status           *device.CircuitStatus
	Time             float64
	timeStep         float64
	isComplex        bool
	prevSolution     map[string]float64
	nonlinearDevices []device.NonLinear
	thermalDevices   []thermalDevice
}

// Build resolves topology over c, constructs every component's device, and
// performs the initial stamp, mirroring the teacher's
// AssignNodeBranchMaps+CreateMatrix+SetupDevices pipeline driven by a
// circuit.Circuit instead of parsed netlist elements.
func Build(c *circuit.Circuit, isComplex bool) (*Assembly, error) {
	nm := topology.Build(c)

	a := &Assembly{
		name:         c.Name(),
		nodeMap:      nm,
		branchMap:    make(map[string]int),
		isComplex:    isComplex,
		prevSolution: make(map[string]float64),
		numNodes:     nm.Size(),
	}

	branchStart := nm.Size() + 1
	for _, comp := range c.Components() {
		if needsBranch(comp.Kind) {
			a.branchMap[comp.Name] = branchStart
			branchStart++
		}
	}

	a.Matrix = NewMatrix(nm.Size()+len(a.branchMap), isComplex)
	if a.Matrix == nil {
		return nil, fmt.Errorf("mna: failed to allocate matrix")
	}

	deviceByName := make(map[string]device.Device)
	for _, comp := range c.Components() {
		if comp.Kind == circuit.KindMutualInductance {
			continue // wired after every inductor exists
		}
		dev, err := device.FromComponent(comp, nm.Index)
		if err != nil {
			return nil, fmt.Errorf("mna: building %s: %w", comp.Name, err)
		}
		if v, ok := dev.(*device.VoltageSource); ok {
			v.SetBranchIndex(a.branchMap[comp.Name])
		}
		if l, ok := dev.(*device.Inductor); ok {
			l.SetBranchIndex(a.branchMap[comp.Name])
		}
		if nl, ok := dev.(device.NonLinear); ok {
			a.nonlinearDevices = append(a.nonlinearDevices, nl)
		}
		if pd, ok := dev.(device.PowerDissipator); ok && comp.Thermal != nil {
			a.thermalDevices = append(a.thermalDevices, thermalDevice{dev: pd, thermal: comp.Thermal})
		}
		deviceByName[comp.Name] = dev
		a.devices = append(a.devices, dev)
	}

	for _, comp := range c.Components() {
		if comp.Kind != circuit.KindMutualInductance {
			continue
		}
		dev, err := device.FromComponent(comp, nm.Index)
		if err != nil {
			return nil, fmt.Errorf("mna: building mutual %s: %w", comp.Name, err)
		}
		mutual, ok := dev.(*device.Mutual)
		if !ok {
			return nil, fmt.Errorf("mna: %s is not a mutual coupling", comp.Name)
		}
		for i, indName := range mutualInductorNames(comp) {
			ind, ok := deviceByName[indName]
			if !ok {
				return nil, fmt.Errorf("mna: inductor %s not found for mutual coupling %s", indName, comp.Name)
			}
			indComp, ok := ind.(device.InductorComponent)
			if !ok {
				return nil, fmt.Errorf("mna: device %s is not an inductor", indName)
			}
			if err := mutual.SetInductor(i, indComp); err != nil {
				return nil, fmt.Errorf("mna: %w", err)
			}
		}
		a.devices = append(a.devices, dev)
	}

	a.Status = &device.CircuitStatus{Time: 0}
	if err := a.Stamp(a.Status); err != nil {
		return nil, fmt.Errorf("mna: initial stamp: %w", err)
	}
	a.Matrix.SetupElements()

	return a, nil
}

// needsBranch reports whether a component contributes an MNA branch
// current unknown (voltage sources and inductors, same as the teacher's
// V/L element-type check).
func needsBranch(k circuit.ComponentKind) bool {
	switch k {
	case circuit.KindVoltageSourceDC, circuit.KindVoltageSourceAC,
		circuit.KindSquareWaveSource, circuit.KindTriangleWaveSource, circuit.KindSawWaveSource, circuit.KindNoiseSource,
		circuit.KindInductor:
		return true
	default:
		return false
	}
}

func mutualInductorNames(comp *circuit.Component) []string {
	return comp.CoupledInductors
}

func (a *Assembly) Stamp(status *device.CircuitStatus) error {
	for _, dev := range a.devices {
		if err := dev.Stamp(a.Matrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
	}
	return nil
}

func (a *Assembly) SetTimeStep(dt float64) {
	a.timeStep = dt
	if a.Status != nil {
		a.Status.TimeStep = dt
	}
	for _, dev := range a.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.SetTimeStep(dt, a.Status)
		}
	}
}

func (a *Assembly) LoadState() {
	voltages := a.Matrix.Solution()
	for _, dev := range a.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.LoadState(voltages, a.Status)
		}
	}
}

// Update advances every time-dependent device's state and snapshots the
// current solution, mirroring the teacher's per-timestep commit.
func (a *Assembly) Update() {
	solution := a.Matrix.Solution()
	for _, dev := range a.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.UpdateState(solution, a.Status)
		}
	}

	for id := 0; id <= a.numNodes; id++ {
		key := fmt.Sprintf("V(%d)", id)
		a.prevSolution[key] = solution[id]
	}
	for name, idx := range a.branchMap {
		a.prevSolution[fmt.Sprintf("I(%s)", name)] = -solution[idx]
	}
}

// StepThermal advances the §4.3 thermal sub-model for every power-
// dissipating device that carries a circuit.ThermalState: it reads the
// device's instantaneous dissipation off the just-solved iterate,
// integrates temperature and accumulated damage by dt, and latches the
// device open-circuit once damage reaches 1. Called by the transient
// driver after Update commits the accepted step's reactive state.
func (a *Assembly) StepThermal(dt float64) {
	if len(a.thermalDevices) == 0 {
		return
	}
	solution := a.Matrix.Solution()
	for _, td := range a.thermalDevices {
		p := td.dev.Power(solution)
		td.thermal.Step(dt, p)
		if td.thermal.Failed {
			td.dev.SetFailed(true)
		}
	}
}

// MaxLTE returns the largest per-device local-truncation-error estimate
// for the step just solved, the max-over-TimeDependent-devices reduction
// the transient driver's step control consumes.
func (a *Assembly) MaxLTE() float64 {
	solution := a.GetSolution()
	max := 0.0
	for _, dev := range a.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			if lte := td.CalculateLTE(solution, a.Status); lte > max {
				max = lte
			}
		}
	}
	return max
}

func (a *Assembly) BranchIndices() map[string]int { return a.branchMap }
func (a *Assembly) GetMatrix() *System { return a.Matrix }
func (a *Assembly) GetDevices() []device.Device { return a.devices }
func (a *Assembly) NodeMap() *topology.NodeMap { return a.nodeMap }
func (a *Assembly) Name() string { return a.name }
func (a *Assembly) GetNumNodes() int { return a.numNodes }

func (a *Assembly) GetNodeVoltage(nodeIdx int) float64 {
	if nodeIdx <= 0 {
		return 0
	}
	solution := a.Matrix.Solution()
	if nodeIdx >= len(solution) {
		return 0
	}
	return solution[nodeIdx]
}

// GetSolution returns every node voltage and branch current keyed by
// MNA matrix index ("V(idx)") / component name, plus the resistor currents the
// teacher's Circuit.GetSolution derives from V=IR.
func (a *Assembly) GetSolution() map[string]float64 {
	solution := make(map[string]float64)
	matrixSolution := a.Matrix.Solution()

	for idx := 1; idx <= a.numNodes; idx++ {
		solution[fmt.Sprintf("V(%d)", idx)] = matrixSolution[idx]
	}
	for name, idx := range a.branchMap {
		solution[fmt.Sprintf("I(%s)", name)] = -matrixSolution[idx]
	}
	for _, dev := range a.devices {
		if r, ok := dev.(*device.Resistor); ok {
			nodes := r.GetNodes()
			v1, v2 := 0.0, 0.0
			if nodes[0] > 0 {
				v1 = matrixSolution[nodes[0]]
			}
			if nodes[1] > 0 {
				v2 = matrixSolution[nodes[1]]
			}
			solution[fmt.Sprintf("I(%s)", r.GetName())] = (v1 - v2) / r.GetValue()
		}
	}
	return solution
}

func (a *Assembly) Destroy() {
	if a.Matrix != nil {
		a.Matrix.Destroy()
	}
}

func (a *Assembly) UpdateNonlinearVoltages(solution []float64) error {
	for _, dev := range a.nonlinearDevices {
		if err := dev.UpdateVoltages(solution); err != nil {
			return fmt.Errorf("updating voltages: %w", err)
		}
	}
	return nil
}
