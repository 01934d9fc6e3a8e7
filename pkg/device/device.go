package device

import (
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// DeviceMatrix is the narrow view of an MNA system a Device's Stamp sees:
// additive element/RHS contributions only, 1-based indexing, per §4.3's
// "the stamp is additive: devices never overwrite, only +=". Declared
// here rather than in internal/mna so this package states what it needs
// from its matrix backend without importing it — internal/mna.System
// satisfies this interface structurally, with no import back to
// pkg/device required.
type DeviceMatrix interface {
	AddElement(i, j int, value float64)
	AddRHS(i int, value float64)
	AddComplexElement(i, j int, real, imag float64)
	AddComplexRHS(i int, real, imag float64)
}

type Device interface {
	GetName() string
	GetType() string
	GetNodeNames() []string
	GetNodes() []int
	Stamp(matrix DeviceMatrix, status *CircuitStatus) error
	GetValue() float64
	SetNodes(nodes []int)
}

// BaseDevice is the identity and primary-parameter storage every device
// family embeds. Name/NodeNames/Value are captured once at construction
// from the originating circuit.Component (see pkg/device/factory.go);
// Nodes holds the resolved MNA matrix indices, set separately by
// SetNodes once topology has run, so it cannot simply be re-read off
// Component.Terminals (those are unresolved circuit node ids).
//
// Component keeps the live link back to the sum type a family was built
// from: Stamp implementations that want a parameter to track its
// configured sweep (§4.6 parametric sweeps) rather than the value frozen
// at construction read it through LiveValue instead of the Value field.
type BaseDevice struct {
	Name      string
	Nodes     []int
	Value     float64
	NodeNames []string

	Component *circuit.Component
}

// LiveValue returns the current value of the named parameter: the
// swept value at time t if Component carries an enabled sweep for key,
// otherwise Component.Params[key] as it stands now, otherwise fallback.
// Devices with no Component bound (built directly, outside
// FromComponent) return fallback unconditionally.
func (d *BaseDevice) LiveValue(key string, t float64, fallback float64) float64 {
	if d.Component == nil {
		return fallback
	}
	if s, ok := d.Component.Sweeps[key]; ok && s.Enabled {
		return s.Value(t)
	}
	if v, ok := d.Component.Params[key]; ok {
		return v
	}
	return fallback
}

type ModelParam struct {
	Type   string
	Name   string
	Params map[string]float64
}

type ACElement interface {
	StampAC(matrix DeviceMatrix, status *CircuitStatus) error
}

type TimeDependent interface {
	SetTimeStep(dt float64, status *CircuitStatus)
	LoadState(voltages []float64, status *CircuitStatus)
	UpdateState(voltages []float64, status *CircuitStatus)
	CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64
}

type NonLinear interface {
	LoadConductance(matrix DeviceMatrix) error
	LoadCurrent(matrix DeviceMatrix) error
	UpdateVoltages(voltages []float64) error
}

// PowerDissipator is implemented by every device family the thermal
// sub-model (§4.3) tracks. Power reports the device's instantaneous
// dissipated power given the latest solved node-voltage vector (linear
// devices like Resistor read their terminal voltages from it directly;
// nonlinear devices ignore it and use their own cached operating-point
// voltages/currents instead). SetFailed is called once the device's
// accumulated thermal damage latches, and must make subsequent Stamp
// calls treat the device as an open circuit.
type PowerDissipator interface {
	Power(solution []float64) float64
	SetFailed(failed bool)
}

type InductorComponent interface {
	Device
	GetValue() float64
	GetCurrent() float64
	GetPreviousCurrent() float64
	GetVoltage() float64
	GetPreviousVoltage() float64
	GetNodes() []int
}

type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

type AnalysisMode int

const (
	OperatingPointAnalysis AnalysisMode = iota
	TransientAnalysis
	ACAnalysis
	DCSweep
)

const (
	BE = iota // Backward Euler
	TR        // Trapezoidal
)

const (
	NormalMode = iota
	PredictMode
)

type CircuitStatus struct {
	Time      float64
	TimeStep  float64
	Gmin      float64
	Mode      AnalysisMode
	Method    int // BE or TR
	IntegMode int // Normal or Predict mode
	Temp      float64
	Order     int
	MaxOrder  int
	Frequency float64 // AC frequency
}

func (d *BaseDevice) GetName() string {
	return d.Name
}

func (d *BaseDevice) GetNodes() []int {
	return d.Nodes
}

func (d *BaseDevice) GetNodeNames() []string {
	return d.NodeNames
}

func (d *BaseDevice) GetValue() float64 {
	return d.Value
}

func (d *BaseDevice) SetNodes(nodes []int) {
	d.Nodes = nodes
}

func NewBaseDevice(name string, value float64, nodeNames []string, devType string) *BaseDevice {
	return &BaseDevice{
		Name:      name,
		Value:     value,
		NodeNames: nodeNames,
		Nodes:     make([]int, len(nodeNames)),
	}
}
