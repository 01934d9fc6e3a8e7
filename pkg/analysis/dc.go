package analysis

import (
	"fmt"
	"math"

	"github.com/anton-oss/circuitsim/internal/consts"
	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/device"
	"github.com/anton-oss/circuitsim/pkg/solver"
)

// DCSweep steps one or two independent sources across a range, rerunning
// the operating point at every point (§4.6 "Parametric sweep" applied to
// a source value directly, the DC-sweep special case).
type DCSweep struct {
	BaseAnalysis
	Config solver.Config

	sourceNames []string
	startVals   []float64
	stopVals    []float64
	increments  []float64
	sweepVals   [][]float64
	origVals    []float64
}

func NewDCSweep(sources []string, starts, stops []float64, increments []float64) *DCSweep {
	if len(sources) != len(starts) || len(sources) != len(stops) || len(sources) != len(increments) {
		panic("inconsistent parameter lengths")
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		Config:       solver.DefaultConfig(),
		sourceNames:  sources,
		startVals:    starts,
		stopVals:     stops,
		increments:   increments,
		sweepVals:    make([][]float64, len(sources)),
		origVals:     make([]float64, len(sources)),
	}

	for i := range sources {
		var sweep []float64
		for v := dc.startVals[i]; v <= dc.stopVals[i]; v += dc.increments[i] {
			sweep = append(sweep, v)
		}
		dc.sweepVals[i] = sweep
	}

	return dc
}

func (dc *DCSweep) Setup(asm *mna.Assembly) error {
	dc.Circuit = asm
	for i, name := range dc.sourceNames {
		src, err := findVoltageSource(asm, name)
		if err != nil {
			return err
		}
		dc.origVals[i] = src.GetValue()
	}
	return nil
}

func (dc *DCSweep) Execute() error {
	if dc.Circuit == nil {
		return fmt.Errorf("dc sweep: circuit not set")
	}
	switch len(dc.sourceNames) {
	case 1:
		return dc.singleSweep()
	case 2:
		return dc.nestedSweep()
	default:
		return fmt.Errorf("dc sweep: unsupported source count %d", len(dc.sourceNames))
	}
}

func findVoltageSource(asm *mna.Assembly, name string) (*device.VoltageSource, error) {
	for _, dev := range asm.GetDevices() {
		if dev.GetName() == name {
			if v, ok := dev.(*device.VoltageSource); ok {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("dc sweep: source %s not found", name)
}

// pointSolution runs one DC operating point at the sources' current
// values, treating a non-convergent point as a NaN contribution and
// continuing per §7's "per-point failure... continue, never aborting the
// batch" analysis policy.
func (dc *DCSweep) pointSolution() map[string]float64 {
	status := &device.CircuitStatus{Mode: device.OperatingPointAnalysis, Temp: consts.TNomDefault}
	dc.Circuit.Status = status

	if err := solver.Solve(dc.Circuit, status, dc.Config, true); err != nil {
		return nanSolution(dc.Circuit)
	}
	return dc.Circuit.GetSolution()
}

func nanSolution(asm *mna.Assembly) map[string]float64 {
	out := make(map[string]float64)
	for idx := 1; idx <= asm.GetNumNodes(); idx++ {
		out[fmt.Sprintf("V(%d)", idx)] = math.NaN()
	}
	for name := range asm.BranchIndices() {
		out[fmt.Sprintf("I(%s)", name)] = math.NaN()
	}
	return out
}

func (dc *DCSweep) singleSweep() error {
	source, err := findVoltageSource(dc.Circuit, dc.sourceNames[0])
	if err != nil {
		return err
	}

	for _, val := range dc.sweepVals[0] {
		source.SetValue(val)
		dc.StoreResult(val, dc.pointSolution())
	}
	source.SetValue(dc.origVals[0])
	return nil
}

func (dc *DCSweep) nestedSweep() error {
	source1, err := findVoltageSource(dc.Circuit, dc.sourceNames[0])
	if err != nil {
		return err
	}
	source2, err := findVoltageSource(dc.Circuit, dc.sourceNames[1])
	if err != nil {
		return err
	}

	for _, val1 := range dc.sweepVals[0] {
		source1.SetValue(val1)
		for _, val2 := range dc.sweepVals[1] {
			source2.SetValue(val2)
			dc.StoreNestedResult(val1, val2, dc.pointSolution())
		}
	}

	source1.SetValue(dc.origVals[0])
	source2.SetValue(dc.origVals[1])
	return nil
}

func (dc *DCSweep) StoreResult(sweepVal float64, solution map[string]float64) {
	dc.results["SWEEP1"] = append(dc.results["SWEEP1"], sweepVal)
	for name, value := range solution {
		dc.results[name] = append(dc.results[name], value)
	}
}

func (dc *DCSweep) StoreNestedResult(val1, val2 float64, solution map[string]float64) {
	dc.results["SWEEP1"] = append(dc.results["SWEEP1"], val1)
	dc.results["SWEEP2"] = append(dc.results["SWEEP2"], val2)
	for name, value := range solution {
		dc.results[name] = append(dc.results[name], value)
	}
}
