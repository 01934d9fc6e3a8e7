package analysis

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// maxWorkers bounds the sweep/Monte-Carlo worker pool per §5:
// min(num_cpus, 32).
func maxWorkers() int {
	n := runtime.NumCPU()
	if n > 32 {
		n = 32
	}
	if n < 1 {
		n = 1
	}
	return n
}

// SweepPointMode selects how a parametric sweep's values are generated
// across its range, the same Linear/Log vocabulary as circuit.SweepMode.
type SweepPointMode int

const (
	SweepPointLinear SweepPointMode = iota
	SweepPointLog
)

// SweepSpec describes one parametric-sweep run (§4.6 "Parametric sweep"):
// the component/parameter to vary, its range, how many points, how long
// to simulate each point, and which probe nodes to record.
type SweepSpec struct {
	ComponentName string
	ParamKey      string
	Start, Stop   float64
	Points        int
	Mode          SweepPointMode
	RunDuration   float64
	ProbeNodes    []int
}

// Waveform is one parametric-sweep point's recorded result: the parameter
// value that produced it, and every probed node's voltage over time.
type Waveform struct {
	ParamValue   float64
	Time         []float64
	NodeVoltages map[int][]float64
}

// RunSweep rebuilds a fresh assembly per point from a clone of base (the
// driver's "explicit reset of reactive state + op-point" guarantee, §4.6),
// applies the swept value, runs a transient for spec.RunDuration, and
// returns one Waveform per point, ordered by sweep index regardless of
// which worker finished first - each worker writes its result into its
// own sweep-index slot, per §5's ordering guarantee.
func RunSweep(base *circuit.Circuit, spec SweepSpec) ([]Waveform, error) {
	if spec.Points < 1 {
		return nil, fmt.Errorf("sweep: need at least 1 point")
	}
	values := sweepValues(spec)

	out := make([]Waveform, len(values))
	g := new(errgroup.Group)
	g.SetLimit(maxWorkers())

	for i, v := range values {
		i, v := i, v
		g.Go(func() error {
			wf, err := runSweepPoint(base, spec, v)
			if err != nil {
				return fmt.Errorf("sweep: point %d (%s=%g): %w", i, spec.ParamKey, v, err)
			}
			out[i] = wf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sweepValues(spec SweepSpec) []float64 {
	out := make([]float64, spec.Points)
	if spec.Points == 1 {
		out[0] = spec.Start
		return out
	}
	switch spec.Mode {
	case SweepPointLog:
		logStart, logStop := math.Log(spec.Start), math.Log(spec.Stop)
		step := (logStop - logStart) / float64(spec.Points-1)
		for i := range out {
			out[i] = math.Exp(logStart + float64(i)*step)
		}
	default:
		step := (spec.Stop - spec.Start) / float64(spec.Points-1)
		for i := range out {
			out[i] = spec.Start + float64(i)*step
		}
	}
	return out
}

func runSweepPoint(base *circuit.Circuit, spec SweepSpec, value float64) (Waveform, error) {
	ckt := base.Clone()
	for _, comp := range ckt.Components() {
		if comp.Name == spec.ComponentName {
			comp.Params[spec.ParamKey] = value
		}
	}

	asm, err := mna.Build(ckt, false)
	if err != nil {
		return Waveform{}, err
	}

	tr := NewTransient(0, spec.RunDuration, 0, 0, false)
	if err := tr.Setup(asm); err != nil {
		return Waveform{}, err
	}
	if err := tr.Execute(); err != nil {
		return Waveform{}, err
	}

	results := tr.GetResults()
	wf := Waveform{ParamValue: value, Time: results["TIME"], NodeVoltages: make(map[int][]float64, len(spec.ProbeNodes))}
	for _, node := range spec.ProbeNodes {
		idx := asm.NodeMap().Index(node)
		wf.NodeVoltages[node] = results[fmt.Sprintf("V(%d)", idx)]
	}
	return wf, nil
}
