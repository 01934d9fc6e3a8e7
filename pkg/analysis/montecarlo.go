package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// Distribution selects the per-run perturbation's probability law (§4.6
// "Monte-Carlo"): tolerance*U(-1,+1) or tolerance*N(0,1).
type Distribution int

const (
	DistUniform Distribution = iota
	DistGaussian
)

// OutputMetric selects how a run's waveform collapses to the single
// scalar the histogram bins.
type OutputMetric int

const (
	MetricFinalValue OutputMetric = iota
	MetricPeakValue
)

// MonteCarloSpec configures a Monte-Carlo tolerance run (§4.6, §5).
type MonteCarloSpec struct {
	Runs         int
	Distribution Distribution
	Seed         int64
	TargetNode   int
	Metric       OutputMetric
	RunDuration  float64
	Bins         int
}

// Histogram is the Monte-Carlo analysis's output: per-run scalar target
// values and their binned distribution.
type Histogram struct {
	Values    []float64 // one per run, in run-index order
	BinEdges  []float64 // len(Counts)+1
	Counts    []int
	Mean      float64
	StdDev    float64
}

// primaryParamKey returns the Params key Monte-Carlo perturbs for a given
// component kind, the "primary value" §4.6 names (resistance, capacitance,
// etc.) - the same keys device.FromComponent reads defaults for.
func primaryParamKey(kind circuit.ComponentKind) string {
	switch kind {
	case circuit.KindResistor:
		return "resistance"
	case circuit.KindCapacitor:
		return "capacitance"
	case circuit.KindInductor:
		return "inductance"
	case circuit.KindVoltageSourceDC, circuit.KindVoltageSourceAC:
		return "voltage"
	case circuit.KindCurrentSourceDC:
		return "current"
	case circuit.KindDiode, circuit.KindZenerDiode, circuit.KindSchottkyDiode, circuit.KindLED:
		return "saturation_current"
	default:
		return ""
	}
}

// RunMonteCarlo perturbs every enabled (ToleranceEnabled) component's
// primary value by spec.Distribution, runs a fixed-duration transient,
// and bins the resulting spec.Metric of spec.TargetNode's voltage into a
// Histogram. Each run gets a deterministic per-index seed
// (spec.Seed + run index), satisfying §8's "identical seeds produce
// identical histograms" and "zero tolerance reproduces the nominal
// result exactly" invariants. Results are collected in run-index order
// even though runs execute on a bounded worker pool out of order (§5).
func RunMonteCarlo(base *circuit.Circuit, spec MonteCarloSpec) (Histogram, error) {
	if spec.Runs < 1 {
		return Histogram{}, fmt.Errorf("montecarlo: need at least 1 run")
	}

	values := make([]float64, spec.Runs)
	g := new(errgroup.Group)
	g.SetLimit(maxWorkers())

	for i := 0; i < spec.Runs; i++ {
		i := i
		g.Go(func() error {
			v, err := runMonteCarloRun(base, spec, i)
			if err != nil {
				return fmt.Errorf("montecarlo: run %d: %w", i, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Histogram{}, err
	}

	return bin(values, spec.Bins), nil
}

func runMonteCarloRun(base *circuit.Circuit, spec MonteCarloSpec, runIdx int) (float64, error) {
	rng := rand.New(rand.NewSource(spec.Seed + int64(runIdx)))

	ckt := base.Clone()
	for _, comp := range ckt.Components() {
		if !comp.ToleranceEnabled || comp.Tolerance == 0 {
			continue
		}
		key := primaryParamKey(comp.Kind)
		if key == "" {
			continue
		}
		nominal, ok := comp.Params[key]
		if !ok {
			continue
		}
		comp.Params[key] = nominal * (1 + comp.Tolerance*perturbation(spec.Distribution, rng))
	}

	asm, err := mna.Build(ckt, false)
	if err != nil {
		return 0, err
	}

	tr := NewTransient(0, spec.RunDuration, 0, 0, false)
	if err := tr.Setup(asm); err != nil {
		return 0, err
	}
	if err := tr.Execute(); err != nil {
		return 0, err
	}

	idx := asm.NodeMap().Index(spec.TargetNode)
	series := tr.GetResults()[fmt.Sprintf("V(%d)", idx)]
	return reduceMetric(series, spec.Metric), nil
}

func perturbation(dist Distribution, rng *rand.Rand) float64 {
	switch dist {
	case DistGaussian:
		return rng.NormFloat64()
	default:
		return 2*rng.Float64() - 1
	}
}

func reduceMetric(series []float64, metric OutputMetric) float64 {
	if len(series) == 0 {
		return 0
	}
	switch metric {
	case MetricPeakValue:
		peak := series[0]
		for _, v := range series {
			if math.Abs(v) > math.Abs(peak) {
				peak = v
			}
		}
		return peak
	default:
		return series[len(series)-1]
	}
}

func bin(values []float64, bins int) Histogram {
	if bins < 1 {
		bins = 20
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		hi = lo + 1
	}

	h := Histogram{Values: values, BinEdges: make([]float64, bins+1), Counts: make([]int, bins)}
	width := (hi - lo) / float64(bins)
	for i := range h.BinEdges {
		h.BinEdges[i] = lo + float64(i)*width
	}

	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Counts[idx]++
	}
	n := float64(len(values))
	h.Mean = sum / n
	h.StdDev = math.Sqrt(math.Max(0, sumSq/n-h.Mean*h.Mean))
	return h
}
