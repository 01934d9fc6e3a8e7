// Package engine implements the host-facing Engine API (§6): the single
// entry point a schematic editor / oscilloscope UI drives. It owns a
// circuit.Circuit, rebuilds the MNA assembly when the circuit is marked
// modified, and wraps pkg/transient, pkg/solver, pkg/probe and
// pkg/analysis behind the small surface §6 names (New, SetCircuit, Step,
// RunBode, RunSweep, RunMonteCarlo, ProbeSamples, Cancel).
package engine

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/internal/simerr"
	"github.com/anton-oss/circuitsim/pkg/analysis"
	"github.com/anton-oss/circuitsim/pkg/circuit"
	"github.com/anton-oss/circuitsim/pkg/probe"
	"github.com/anton-oss/circuitsim/pkg/topology"
	"github.com/anton-oss/circuitsim/pkg/transient"
)

// StepResult is the host-facing result of one Engine.Step call (§6).
type StepResult struct {
	AdvancedTime   float64
	IterationsUsed int
	Warnings       []string
}

// BodePoint is one (frequency, magnitude, phase) sample of a Bode plot.
type BodePoint struct {
	FreqHz float64
	MagDB  float64
	PhaseDeg float64
}

// Engine is the core simulator the host drives one tick at a time.
type Engine struct {
	cfg SimConfig

	ckt          *circuit.Circuit
	asm          *mna.Assembly
	driver       *transient.Driver
	lastModified uint64

	probes []*probe.Probe

	cancelled atomic.Bool
}

// New returns an engine configured per cfg; SetCircuit must be called
// before Step.
func New(cfg SimConfig) *Engine {
	tcfg := transient.DefaultConfig()
	tcfg.DtInit, tcfg.DtMin, tcfg.DtMax = cfg.Time.DtInit, cfg.Time.DtMin, cfg.Time.DtMax
	tcfg.Solver = cfg.Solver

	return &Engine{
		cfg:    cfg,
		driver: transient.New(tcfg),
	}
}

// SetCircuit installs c as the engine's active circuit and performs the
// initial topology/assembly build. Per §4.5 step 1, a later Step call
// only rebuilds topology when c.Modified() has advanced.
func (e *Engine) SetCircuit(c *circuit.Circuit) error {
	e.ckt = c
	if err := e.rebuild(); err != nil {
		return err
	}
	e.driver.Reset()
	e.driver.SetAmbientTemp(e.cfg.Environment.AmbientTemp)
	return nil
}

func (e *Engine) rebuild() error {
	if len(e.ckt.Nodes()) == 0 {
		return fmt.Errorf("engine: %w: circuit has no nodes", simerr.ErrDegenerateTopology)
	}
	if _, ok := e.ckt.GroundNodeID(); !ok {
		// topology.Build still promotes the largest class to ground; this
		// only fails for a circuit with literally zero electrical classes,
		// already excluded by the node-count check above.
	}

	asm, err := mna.Build(e.ckt, false)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.asm = asm
	e.lastModified = e.ckt.Modified()

	e.probes = make([]*probe.Probe, len(e.ckt.Probes()))
	for i, p := range e.ckt.Probes() {
		e.probes[i] = probe.NewProbe(p.NodeID, p.Channel)
	}
	return nil
}

// Step advances the simulation by dtWall wall-clock seconds scaled by the
// configured speed, per §4.5's main loop: rebuild topology if modified,
// integrate until enough simulated time has been consumed for this tick,
// sampling every probe and propagating wire currents after each accepted
// step, and bailing out early when the transient driver returns an error
// (StepTooSmall, a singular matrix, an overflow) or on a host
// cancellation. A NoConvergence inside the driver shrinks Δt and retries
// rather than ending the tick.
func (e *Engine) Step(dtWall float64) (StepResult, error) {
	if e.asm == nil {
		return StepResult{}, fmt.Errorf("engine: no circuit set")
	}
	if e.ckt.Modified() != e.lastModified {
		if err := e.rebuild(); err != nil {
			return StepResult{}, err
		}
	}

	target := e.driver.Time() + dtWall*e.cfg.Time.Speed
	res := StepResult{}

	for e.driver.Time() < target {
		if e.cancelled.Load() {
			break
		}

		stepRes, err := e.driver.Step(e.asm)
		res.Warnings = append(res.Warnings, stepRes.Warnings...)
		res.IterationsUsed++

		if err != nil {
			res.AdvancedTime = e.driver.Time()
			return res, fmt.Errorf("engine: %w", err)
		}

		e.sampleProbes()
		e.propagateWireCurrents()
	}

	res.AdvancedTime = e.driver.Time()
	return res, nil
}

func (e *Engine) sampleProbes() {
	t := e.driver.Time()
	nm := e.asm.NodeMap()
	for _, p := range e.probes {
		idx := nm.Index(p.NodeID)
		p.Sample(t, e.asm.GetNodeVoltage(idx))
	}
}

// propagateWireCurrents runs the §4.2 display-only wire-current heuristic
// and writes the result back onto the circuit's wires; it is never
// consumed by the solver itself (§9).
func (e *Engine) propagateWireCurrents() {
	nm := e.asm.NodeMap()
	voltOf := func(nodeID int) float64 {
		return e.asm.GetNodeVoltage(nm.Index(nodeID))
	}

	currents := topology.WireCurrents(e.ckt, nm, voltOf)
	for i, c := range currents {
		e.ckt.SetWireCurrent(i, c)
	}
}

// RunBode runs the AC/Bode sweep analysis (§4.6) and returns one point
// per swept frequency.
func (e *Engine) RunBode(cfg BodeConfig) ([]BodePoint, error) {
	if e.ckt == nil {
		return nil, fmt.Errorf("engine: no circuit set")
	}

	// AC needs complex storage; build a dedicated assembly rather than
	// reusing the transient one, so a Bode run never perturbs the live
	// operating point.
	asm, err := mna.Build(e.ckt, true)
	if err != nil {
		return nil, fmt.Errorf("engine: bode assembly: %w", err)
	}
	defer asm.Destroy()

	ac := analysis.NewAC(cfg.FStart, cfg.FStop, cfg.Points, cfg.PointsType)
	if err := ac.Setup(asm); err != nil {
		return nil, fmt.Errorf("engine: bode setup: %w", err)
	}
	if err := ac.Execute(); err != nil {
		return nil, fmt.Errorf("engine: bode execute: %w", err)
	}

	nm := asm.NodeMap()
	mags, phases := ac.TransferFunction(nm.Index(cfg.VinNode), nm.Index(cfg.VoutNode))
	freqs := ac.GetResults()["FREQ"]

	out := make([]BodePoint, len(freqs))
	for i := range freqs {
		magDB := -300.0
		if mags[i] > 0 {
			magDB = 20 * math.Log10(mags[i])
		}
		out[i] = BodePoint{FreqHz: freqs[i], MagDB: magDB, PhaseDeg: phases[i]}
	}
	return out, nil
}

// RunSweep runs the parametric-sweep analysis (§4.6) on a clone of the
// engine's circuit; it never mutates the engine's live circuit/assembly.
func (e *Engine) RunSweep(spec analysis.SweepSpec) ([]analysis.Waveform, error) {
	if e.ckt == nil {
		return nil, fmt.Errorf("engine: no circuit set")
	}
	return analysis.RunSweep(e.ckt, spec)
}

// RunMonteCarlo runs the Monte-Carlo tolerance analysis (§4.6, §5) on a
// clone of the engine's circuit.
func (e *Engine) RunMonteCarlo(spec analysis.MonteCarloSpec) (analysis.Histogram, error) {
	if e.ckt == nil {
		return analysis.Histogram{}, fmt.Errorf("engine: no circuit set")
	}
	return analysis.RunMonteCarlo(e.ckt, spec)
}

// ProbeSamples returns the full sample history for the given channel.
func (e *Engine) ProbeSamples(channel int) []probe.Sample {
	for _, p := range e.probes {
		if p.Channel == channel {
			return p.History.Samples()
		}
	}
	return nil
}

// Cancel requests a best-effort stop of any in-flight Step loop (§5); the
// in-flight Newton iteration still completes before the check.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}
