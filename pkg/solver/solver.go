// Package solver implements the engine's nonlinear iteration driver
// (Component D): Newton-Raphson over an MNA assembly, with GMIN ramping,
// damped backtracking, and source stepping for stubborn DC operating
// points, per the failure ordering "GMIN ramp -> source stepping -> step
// reduction (transient only)" the transient driver layers on top.
package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/anton-oss/circuitsim/internal/linalg"
	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/internal/simerr"
	"github.com/anton-oss/circuitsim/pkg/device"
)

// Config carries every Newton-Raphson tunable (§4.4, §6 SimConfig.solver).
type Config struct {
	MaxIters       int
	TolAbs         float64
	TolRel         float64
	Damping        float64 // initial backtracking factor in (0,1]
	GminStart      float64
	GminEnd        float64
	GminSteps      int
	SourceStepping bool
	SourceSteps    int
}

// DefaultConfig matches the spec's literal defaults: 100 iterations,
// tol_abs=1e-9, tol_rel=1e-6, GMIN ramped 1e-3 -> 1e-12 across 11 steps
// (the teacher's concrete numGminSteps := 10 schedule, see DESIGN.md).
func DefaultConfig() Config {
	return Config{
		MaxIters:       100,
		TolAbs:         1e-9,
		TolRel:         1e-6,
		Damping:        1.0,
		GminStart:      1e-3,
		GminEnd:        1e-12,
		GminSteps:      10,
		SourceStepping: true,
		SourceSteps:    10,
	}
}

// Solve drives asm to a converged operating point at the state already
// loaded into status (time, step, temperature, analysis mode), applying
// the engine's full failure-recovery ladder: a direct Newton attempt,
// then GMIN ramping from cfg.GminStart down to cfg.GminEnd, then (when
// allowSourceStepping) scaling every independent voltage source from
// 1/cfg.SourceSteps of its value up to full amplitude across
// cfg.SourceSteps passes; independent current sources are not scaled and
// stay at full value. Returns a wrapped simerr.ErrNoConvergence
// only once every rung of the ladder has been exhausted; the transient
// driver is responsible for the final rung, step reduction, around a call
// to Solve.
func Solve(asm *mna.Assembly, status *device.CircuitStatus, cfg Config, allowSourceStepping bool) error {
	// For a cold DC start, seed the nonlinear devices' linearization points
	// from a linear-only solve before the first Newton pass; transient
	// steps keep the previous step's operating point, which is already a
	// better start than any estimate.
	if status.Mode == device.OperatingPointAnalysis {
		if est := linearEstimate(asm, status); est != nil {
			if err := asm.UpdateNonlinearVoltages(est); err != nil {
				return fmt.Errorf("solver: seeding estimate: %v", err)
			}
		}
	}

	status.Gmin = 0
	if err := iterate(asm, status, cfg); err == nil {
		return nil
	} else if !errors.Is(err, simerr.ErrNoConvergence) {
		return err // Singular / Overflow propagate immediately, no point ramping
	}

	if err := gminRamp(asm, status, cfg); err == nil {
		return nil
	} else if !errors.Is(err, simerr.ErrNoConvergence) {
		return err
	}

	if allowSourceStepping && cfg.SourceStepping {
		if err := sourceStep(asm, status, cfg); err != nil {
			return err
		}
		status.Gmin = 0
		return iterate(asm, status, cfg)
	}

	return fmt.Errorf("solver: %w after gmin ramp", simerr.ErrNoConvergence)
}

// iterate runs the core Newton-Raphson loop at the GMIN already set on
// status, with damped backtracking: a step that drives any unknown
// non-finite halves the damping factor and repeats the pass; each repeat
// uses up one of cfg.MaxIters, and once the factor is below 1e-3 the
// iterate is reported as Overflow, matching the
// "damping factor, reduced on non-convergence via backtracking" language
// of §4.4.
func iterate(asm *mna.Assembly, status *device.CircuitStatus, cfg Config) error {
	mat := asm.GetMatrix()
	var prev []float64
	alpha := cfg.Damping
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}

	for iter := 0; iter < cfg.MaxIters; iter++ {
		mat.Clear()

		if iter > 0 {
			if err := asm.UpdateNonlinearVoltages(prev); err != nil {
				return fmt.Errorf("solver: updating nonlinear voltages: %v", err)
			}
		}

		if err := asm.Stamp(status); err != nil {
			return fmt.Errorf("solver: stamping: %v", err)
		}
		if status.Gmin > 0 {
			mat.LoadGmin(status.Gmin)
		}

		if err := mat.Solve(); err != nil {
			return fmt.Errorf("solver: %w: %v", simerr.ErrSingular, err)
		}

		next := mat.Solution()
		if hasNonFinite(next) {
			if alpha < 1e-3 {
				return fmt.Errorf("solver: %w: non-finite iterate despite damping", simerr.ErrOverflow)
			}
			alpha /= 2
			continue
		}

		damped := damp(prev, next, alpha)

		if iter > 0 && converged(prev, damped, cfg) {
			copy(next, damped)
			return nil
		}

		if prev == nil {
			prev = make([]float64, len(next))
		}
		copy(prev, damped)
	}

	return fmt.Errorf("solver: %w: %d iterations exhausted", simerr.ErrNoConvergence, cfg.MaxIters)
}

// denseStamp adapts a dense linalg system to the 1-based additive
// DeviceMatrix view devices stamp into; the complex methods are no-ops
// since the estimate is DC-only.
type denseStamp struct {
	a *linalg.Matrix
	b *linalg.Vector
}

func (d *denseStamp) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > d.a.Rows() || j > d.a.Cols() {
		return
	}
	d.a.Add(i-1, j-1, value)
}

func (d *denseStamp) AddRHS(i int, value float64) {
	if i <= 0 || i > d.b.Size() {
		return
	}
	d.b.Add(i-1, value)
}

func (d *denseStamp) AddComplexElement(i, j int, real, imag float64) {}
func (d *denseStamp) AddComplexRHS(i int, real, imag float64)        {}

// linearEstimate stamps only the linear devices into a small dense system
// and solves it with linalg's partial-pivot LU, returning a 1-based
// solution vector to seed the Newton iteration, or nil when the linear
// subsystem alone is singular (estimate skipped, not an error).
func linearEstimate(asm *mna.Assembly, status *device.CircuitStatus) []float64 {
	if len(asm.GetDevices()) == 0 {
		return nil
	}
	n := asm.GetMatrix().Size
	if n == 0 {
		return nil
	}

	ds := &denseStamp{a: linalg.NewMatrix(n, n), b: linalg.NewVector(n)}
	for _, dev := range asm.GetDevices() {
		if _, nonlinear := dev.(device.NonLinear); nonlinear {
			continue
		}
		if err := dev.Stamp(ds, status); err != nil {
			return nil
		}
	}
	// A node touched only by nonlinear devices would leave a zero row.
	for i := 0; i < n; i++ {
		ds.a.Add(i, i, 1e-9)
	}

	x, err := linalg.Solve(ds.a, ds.b)
	if err != nil {
		return nil
	}
	out := make([]float64, n+1)
	for i := 0; i < n; i++ {
		out[i+1] = x.Get(i)
	}
	return out
}

// damp blends next toward prev by alpha, the NR "update x <- x + alpha*dx"
// rule from §4.4; at alpha=1 (the common case) this is a no-op copy.
func damp(prev, next []float64, alpha float64) []float64 {
	if prev == nil || alpha >= 1 {
		return next
	}
	out := make([]float64, len(next))
	for i := range next {
		out[i] = prev[i] + alpha*(next[i]-prev[i])
	}
	return out
}

func hasNonFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func converged(oldSol, newSol []float64, cfg Config) bool {
	if len(oldSol) != len(newSol) {
		return false
	}
	for i := range oldSol {
		diff := math.Abs(newSol[i] - oldSol[i])
		reltol := cfg.TolRel*math.Max(math.Abs(newSol[i]), math.Abs(oldSol[i])) + cfg.TolAbs
		if diff > reltol {
			return false
		}
	}
	return true
}

// gminRamp retries iterate at a geometric GMIN schedule from cfg.GminStart
// down through cfg.GminEnd (inclusive), the "small conductance to ground...
// ramped from 1e-3 down to 1e-12" rescue of §4.4, then leaves status.Gmin
// at 0 for the caller's final zero-GMIN solve.
func gminRamp(asm *mna.Assembly, status *device.CircuitStatus, cfg Config) error {
	steps := cfg.GminSteps
	if steps < 1 {
		steps = 1
	}
	ratio := math.Pow(cfg.GminEnd/cfg.GminStart, 1.0/float64(steps))

	gmin := cfg.GminStart
	var lastErr error
	for i := 0; i <= steps; i++ {
		status.Gmin = gmin
		if err := iterate(asm, status, cfg); err != nil {
			lastErr = err
			break
		}
		gmin *= ratio
	}
	status.Gmin = 0
	if lastErr != nil {
		return lastErr
	}
	return iterate(asm, status, cfg)
}

// sourceStep scales every independent voltage source from a tenth of its
// value up to full amplitude across cfg.SourceSteps passes, per §4.4's
// "scale all independent sources from 0->1 in 10 steps" DC rescue. Source
// values are always restored to their original amplitude before return,
// success or failure.
func sourceStep(asm *mna.Assembly, status *device.CircuitStatus, cfg Config) error {
	type scaled struct {
		src      *device.VoltageSource
		val      float64
		param    float64 // Component.Params["voltage"], which a DC source reads ahead of val
		hasParam bool
	}
	var sources []scaled
	for _, dev := range asm.GetDevices() {
		if v, ok := dev.(*device.VoltageSource); ok {
			s := scaled{src: v, val: v.GetValue()}
			if v.Component != nil {
				s.param, s.hasParam = v.Component.Params["voltage"]
			}
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return fmt.Errorf("solver: %w: no independent sources to step", simerr.ErrNoConvergence)
	}

	defer func() {
		for _, s := range sources {
			s.src.SetValue(s.val)
			if s.hasParam {
				s.src.Component.Params["voltage"] = s.param
			}
		}
	}()

	steps := cfg.SourceSteps
	if steps < 1 {
		steps = 1
	}
	status.Gmin = 0
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		for _, s := range sources {
			s.src.SetValue(s.val * frac)
			if s.hasParam {
				s.src.Component.Params["voltage"] = s.param * frac
			}
		}
		if err := iterate(asm, status, cfg); err != nil {
			return fmt.Errorf("solver: source stepping failed at %.0f%%: %w", frac*100, err)
		}
	}
	return nil
}
