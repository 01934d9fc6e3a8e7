// Package transient implements the engine's time-stepping driver
// (Component E): adaptive step control, companion-model commits for
// reactive elements, trapezoidal/backward-Euler switching under stiff
// oscillation, driving pkg/solver at each accepted or retried step. The
// mixed-signal logic bridge is not here: it is pkg/device's LogicGate and
// SchmittTrigger, which the solver re-evaluates as NonLinear devices.
package transient

import (
	"errors"
	"fmt"
	"math"

	"github.com/anton-oss/circuitsim/internal/consts"
	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/internal/simerr"
	"github.com/anton-oss/circuitsim/pkg/device"
	"github.com/anton-oss/circuitsim/pkg/solver"
)

// Config carries the transient-specific tunables of §4.5 / §6's SimConfig
// time block, plus the embedded Newton-Raphson configuration each step uses.
type Config struct {
	DtInit float64
	DtMin  float64
	DtMax  float64
	Solver solver.Config

	// GrowAfter is the number of consecutive accepted steps before the
	// driver tentatively grows Δt ("after k successes, tentatively grow"),
	// and GrowFactor/ShrinkFactor the corresponding multipliers.
	GrowAfter   int
	GrowFactor  float64
	ShrinkFactor float64

	// OscillationWindow is how many consecutive steps of alternating
	// dominant-residual sign trigger a fallback from trapezoidal to
	// backward-Euler (§4.5 "Oscillation control").
	OscillationWindow int

	// TrTol is the per-step truncation-error ceiling while integrating
	// trapezoidally; a step whose device-reported LTE exceeds it falls
	// back to backward-Euler (SPICE3F5's trtol default of 7). LTEShrink
	// is the lower ceiling above which the next step is shrunk instead
	// of grown, the acceptance threshold of the teacher's
	// checkAcceptability.
	TrTol     float64
	LTEShrink float64
}

// DefaultConfig matches §4.5's literal bounds: Δt in [1e-12s, 1e-3s],
// default 1e-5s.
func DefaultConfig() Config {
	return Config{
		DtInit:            1e-5,
		DtMin:             1e-12,
		DtMax:             1e-3,
		Solver:            solver.DefaultConfig(),
		GrowAfter:         4,
		GrowFactor:        1.2,
		ShrinkFactor:      0.5,
		OscillationWindow: 3,
		TrTol:             7.0,
		LTEShrink:         1.0,
	}
}

// StepResult reports what a single Driver.Step call accomplished, the
// shape the host-facing engine.StepResult (§6) is built from.
type StepResult struct {
	AdvancedTime float64
	Dt           float64
	Iterations   int
	Warnings     []string
}

// Driver is the transient engine: current simulated time, current step
// size, integration order (BE=1, TR=2) and the bookkeeping needed to
// detect stiff oscillation and fall back to backward-Euler.
type Driver struct {
	cfg Config

	tSim float64
	dt   float64

	order        int // device.BE or device.TR
	successes    int
	residualSign []int     // per-step sign of the dominant solution-delta component, most-recent last
	prevSolution []float64 // last accepted step's solution, for the delta
	prevLTE      float64   // last accepted step's truncation-error estimate

	ambientTemp float64
}

// New returns a transient driver ready to step asm from t=0, seeded with
// the trapezoidal integration rule the spec names as the default.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:         cfg,
		dt:          cfg.DtInit,
		order:       device.TR,
		ambientTemp: consts.TNomDefault,
	}
}

func (d *Driver) Time() float64 { return d.tSim }
func (d *Driver) Dt() float64   { return d.dt }

// ClampDt shrinks the pending step to at most max, used by a caller (e.g.
// analysis.Transient) that needs the driver to land exactly on a stop
// time instead of overshooting it.
func (d *Driver) ClampDt(max float64) {
	if max > 0 && d.dt > max {
		d.dt = max
	}
}

// SetAmbientTemp sets the environment temperature (§6 SimConfig.environment)
// used to stamp every device's CircuitStatus.Temp.
func (d *Driver) SetAmbientTemp(t float64) { d.ambientTemp = t }

// Step advances asm by one accepted integration step, halving Δt on
// Newton-Raphson failure and retrying until either a step is accepted or
// Δt falls below cfg.DtMin, in which case it reports StepTooSmall (§4.5
// step 2c). On success it commits reactive-element state, advances
// simulated time, and grows Δt after enough consecutive successes.
func (d *Driver) Step(asm *mna.Assembly) (StepResult, error) {
	var warnings []string

	for {
		status := &device.CircuitStatus{
			Time:     d.tSim,
			TimeStep: d.dt,
			Mode:     device.TransientAnalysis,
			Method:   d.order,
			Temp:     d.ambientTemp,
		}
		asm.Status = status // Update/StepThermal commit against this step's state
		asm.SetTimeStep(d.dt)

		err := solver.Solve(asm, status, d.cfg.Solver, false)
		if err == nil {
			asm.Update()
			asm.StepThermal(d.dt)
			d.tSim += d.dt
			d.successes++
			d.trackOscillation(asm)

			// Truncation-error step control: every reactive/nonlinear
			// device reports its LTE for the committed step; too much
			// error under the trapezoidal rule means the stiff-switching
			// case, so fall back to backward-Euler, and a lesser excess
			// holds back step growth — shrinking further only while the
			// error is still climbing, so a sustained large signal can't
			// spiral the step down to DtMin.
			lte := asm.MaxLTE()
			if d.order == device.TR && d.cfg.TrTol > 0 && lte > d.cfg.TrTol {
				d.order = device.BE
			}
			if d.cfg.LTEShrink > 0 && lte > d.cfg.LTEShrink {
				d.successes = 0
				if lte > d.prevLTE*1.5 {
					if shrunk := d.dt * d.cfg.ShrinkFactor; shrunk >= d.cfg.DtMin {
						d.dt = shrunk
					}
				}
			} else if d.successes >= d.cfg.GrowAfter && d.dt < d.cfg.DtMax {
				d.successes = 0
				grown := d.dt * d.cfg.GrowFactor
				if grown > d.cfg.DtMax {
					grown = d.cfg.DtMax
				}
				d.dt = grown
			}
			d.prevLTE = lte

			return StepResult{AdvancedTime: d.tSim, Dt: d.dt, Iterations: 1, Warnings: warnings}, nil
		}

		if errors.Is(err, simerr.ErrNoConvergence) {
			warnings = append(warnings, fmt.Sprintf("NR failed at t=%g, dt=%g: %v", d.tSim, d.dt, err))
			d.successes = 0
			d.dt *= d.cfg.ShrinkFactor
			if d.dt < d.cfg.DtMin {
				return StepResult{AdvancedTime: d.tSim, Dt: d.dt, Warnings: warnings},
					fmt.Errorf("transient: %w at t=%g", simerr.ErrStepTooSmall, d.tSim)
			}
			continue
		}

		// Singular / Overflow are not locally recoverable by step shrinking.
		return StepResult{AdvancedTime: d.tSim, Dt: d.dt, Warnings: warnings}, err
	}
}

// trackOscillation watches the dominant-magnitude component of the
// step-to-step solution delta — the residual left by the previous step's
// extrapolation — across consecutive accepted steps; cfg.OscillationWindow
// (default 3) consecutive steps of alternating sign signal the
// stiff-switching case §4.5 calls out (CMOS
// inverter, comparator) and fall back to backward-Euler for the
// remainder of the run. Tracking the delta rather than the raw solution
// keeps a large fixed-sign supply rail from masking the oscillation.
func (d *Driver) trackOscillation(asm *mna.Assembly) {
	sol := asm.GetMatrix().Solution()
	prev := d.prevSolution
	d.prevSolution = append(d.prevSolution[:0], sol...)
	if d.order != device.TR || len(prev) != len(sol) {
		return
	}

	dominant := 0.0
	sign := 0
	for i, v := range sol {
		delta := v - prev[i]
		if math.Abs(delta) > math.Abs(dominant) {
			dominant = delta
			if delta > 0 {
				sign = 1
			} else if delta < 0 {
				sign = -1
			}
		}
	}
	d.residualSign = append(d.residualSign, sign)
	if len(d.residualSign) > d.cfg.OscillationWindow {
		d.residualSign = d.residualSign[len(d.residualSign)-d.cfg.OscillationWindow:]
	}
	if len(d.residualSign) < d.cfg.OscillationWindow {
		return
	}
	alternating := true
	for i := 1; i < len(d.residualSign); i++ {
		if d.residualSign[i] == 0 || d.residualSign[i] == d.residualSign[i-1] {
			alternating = false
			break
		}
	}
	if alternating {
		d.order = device.BE
	}
}

// Reset clears simulated time, step size and oscillation history, for the
// parametric-sweep/Monte-Carlo outer loops' "explicit reset of reactive
// state + op-point" guarantee (§4.6) between independent runs.
func (d *Driver) Reset() {
	d.tSim = 0
	d.dt = d.cfg.DtInit
	d.order = device.TR
	d.successes = 0
	d.residualSign = nil
	d.prevSolution = nil
	d.prevLTE = 0
}
