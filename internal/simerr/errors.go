// Package simerr defines the closed set of error kinds the simulation
// core can surface to a host, per the engine's error taxonomy.
package simerr

import "errors"

var (
	// ErrSingular: the solver could not factor the MNA matrix even after damping.
	ErrSingular = errors.New("circuitsim: singular matrix")
	// ErrNoConvergence: Newton-Raphson failed to converge at the smallest allowed step.
	ErrNoConvergence = errors.New("circuitsim: no convergence")
	// ErrStepTooSmall: adaptive transient step hit dt_min.
	ErrStepTooSmall = errors.New("circuitsim: step too small")
	// ErrDegenerateTopology: no ground class reachable from any source.
	ErrDegenerateTopology = errors.New("circuitsim: degenerate topology")
	// ErrOverflow: a state variable went non-finite despite limiting.
	ErrOverflow = errors.New("circuitsim: overflow")
	// ErrUnsupportedVersion: persisted file format newer than this engine.
	ErrUnsupportedVersion = errors.New("circuitsim: unsupported netlist version")
	// ErrCorruptNetlist: failed structural checks on load.
	ErrCorruptNetlist = errors.New("circuitsim: corrupt netlist")
	// ErrDimensionMismatch: non-square matrix, or vector size mismatch.
	ErrDimensionMismatch = errors.New("circuitsim: dimension mismatch")
)
